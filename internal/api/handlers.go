package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/clubhive/chat-service/internal/chat"
	"github.com/clubhive/chat-service/internal/server"
	"github.com/clubhive/chat-service/internal/types"
)

type CreateRoomRequest struct {
	Name            string               `json:"name" validate:"required,max=100"`
	Description     string               `json:"description" validate:"max=500"`
	MaxParticipants int                  `json:"max_participants" validate:"omitempty,min=2,max=500"`
	Visibility      types.RoomVisibility `json:"visibility" validate:"omitempty,oneof=PUBLIC PRIVATE"`
	Password        string               `json:"password" validate:"omitempty,min=4,max=72"`
}

type JoinRoomRequest struct {
	Password string `json:"password"`
}

type ChangeRoleRequest struct {
	Role types.ParticipantRole `json:"role" validate:"required,oneof=ADMIN MEMBER"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *ChatApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.Err != nil {
		s.log.Println(errResp.Error())
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *ChatApp) decodeAndValidate(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}

	return s.validate.Struct(v)
}

func (s *ChatApp) caller(w http.ResponseWriter, r *http.Request) (types.Identity, bool) {
	identity, ok := CallerIdentity(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return types.Identity{}, false
	}
	return identity, true
}

func pageRequest(r *http.Request) types.PageRequest {
	var page types.PageRequest
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page.Page = p
	}
	if size, err := strconv.Atoi(r.URL.Query().Get("size")); err == nil {
		page.Size = size
	}
	return page.Normalize()
}

func (s *ChatApp) listRooms(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	var rooms []types.Room
	var err error
	if q := r.URL.Query().Get("q"); q != "" {
		rooms, err = s.service.SearchRooms(identity, q, pageRequest(r))
	} else {
		rooms, err = s.service.ListPublicRooms(identity, pageRequest(r))
	}
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *ChatApp) listPopularRooms(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	rooms, err := s.service.ListPopularRooms(identity, pageRequest(r))
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *ChatApp) listRecentRooms(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	rooms, err := s.service.ListRecentlyActiveRooms(identity, pageRequest(r))
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *ChatApp) listJoinedRooms(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	rooms, err := s.service.ListJoinedRooms(identity)
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *ChatApp) listCreatedRooms(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	rooms, err := s.service.ListCreatedRooms(identity)
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, rooms)
}

func (s *ChatApp) createRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	room, err := s.service.CreateRoom(identity, chat.CreateRoomSpec{
		Name:            req.Name,
		Description:     req.Description,
		MaxParticipants: req.MaxParticipants,
		Visibility:      req.Visibility,
		Password:        req.Password,
	})
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, room)
}

func (s *ChatApp) getRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	room, err := s.service.GetRoom(r.PathValue("id"))
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	status, err := s.service.Participation(identity, room.ExternalId)
	if err == nil {
		room.Participating = status.Participating
		room.UnreadCount = status.UnreadCount
	}

	s.writeJson(w, http.StatusOK, room)
}

// deleteRoom archives a room; the creator's explicit delete action.
func (s *ChatApp) deleteRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	if _, err := s.service.SetStatus(identity, r.PathValue("id"), types.RoomStatusArchived); err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req JoinRoomRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, NewBadRequestError())
			return
		}
	}

	room, err := s.service.JoinRoom(identity, r.PathValue("id"), req.Password)
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, room)
}

func (s *ChatApp) leaveRoom(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	outcome, err := s.service.LeaveRoom(identity, r.PathValue("id"))
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, outcome)
}

func (s *ChatApp) roomForMessages(w http.ResponseWriter, r *http.Request) (types.Room, bool) {
	room, err := s.service.GetRoom(r.PathValue("id"))
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return types.Room{}, false
	}
	return room, true
}

func (s *ChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}

	room, ok := s.roomForMessages(w, r)
	if !ok {
		return
	}

	messages, err := s.dispatcher.Messages(room, pageRequest(r))
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *ChatApp) getRecentMessages(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}

	room, ok := s.roomForMessages(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	messages, err := s.dispatcher.RecentMessages(room, limit)
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *ChatApp) getUnreadCount(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	room, ok := s.roomForMessages(w, r)
	if !ok {
		return
	}

	count, err := s.dispatcher.UnreadCount(identity, room)
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, map[string]int{"unread_count": count})
}

func (s *ChatApp) markRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	room, ok := s.roomForMessages(w, r)
	if !ok {
		return
	}

	if err := s.dispatcher.MarkRead(identity, room); err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) participationStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	status, err := s.service.Participation(identity, r.PathValue("id"))
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, status)
}

func (s *ChatApp) listParticipants(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.caller(w, r); !ok {
		return
	}

	participants, err := s.service.Participants(r.PathValue("id"))
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, participants)
}

func (s *ChatApp) kickParticipant(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	targetId, err := strconv.Atoi(r.PathValue("memberId"))
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if _, err := s.service.Kick(identity, r.PathValue("id"), targetId); err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) changeRole(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	targetId, err := strconv.Atoi(r.PathValue("memberId"))
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	var req ChangeRoleRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	if err := s.service.ChangeRole(identity, r.PathValue("id"), targetId, req.Role); err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	messageId, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	msg, err := s.dispatcher.DeleteMessage(identity, messageId)
	if err != nil {
		s.writeError(w, NewDomainError(err))
		return
	}

	s.writeJson(w, http.StatusOK, msg)
}

func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.caller(w, r)
	if !ok {
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(identity, conn, s.cs, s.log)

	if err := s.cs.RegisterClient(client); err != nil {
		s.log.Println("register client:", err)
		if err := conn.WriteJSON(server.ErrServiceUnavailable(-1)); err != nil {
			s.log.Println("write unavailable response:", err)
		}
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()
}
