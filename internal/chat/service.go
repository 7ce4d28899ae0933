package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/teris-io/shortid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clubhive/chat-service/internal/database"
	"github.com/clubhive/chat-service/internal/presence"
	"github.com/clubhive/chat-service/internal/types"
)

const (
	defaultMaxParticipants = 50
	maxRoomNameLength      = 100
)

// RoomService coordinates room lifecycle: create, join, leave, kick, role
// and status changes. It is the only component that touches both the durable
// roster and the presence registry, and it keeps the two from diverging.
type RoomService struct {
	repo        database.ChatRepository
	presence    *presence.Registry
	broadcaster Broadcaster
	dispatcher  *MessageDispatcher
	log         *log.Logger
	sid         *shortid.Shortid
}

func NewRoomService(repo database.ChatRepository, reg *presence.Registry, b Broadcaster, d *MessageDispatcher, logger *log.Logger) (*RoomService, error) {
	sid, err := shortid.New(1, shortid.DefaultABC, uint64(time.Now().UnixNano()))
	if err != nil {
		return nil, fmt.Errorf("shortid: %w", err)
	}

	return &RoomService{
		repo:        repo,
		presence:    reg,
		broadcaster: b,
		dispatcher:  d,
		log:         logger,
		sid:         sid,
	}, nil
}

type CreateRoomSpec struct {
	Name            string
	Description     string
	MaxParticipants int
	Visibility      types.RoomVisibility
	Password        string
}

// LeaveOutcome reports what a leave decided, for the caller's response.
type LeaveOutcome struct {
	Room     types.Room
	Promoted *types.Participant
	Closed   bool
}

type ParticipationStatus struct {
	Participating    bool                  `json:"participating"`
	Role             types.ParticipantRole `json:"role,omitempty"`
	UnreadCount      int                   `json:"unread_count"`
	OnlineCount      int                   `json:"online_count"`
	ParticipantCount int                   `json:"participant_count"`
}

func (s *RoomService) CreateRoom(caller types.Identity, spec CreateRoomSpec) (types.Room, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return types.Room{}, validationError("room name is empty")
	}
	if utf8.RuneCountInString(name) > maxRoomNameLength {
		return types.Room{}, validationError("room name exceeds %d characters", maxRoomNameLength)
	}

	if spec.Visibility == "" {
		spec.Visibility = types.RoomPublic
	}
	if !spec.Visibility.Valid() {
		return types.Room{}, validationError("unknown visibility %q", spec.Visibility)
	}
	if spec.Visibility == types.RoomPrivate && spec.Password == "" {
		return types.Room{}, validationError("private room requires a password")
	}

	if spec.MaxParticipants <= 0 {
		spec.MaxParticipants = defaultMaxParticipants
	}

	var passwordHash string
	if spec.Visibility == types.RoomPrivate {
		hash, err := bcrypt.GenerateFromPassword([]byte(spec.Password), bcrypt.DefaultCost)
		if err != nil {
			return types.Room{}, fmt.Errorf("%w: hash password: %v", ErrInternal, err)
		}
		passwordHash = string(hash)
	}

	externalId, err := s.sid.Generate()
	if err != nil {
		return types.Room{}, fmt.Errorf("%w: generate room id: %v", ErrInternal, err)
	}

	dbRoom, err := s.repo.CreateRoom(database.CreateRoomParams{
		ExternalId:      externalId,
		Name:            name,
		Description:     spec.Description,
		CreatorId:       caller.MemberId,
		CreatorNickname: caller.Nickname,
		MaxParticipants: spec.MaxParticipants,
		Visibility:      spec.Visibility,
		PasswordHash:    passwordHash,
	})
	if err != nil {
		return types.Room{}, mapRepoError(err)
	}

	room := toRoom(dbRoom)
	s.broadcaster.BroadcastRoomList(RoomListEvent{Type: RoomListCreated, Room: room})

	return room, nil
}

func (s *RoomService) GetRoom(externalId string) (types.Room, error) {
	dbRoom, err := s.repo.GetRoomByExternalId(externalId)
	if err != nil {
		return types.Room{}, mapRepoError(err)
	}
	return toRoom(dbRoom), nil
}

// JoinRoom adds the caller to the durable roster. Capacity, status and
// duplicate checks run inside the repository transaction; the password
// check happens here, against the stored hash.
func (s *RoomService) JoinRoom(caller types.Identity, externalId, password string) (types.Room, error) {
	dbRoom, err := s.repo.GetRoomByExternalId(externalId)
	if err != nil {
		return types.Room{}, mapRepoError(err)
	}

	if dbRoom.Visibility == types.RoomPrivate {
		if !dbRoom.PasswordHash.Valid ||
			bcrypt.CompareHashAndPassword([]byte(dbRoom.PasswordHash.String), []byte(password)) != nil {
			return types.Room{}, ErrBadPassword
		}
	}

	res, err := s.repo.JoinRoom(dbRoom.Id, caller.MemberId, caller.Nickname)
	if err != nil {
		return types.Room{}, mapRepoError(err)
	}

	room := toRoom(res.Room)
	s.broadcaster.BroadcastRoomList(RoomListEvent{Type: RoomListCountChanged, Room: room})

	return room, nil
}

// LeaveRoom handles an explicit leave: deactivate the roster row, transfer
// ownership or close the room, drop presence, then emit the LEAVE system
// message and notifications. Transport-level disconnects never reach here.
func (s *RoomService) LeaveRoom(caller types.Identity, externalId string) (LeaveOutcome, error) {
	dbRoom, err := s.repo.GetRoomByExternalId(externalId)
	if err != nil {
		return LeaveOutcome{}, mapRepoError(err)
	}

	res, err := s.repo.LeaveRoom(dbRoom.Id, caller.MemberId)
	if err != nil {
		return LeaveOutcome{}, mapRepoError(err)
	}

	if res.Closed && res.Room.ParticipantCount > 0 {
		// Counter disagrees with the roster; the transaction already
		// closed the room defensively rather than leave it owner-less.
		s.log.Printf("integrity: room %q closed with participant_count=%d",
			externalId, res.Room.ParticipantCount)
	}

	s.presence.Leave(externalId, res.Leaver.Nickname)

	outcome := LeaveOutcome{Room: toRoom(res.Room), Closed: res.Closed}
	var payload string
	if res.Promoted != nil {
		promoted := toParticipant(*res.Promoted)
		outcome.Promoted = &promoted
		payload = marshalPayload(map[string]any{"new_creator_id": promoted.MemberId})
	}

	s.dispatcher.System(outcome.Room, types.MessageLeave,
		fmt.Sprintf("%s left the room", res.Leaver.Nickname), payload)

	s.broadcaster.BroadcastRoomNotification(s.notification(outcome.Room))
	s.broadcaster.BroadcastRoomList(RoomListEvent{Type: RoomListCountChanged, Room: outcome.Room})

	return outcome, nil
}

// Kick removes another participant. The requester must hold CREATOR or
// ADMIN, the target must not be CREATOR, and an ADMIN cannot kick another
// ADMIN.
func (s *RoomService) Kick(caller types.Identity, externalId string, targetMemberId int) (LeaveOutcome, error) {
	dbRoom, err := s.repo.GetRoomByExternalId(externalId)
	if err != nil {
		return LeaveOutcome{}, mapRepoError(err)
	}

	requester, err := s.activeParticipant(dbRoom.Id, caller.MemberId)
	if err != nil {
		return LeaveOutcome{}, err
	}
	if requester.Role != types.RoleCreator && requester.Role != types.RoleAdmin {
		return LeaveOutcome{}, ErrPermissionDenied
	}

	target, err := s.activeParticipant(dbRoom.Id, targetMemberId)
	if err != nil {
		return LeaveOutcome{}, err
	}
	if target.Role == types.RoleCreator {
		return LeaveOutcome{}, ErrPermissionDenied
	}
	if requester.Role == types.RoleAdmin && target.Role == types.RoleAdmin {
		return LeaveOutcome{}, ErrPermissionDenied
	}

	res, err := s.repo.LeaveRoom(dbRoom.Id, targetMemberId)
	if err != nil {
		return LeaveOutcome{}, mapRepoError(err)
	}

	s.presence.Leave(externalId, target.Nickname)

	outcome := LeaveOutcome{Room: toRoom(res.Room), Closed: res.Closed}
	s.dispatcher.System(outcome.Room, types.MessageLeave,
		fmt.Sprintf("%s was removed from the room", target.Nickname),
		marshalPayload(map[string]any{"removed_by": caller.MemberId}))

	s.broadcaster.BroadcastRoomNotification(s.notification(outcome.Room))
	s.broadcaster.BroadcastRoomList(RoomListEvent{Type: RoomListCountChanged, Room: outcome.Room})

	return outcome, nil
}

// ChangeRole lets the creator change another active participant's role
// between ADMIN and MEMBER. CREATOR is only ever assigned by ownership
// transfer.
func (s *RoomService) ChangeRole(caller types.Identity, externalId string, targetMemberId int, role types.ParticipantRole) error {
	if !role.Valid() || role == types.RoleCreator {
		return validationError("cannot assign role %q", role)
	}
	if targetMemberId == caller.MemberId {
		return ErrPermissionDenied
	}

	dbRoom, err := s.repo.GetRoomByExternalId(externalId)
	if err != nil {
		return mapRepoError(err)
	}

	requester, err := s.activeParticipant(dbRoom.Id, caller.MemberId)
	if err != nil {
		return err
	}
	if requester.Role != types.RoleCreator {
		return ErrPermissionDenied
	}

	if _, err := s.activeParticipant(dbRoom.Id, targetMemberId); err != nil {
		return err
	}

	return mapRepoError(s.repo.UpdateParticipantRole(dbRoom.Id, targetMemberId, role))
}

// SetStatus closes or archives a room. Creator only; terminal once left
// ACTIVE.
func (s *RoomService) SetStatus(caller types.Identity, externalId string, status types.RoomStatus) (types.Room, error) {
	if status != types.RoomStatusClosed && status != types.RoomStatusArchived {
		return types.Room{}, validationError("cannot transition to status %q", status)
	}

	dbRoom, err := s.repo.GetRoomByExternalId(externalId)
	if err != nil {
		return types.Room{}, mapRepoError(err)
	}
	if dbRoom.CreatorId != caller.MemberId {
		return types.Room{}, ErrPermissionDenied
	}
	if dbRoom.Status != types.RoomStatusActive {
		return types.Room{}, validationError("room is not active")
	}

	updated, err := s.repo.UpdateRoomStatus(dbRoom.Id, status)
	if err != nil {
		return types.Room{}, mapRepoError(err)
	}

	room := toRoom(updated)
	s.dispatcher.System(room, types.MessageSystem, "room deleted",
		marshalPayload(map[string]any{"event": "room_deleted"}))
	s.broadcaster.BroadcastRoomNotification(s.notification(room))
	s.broadcaster.BroadcastRoomList(RoomListEvent{Type: RoomListDeleted, Room: room})

	return room, nil
}

// EnterRoom registers a connected caller as live-present. It requires an
// active roster row: live presence never substitutes for membership. A JOIN
// system message is only emitted when the identity was newly added, so a
// reconnect does not replay it.
func (s *RoomService) EnterRoom(caller types.Identity, externalId string) (RoomNotification, error) {
	dbRoom, err := s.repo.GetRoomByExternalId(externalId)
	if err != nil {
		return RoomNotification{}, mapRepoError(err)
	}

	if _, err := s.activeParticipant(dbRoom.Id, caller.MemberId); err != nil {
		return RoomNotification{}, err
	}

	room := toRoom(dbRoom)
	if s.presence.Join(externalId, caller.Nickname, caller.MemberId, caller.Email) {
		s.dispatcher.System(room, types.MessageJoin,
			fmt.Sprintf("%s joined the room", caller.Nickname), "")
	}

	n := s.notification(room)
	s.broadcaster.BroadcastRoomNotification(n)

	return n, nil
}

// LeaveLive handles the socket-level leave command. Only an explicit leave
// touches the durable roster; a transient disconnect just drops presence.
func (s *RoomService) LeaveLive(caller types.Identity, externalId string, explicit bool) (*LeaveOutcome, error) {
	if explicit {
		outcome, err := s.LeaveRoom(caller, externalId)
		if err != nil {
			return nil, err
		}
		return &outcome, nil
	}

	if s.presence.Leave(externalId, caller.Nickname) {
		if room, err := s.GetRoom(externalId); err == nil {
			s.broadcaster.BroadcastRoomNotification(s.notification(room))
		}
	}

	return nil, nil
}

func (s *RoomService) ListPublicRooms(caller types.Identity, page types.PageRequest) ([]types.Room, error) {
	rooms, err := s.repo.ListPublicRooms(page)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return s.annotate(toRooms(rooms), caller), nil
}

func (s *RoomService) ListPopularRooms(caller types.Identity, page types.PageRequest) ([]types.Room, error) {
	rooms, err := s.repo.ListPopularRooms(page)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return s.annotate(toRooms(rooms), caller), nil
}

func (s *RoomService) ListRecentlyActiveRooms(caller types.Identity, page types.PageRequest) ([]types.Room, error) {
	rooms, err := s.repo.ListRecentlyActiveRooms(page)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return s.annotate(toRooms(rooms), caller), nil
}

func (s *RoomService) SearchRooms(caller types.Identity, name string, page types.PageRequest) ([]types.Room, error) {
	rooms, err := s.repo.SearchRoomsByName(name, page)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return s.annotate(toRooms(rooms), caller), nil
}

func (s *RoomService) ListJoinedRooms(caller types.Identity) ([]types.Room, error) {
	rooms, err := s.repo.ListRoomsJoinedBy(caller.MemberId)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return s.annotate(toRooms(rooms), caller), nil
}

func (s *RoomService) ListCreatedRooms(caller types.Identity) ([]types.Room, error) {
	rooms, err := s.repo.ListRoomsCreatedBy(caller.MemberId)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return s.annotate(toRooms(rooms), caller), nil
}

func (s *RoomService) Participation(caller types.Identity, externalId string) (ParticipationStatus, error) {
	dbRoom, err := s.repo.GetRoomByExternalId(externalId)
	if err != nil {
		return ParticipationStatus{}, mapRepoError(err)
	}

	status := ParticipationStatus{
		OnlineCount:      s.presence.OnlineCount(externalId),
		ParticipantCount: dbRoom.ParticipantCount,
	}

	p, err := s.repo.GetParticipant(dbRoom.Id, caller.MemberId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return status, nil
		}
		return ParticipationStatus{}, mapRepoError(err)
	}

	if p.Active {
		status.Participating = true
		status.Role = p.Role
		unread, err := s.repo.CountUnread(dbRoom.Id, caller.MemberId)
		if err != nil {
			return ParticipationStatus{}, mapRepoError(err)
		}
		status.UnreadCount = unread
	}

	return status, nil
}

func (s *RoomService) Participants(externalId string) ([]types.Participant, error) {
	dbRoom, err := s.repo.GetRoomByExternalId(externalId)
	if err != nil {
		return nil, mapRepoError(err)
	}

	dbParticipants, err := s.repo.ListActiveParticipants(dbRoom.Id)
	if err != nil {
		return nil, mapRepoError(err)
	}

	participants := make([]types.Participant, len(dbParticipants))
	for i, p := range dbParticipants {
		participants[i] = toParticipant(p)
	}
	return participants, nil
}

// annotate fills the caller-scoped fields on room listings.
func (s *RoomService) annotate(rooms []types.Room, caller types.Identity) []types.Room {
	if caller.MemberId == 0 {
		return rooms
	}

	for i := range rooms {
		p, err := s.repo.GetParticipant(rooms[i].Id, caller.MemberId)
		if err != nil || !p.Active {
			continue
		}

		rooms[i].Participating = true
		if unread, err := s.repo.CountUnread(rooms[i].Id, caller.MemberId); err == nil {
			rooms[i].UnreadCount = unread
		}
	}

	return rooms
}

func (s *RoomService) activeParticipant(roomId, memberId int) (database.Participant, error) {
	p, err := s.repo.GetParticipant(roomId, memberId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return database.Participant{}, ErrNotParticipating
		}
		return database.Participant{}, mapRepoError(err)
	}
	if !p.Active {
		return database.Participant{}, ErrNotParticipating
	}
	return p, nil
}

func (s *RoomService) notification(room types.Room) RoomNotification {
	return RoomNotification{
		RoomId:           room.ExternalId,
		OnlineCount:      s.presence.OnlineCount(room.ExternalId),
		OnlineIdentities: s.presence.OnlineIdentities(room.ExternalId),
		Participants:     s.presence.Details(room.ExternalId),
		ParticipantCount: room.ParticipantCount,
	}
}

func marshalPayload(v map[string]any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
