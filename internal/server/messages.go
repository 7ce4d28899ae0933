package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/clubhive/chat-service/internal/chat"
	"github.com/clubhive/chat-service/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the inbound command envelope: exactly one of the
// pointer fields is set.
type ClientMessage struct {
	BaseMessage
	Publish *Publish `json:"publish,omitempty"`
	Join    *Join    `json:"join,omitempty"`
	Leave   *Leave   `json:"leave,omitempty"`
	Read    *Read    `json:"read,omitempty"`
}

type Publish struct {
	RoomId  string            `json:"room_id"`
	Content string            `json:"content"`
	Type    types.MessageType `json:"type,omitempty"`
}

type Join struct {
	RoomId string `json:"room_id"`
}

// Leave distinguishes an explicit leave (durable membership ends) from a
// live-only detach. Connection teardown never sets Explicit.
type Leave struct {
	RoomId   string `json:"room_id"`
	Explicit bool   `json:"explicit,omitempty"`
}

type Read struct {
	RoomId string `json:"room_id"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response      `json:"response,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type Notification struct {
	Room     *chat.RoomNotification `json:"room,omitempty"`
	RoomList *chat.RoomListEvent    `json:"room_list,omitempty"`
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

// ErrResponse maps a domain failure to a wire response.
func ErrResponse(id int, err error) *ServerMessage {
	code, text := statusForError(err)
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        text,
		},
	}
}

func statusForError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, chat.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, chat.ErrBadPassword):
		return http.StatusUnauthorized, "bad password"
	case errors.Is(err, chat.ErrPermissionDenied):
		return http.StatusForbidden, "permission denied"
	case errors.Is(err, chat.ErrAlreadyJoined):
		return http.StatusConflict, "already joined"
	case errors.Is(err, chat.ErrNotParticipating):
		return http.StatusConflict, "not participating"
	case errors.Is(err, chat.ErrRoomNotJoinable):
		return http.StatusConflict, "room not joinable"
	case errors.Is(err, chat.ErrValidation):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
