package database

import (
	"errors"

	"github.com/clubhive/chat-service/internal/types"
)

// Storage-level sentinels. Rules that must hold atomically (capacity,
// duplicate membership, sender-only delete) are enforced inside the
// repository transaction and surface as one of these.
var (
	ErrNotFound           = errors.New("database: not found")
	ErrRoomNotJoinable    = errors.New("database: room not joinable")
	ErrRoomFull           = errors.New("database: room full")
	ErrAlreadyParticipant = errors.New("database: already an active participant")
	ErrNotParticipant     = errors.New("database: no active participant row")
	ErrNotSender          = errors.New("database: requester is not the sender")
)

type ChatRepository interface {
	Ping() error

	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomById(id int) (Room, error)
	GetRoomByExternalId(externalId string) (Room, error)
	ListPublicRooms(page types.PageRequest) ([]Room, error)
	ListPopularRooms(page types.PageRequest) ([]Room, error)
	ListRecentlyActiveRooms(page types.PageRequest) ([]Room, error)
	SearchRoomsByName(name string, page types.PageRequest) ([]Room, error)
	ListRoomsCreatedBy(memberId int) ([]Room, error)
	ListRoomsJoinedBy(memberId int) ([]Room, error)
	UpdateRoomStatus(roomId int, status types.RoomStatus) (Room, error)

	JoinRoom(roomId, memberId int, nickname string) (JoinRoomResult, error)
	LeaveRoom(roomId, memberId int) (LeaveRoomResult, error)
	GetParticipant(roomId, memberId int) (Participant, error)
	ListActiveParticipants(roomId int) ([]Participant, error)
	UpdateParticipantRole(roomId, memberId int, role types.ParticipantRole) error
	UpdateLastReadAt(roomId, memberId int) error

	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessages(roomId int, page types.PageRequest) ([]Message, error)
	GetRecentMessages(roomId, limit int) ([]Message, error)
	CountUnread(roomId, memberId int) (int, error)
	SoftDeleteMessage(messageId, requesterId int) (Message, error)
}
