package database

import (
	"database/sql"
	"time"

	"github.com/clubhive/chat-service/internal/types"
)

type Room struct {
	Id               int
	ExternalId       string
	Name             string
	Description      string
	CreatorId        int
	MaxParticipants  int
	ParticipantCount int
	Status           types.RoomStatus
	Visibility       types.RoomVisibility
	PasswordHash     sql.NullString
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Participant struct {
	Id         int
	RoomId     int
	MemberId   int
	Nickname   string
	Role       types.ParticipantRole
	Active     bool
	JoinedAt   time.Time
	LeftAt     sql.NullTime
	LastReadAt sql.NullTime
}

type Message struct {
	Id             int
	RoomId         int
	SenderId       sql.NullInt64
	SenderNickname sql.NullString
	Content        string
	Type           types.MessageType
	Deleted        bool
	DeletedAt      sql.NullTime
	Payload        sql.NullString
	CreatedAt      time.Time
}

type CreateRoomParams struct {
	ExternalId      string
	Name            string
	Description     string
	CreatorId       int
	CreatorNickname string
	MaxParticipants int
	Visibility      types.RoomVisibility
	PasswordHash    string
}

type CreateMessageParams struct {
	RoomId         int
	SenderId       *int
	SenderNickname string
	Content        string
	Type           types.MessageType
	Payload        string
}

type JoinRoomResult struct {
	Room        Room
	Participant Participant
}

// LeaveRoomResult reports everything a single leave transaction decided:
// the deactivated row, the promoted successor if ownership moved, and
// whether the room closed because the leaver was the last active participant.
type LeaveRoomResult struct {
	Room     Room
	Leaver   Participant
	Promoted *Participant
	Closed   bool
}
