package types

import (
	"time"
)

// RoomStatus is the lifecycle state of a room. A room is created ACTIVE and
// transitions at most once, to CLOSED or ARCHIVED.
type RoomStatus string

const (
	RoomStatusActive   RoomStatus = "ACTIVE"
	RoomStatusClosed   RoomStatus = "CLOSED"
	RoomStatusArchived RoomStatus = "ARCHIVED"
)

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusActive, RoomStatusClosed, RoomStatusArchived:
		return true
	}
	return false
}

type RoomVisibility string

const (
	RoomPublic  RoomVisibility = "PUBLIC"
	RoomPrivate RoomVisibility = "PRIVATE"
)

func (v RoomVisibility) Valid() bool {
	switch v {
	case RoomPublic, RoomPrivate:
		return true
	}
	return false
}

type ParticipantRole string

const (
	RoleCreator ParticipantRole = "CREATOR"
	RoleAdmin   ParticipantRole = "ADMIN"
	RoleMember  ParticipantRole = "MEMBER"
)

func (r ParticipantRole) Valid() bool {
	switch r {
	case RoleCreator, RoleAdmin, RoleMember:
		return true
	}
	return false
}

type MessageType string

const (
	MessageChat   MessageType = "CHAT"
	MessageJoin   MessageType = "JOIN"
	MessageLeave  MessageType = "LEAVE"
	MessageSystem MessageType = "SYSTEM"
	MessageFile   MessageType = "FILE"
	MessageImage  MessageType = "IMAGE"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageChat, MessageJoin, MessageLeave, MessageSystem, MessageFile, MessageImage:
		return true
	}
	return false
}

// Identity is the authenticated caller resolved by the connection gateway.
type Identity struct {
	MemberId int      `json:"member_id"`
	Nickname string   `json:"nickname"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

type Room struct {
	Id               int            `json:"id"`
	ExternalId       string         `json:"external_id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	CreatorId        int            `json:"creator_id"`
	MaxParticipants  int            `json:"max_participants"`
	ParticipantCount int            `json:"participant_count"`
	Status           RoomStatus     `json:"status"`
	Visibility       RoomVisibility `json:"visibility"`
	CreatedAt        time.Time      `json:"created_at,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at,omitempty"`

	// Caller-scoped annotations, populated on listings when the caller
	// is known.
	Participating bool `json:"participating"`
	UnreadCount   int  `json:"unread_count"`
}

type Participant struct {
	Id         int             `json:"id"`
	RoomId     int             `json:"room_id"`
	MemberId   int             `json:"member_id"`
	Nickname   string          `json:"nickname"`
	Role       ParticipantRole `json:"role"`
	Active     bool            `json:"active"`
	JoinedAt   time.Time       `json:"joined_at"`
	LeftAt     *time.Time      `json:"left_at,omitempty"`
	LastReadAt *time.Time      `json:"last_read_at,omitempty"`
}

type Message struct {
	Id        int         `json:"id"`
	RoomId    int         `json:"room_id"`
	SenderId  *int        `json:"sender_id,omitempty"`
	Nickname  string      `json:"nickname,omitempty"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	Deleted   bool        `json:"deleted,omitempty"`
	Payload   string      `json:"payload,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// MemberPresence is one entry of a room's live participant detail list.
type MemberPresence struct {
	MemberId     int       `json:"member_id"`
	Nickname     string    `json:"nickname"`
	Email        string    `json:"email,omitempty"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps a page request to sane bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size <= 0 || p.Size > 100 {
		p.Size = 20
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Size
}
