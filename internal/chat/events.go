package chat

import (
	"github.com/clubhive/chat-service/internal/types"
)

// RoomListEventType tags events on the global room-list channel.
type RoomListEventType string

const (
	RoomListCreated      RoomListEventType = "room_created"
	RoomListCountChanged RoomListEventType = "room_count_changed"
	RoomListDeleted      RoomListEventType = "room_deleted"
)

// RoomListEvent keeps room-discovery views current without polling.
type RoomListEvent struct {
	Type RoomListEventType `json:"type"`
	Room types.Room        `json:"room"`
}

// RoomNotification carries the full current presence state of a room, not a
// diff, so a newly-subscribing client can resync from a single event.
type RoomNotification struct {
	RoomId           string                 `json:"room_id"`
	OnlineCount      int                    `json:"online_count"`
	OnlineIdentities []string               `json:"online_identities"`
	Participants     []types.MemberPresence `json:"participants"`
	ParticipantCount int                    `json:"participant_count"`
}

// Broadcaster fans events out to current subscribers. Delivery is
// at-most-once and never confirmed; implementations must not block the
// caller.
type Broadcaster interface {
	BroadcastMessage(roomId string, msg types.Message)
	BroadcastRoomNotification(n RoomNotification)
	BroadcastRoomList(ev RoomListEvent)
}
