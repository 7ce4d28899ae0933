package chat

import (
	"log"
	"strings"
	"unicode/utf8"

	"github.com/clubhive/chat-service/internal/database"
	"github.com/clubhive/chat-service/internal/presence"
	"github.com/clubhive/chat-service/internal/types"
)

const maxContentLength = 1000

// MessageDispatcher runs a single send: validate, register the sender as
// present, persist, then hand off for fan-out. A persistence failure aborts
// the whole operation; a fan-out failure after a successful persist is the
// broadcaster's problem, the message already exists in history.
type MessageDispatcher struct {
	repo        database.ChatRepository
	presence    *presence.Registry
	broadcaster Broadcaster
	log         *log.Logger
}

func NewMessageDispatcher(repo database.ChatRepository, reg *presence.Registry, b Broadcaster, logger *log.Logger) *MessageDispatcher {
	return &MessageDispatcher{
		repo:        repo,
		presence:    reg,
		broadcaster: b,
		log:         logger,
	}
}

func validateContent(content string, msgType types.MessageType) error {
	switch msgType {
	case types.MessageChat:
		if strings.TrimSpace(content) == "" {
			return validationError("message content is empty")
		}
	case types.MessageFile, types.MessageImage:
		if content == "" {
			return validationError("attachment reference is empty")
		}
	default:
		return validationError("unsupported message type %q", msgType)
	}

	if utf8.RuneCountInString(content) > maxContentLength {
		return validationError("message content exceeds %d characters", maxContentLength)
	}

	return nil
}

// Send persists and fans out a member message to a room.
func (d *MessageDispatcher) Send(caller types.Identity, room types.Room, content string, msgType types.MessageType) (types.Message, error) {
	if caller.MemberId == 0 {
		return types.Message{}, ErrPermissionDenied
	}

	if err := validateContent(content, msgType); err != nil {
		return types.Message{}, err
	}

	// A sender who reconnected and published before an explicit join is
	// still registered as present, so live events reach them.
	d.presence.Join(room.ExternalId, caller.Nickname, caller.MemberId, caller.Email)
	d.presence.Touch(room.ExternalId, caller.Nickname)

	memberId := caller.MemberId
	dbMsg, err := d.repo.CreateMessage(database.CreateMessageParams{
		RoomId:         room.Id,
		SenderId:       &memberId,
		SenderNickname: caller.Nickname,
		Content:        content,
		Type:           msgType,
	})
	if err != nil {
		return types.Message{}, mapRepoError(err)
	}

	msg := toMessage(dbMsg)
	d.broadcaster.BroadcastMessage(room.ExternalId, msg)

	return msg, nil
}

// System persists and fans out a system-generated message (nil sender).
func (d *MessageDispatcher) System(room types.Room, msgType types.MessageType, content, payload string) {
	dbMsg, err := d.repo.CreateMessage(database.CreateMessageParams{
		RoomId:  room.Id,
		Content: content,
		Type:    msgType,
		Payload: payload,
	})
	if err != nil {
		// System messages are best effort; the triggering operation
		// already committed.
		d.log.Printf("persist system message for room %q: %v", room.ExternalId, err)
		return
	}

	d.broadcaster.BroadcastMessage(room.ExternalId, toMessage(dbMsg))
}

func (d *MessageDispatcher) Messages(room types.Room, page types.PageRequest) ([]types.Message, error) {
	msgs, err := d.repo.GetMessages(room.Id, page)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return toMessages(msgs), nil
}

func (d *MessageDispatcher) RecentMessages(room types.Room, limit int) ([]types.Message, error) {
	msgs, err := d.repo.GetRecentMessages(room.Id, limit)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return toMessages(msgs), nil
}

func (d *MessageDispatcher) UnreadCount(caller types.Identity, room types.Room) (int, error) {
	count, err := d.repo.CountUnread(room.Id, caller.MemberId)
	if err != nil {
		return 0, mapRepoError(err)
	}
	return count, nil
}

func (d *MessageDispatcher) MarkRead(caller types.Identity, room types.Room) error {
	return mapRepoError(d.repo.UpdateLastReadAt(room.Id, caller.MemberId))
}

// DeleteMessage soft-deletes. Only the original sender may delete. The
// redacted message fans out so live clients blank it without a reload.
func (d *MessageDispatcher) DeleteMessage(caller types.Identity, messageId int) (types.Message, error) {
	msg, err := d.repo.SoftDeleteMessage(messageId, caller.MemberId)
	if err != nil {
		return types.Message{}, mapRepoError(err)
	}

	deleted := toMessage(msg)
	if room, err := d.repo.GetRoomById(msg.RoomId); err == nil {
		d.broadcaster.BroadcastMessage(room.ExternalId, deleted)
	} else {
		d.log.Printf("lookup room %d for deleted message: %v", msg.RoomId, err)
	}

	return deleted, nil
}
