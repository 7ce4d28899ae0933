package chat

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clubhive/chat-service/internal/database"
	"github.com/clubhive/chat-service/internal/presence"
	"github.com/clubhive/chat-service/internal/testutil"
	"github.com/clubhive/chat-service/internal/types"
)

func newTestDispatcher(t *testing.T, repo *database.MockChatRepository) (*MessageDispatcher, *fakeBroadcaster, *presence.Registry) {
	t.Helper()

	reg := presence.NewRegistry()
	b := &fakeBroadcaster{}
	return NewMessageDispatcher(repo, reg, b, testutil.TestLogger(t)), b, reg
}

func testRoom() types.Room {
	return types.Room{Id: 10, ExternalId: "room-ext", Name: "Morning Run"}
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		msgType types.MessageType
		wantErr bool
	}{
		{"chat message", "hello", types.MessageChat, false},
		{"empty chat", "   ", types.MessageChat, true},
		{"over limit", strings.Repeat("a", maxContentLength+1), types.MessageChat, true},
		{"at limit", strings.Repeat("a", maxContentLength), types.MessageChat, false},
		{"multibyte at limit", strings.Repeat("ü", maxContentLength), types.MessageChat, false},
		{"file reference", "uploads/report.pdf", types.MessageFile, false},
		{"empty file reference", "", types.MessageFile, true},
		{"image reference", "uploads/photo.png", types.MessageImage, false},
		{"join not client-sendable", "x", types.MessageJoin, true},
		{"system not client-sendable", "x", types.MessageSystem, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContent(tt.content, tt.msgType)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSend(t *testing.T) {
	t.Run("anonymous sender rejected", func(t *testing.T) {
		d, _, _ := newTestDispatcher(t, &database.MockChatRepository{})
		_, err := d.Send(types.Identity{}, testRoom(), "hi", types.MessageChat)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("persist failure aborts broadcast", func(t *testing.T) {
		repo := &database.MockChatRepository{}
		d, b, _ := newTestDispatcher(t, repo)

		repo.On("CreateMessage", mock.Anything).
			Return(database.Message{}, errors.New("connection reset"))

		_, err := d.Send(alice, testRoom(), "hi", types.MessageChat)
		assert.ErrorIs(t, err, ErrInternal)
		assert.Empty(t, b.messages, "no fan-out when persist fails")
	})

	t.Run("persists then broadcasts", func(t *testing.T) {
		repo := &database.MockChatRepository{}
		d, b, reg := newTestDispatcher(t, repo)

		repo.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
			return p.RoomId == 10 &&
				p.SenderId != nil && *p.SenderId == alice.MemberId &&
				p.SenderNickname == "alice" &&
				p.Content == "hi" && p.Type == types.MessageChat
		})).Return(database.Message{
			Id:             100,
			RoomId:         10,
			SenderId:       sql.NullInt64{Int64: 1, Valid: true},
			SenderNickname: sql.NullString{String: "alice", Valid: true},
			Content:        "hi",
			Type:           types.MessageChat,
		}, nil)

		msg, err := d.Send(alice, testRoom(), "hi", types.MessageChat)
		require.NoError(t, err)
		assert.Equal(t, 100, msg.Id)
		require.NotNil(t, msg.SenderId)
		assert.Equal(t, 1, *msg.SenderId)
		assert.Equal(t, "alice", msg.Nickname)

		require.Len(t, b.messages, 1)
		assert.Equal(t, 100, b.messages[0].Id)
		assert.True(t, reg.IsPresent("room-ext", "alice"), "sender should be registered as present")
	})
}

func TestSystem(t *testing.T) {
	t.Run("persist failure is swallowed", func(t *testing.T) {
		repo := &database.MockChatRepository{}
		d, b, _ := newTestDispatcher(t, repo)

		repo.On("CreateMessage", mock.Anything).
			Return(database.Message{}, errors.New("connection reset"))

		d.System(testRoom(), types.MessageJoin, "alice joined the room", "")
		assert.Empty(t, b.messages)
	})

	t.Run("nil sender", func(t *testing.T) {
		repo := &database.MockChatRepository{}
		d, b, _ := newTestDispatcher(t, repo)

		repo.On("CreateMessage", mock.MatchedBy(func(p database.CreateMessageParams) bool {
			return p.SenderId == nil && p.Type == types.MessageJoin
		})).Return(database.Message{Id: 101, RoomId: 10, Type: types.MessageJoin}, nil)

		d.System(testRoom(), types.MessageJoin, "alice joined the room", "")
		require.Len(t, b.messages, 1)
		assert.Nil(t, b.messages[0].SenderId)
	})
}

func TestDeleteMessage(t *testing.T) {
	t.Run("not the sender", func(t *testing.T) {
		repo := &database.MockChatRepository{}
		d, _, _ := newTestDispatcher(t, repo)

		repo.On("SoftDeleteMessage", 100, alice.MemberId).
			Return(database.Message{}, database.ErrNotSender)

		_, err := d.DeleteMessage(alice, 100)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("replaces content and fans out redaction", func(t *testing.T) {
		repo := &database.MockChatRepository{}
		d, b, _ := newTestDispatcher(t, repo)

		repo.On("SoftDeleteMessage", 100, alice.MemberId).Return(database.Message{
			Id:      100,
			RoomId:  10,
			Content: database.DeletedPlaceholder,
			Type:    types.MessageChat,
			Deleted: true,
		}, nil)
		repo.On("GetRoomById", 10).Return(database.Room{Id: 10, ExternalId: "room-ext"}, nil)

		msg, err := d.DeleteMessage(alice, 100)
		require.NoError(t, err)
		assert.True(t, msg.Deleted)
		assert.Equal(t, database.DeletedPlaceholder, msg.Content)

		require.Len(t, b.messages, 1)
		assert.True(t, b.messages[0].Deleted)
	})
}

func TestMarkReadAndUnread(t *testing.T) {
	repo := &database.MockChatRepository{}
	d, _, _ := newTestDispatcher(t, repo)

	repo.On("UpdateLastReadAt", 10, alice.MemberId).Return(nil)
	repo.On("CountUnread", 10, alice.MemberId).Return(0, nil)

	require.NoError(t, d.MarkRead(alice, testRoom()))
	count, err := d.UnreadCount(alice, testRoom())
	require.NoError(t, err)
	assert.Zero(t, count)
	repo.AssertExpectations(t)
}
