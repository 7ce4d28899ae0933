package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubhive/chat-service/internal/chat"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", chat.ErrNotFound, http.StatusNotFound},
		{"bad password", chat.ErrBadPassword, http.StatusUnauthorized},
		{"permission denied", chat.ErrPermissionDenied, http.StatusForbidden},
		{"already joined", chat.ErrAlreadyJoined, http.StatusConflict},
		{"not participating", chat.ErrNotParticipating, http.StatusConflict},
		{"room not joinable", chat.ErrRoomNotJoinable, http.StatusConflict},
		{"validation", chat.ErrValidation, http.StatusBadRequest},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := statusForError(tt.err)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestStatusForErrorWrapped(t *testing.T) {
	code, _ := statusForError(errors.Join(errors.New("ctx"), chat.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, code, "wrapped sentinels should still map")
}

func TestClientMessageDecoding(t *testing.T) {
	raw := `{"id":7,"publish":{"room_id":"room-ext","content":"hello","type":"CHAT"}}`

	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, 7, msg.Id)
	require.NotNil(t, msg.Publish)
	assert.Equal(t, "room-ext", msg.Publish.RoomId)
	assert.Nil(t, msg.Join)
	assert.Nil(t, msg.Leave)
	assert.Nil(t, msg.Read)
}

func TestLeaveExplicitFlag(t *testing.T) {
	var msg ClientMessage
	require.NoError(t, json.Unmarshal([]byte(`{"leave":{"room_id":"r1"}}`), &msg))
	require.NotNil(t, msg.Leave)
	assert.False(t, msg.Leave.Explicit, "explicit defaults to false")

	require.NoError(t, json.Unmarshal([]byte(`{"leave":{"room_id":"r1","explicit":true}}`), &msg))
	assert.True(t, msg.Leave.Explicit)
}

func TestServerMessageEncoding(t *testing.T) {
	data, err := json.Marshal(NoErrOK(3, map[string]string{"k": "v"}))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(3), decoded["id"])

	resp, ok := decoded["response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(http.StatusOK), resp["response_code"])
	assert.NotContains(t, decoded, "message", "unset envelope fields should be omitted")
	assert.NotContains(t, decoded, "notification")
}

func TestErrServiceUnavailable(t *testing.T) {
	msg := ErrServiceUnavailable(7)
	require.NotNil(t, msg.Response)
	assert.Equal(t, 7, msg.Id)
	assert.Equal(t, http.StatusServiceUnavailable, msg.Response.ResponseCode)
	assert.Equal(t, "service unavailable", msg.Response.Error)
}

func TestErrResponse(t *testing.T) {
	msg := ErrResponse(4, chat.ErrBadPassword)
	require.NotNil(t, msg.Response)
	assert.Equal(t, 4, msg.Id)
	assert.Equal(t, http.StatusUnauthorized, msg.Response.ResponseCode)
	assert.Equal(t, "bad password", msg.Response.Error)
}
