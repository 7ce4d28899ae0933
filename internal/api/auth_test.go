package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubhive/chat-service/internal/types"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	signingKey := []byte("test-signing-key")
	app := &ChatApp{signingKey: signingKey}

	identity := types.Identity{
		MemberId: 42,
		Nickname: "alice",
		Email:    "alice@example.com",
		Roles:    []string{"member", "moderator"},
	}

	token, err := CreateSessionToken(signingKey, identity, time.Hour)
	require.NoError(t, err)

	got, err := app.identityFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, identity, got)
}

func TestIdentityFromTokenWrongKey(t *testing.T) {
	token, err := CreateSessionToken([]byte("key-one"), types.Identity{MemberId: 1, Nickname: "alice"}, time.Hour)
	require.NoError(t, err)

	app := &ChatApp{signingKey: []byte("key-two")}
	_, err = app.identityFromToken(token)
	assert.Error(t, err)
}

func TestIdentityFromTokenExpired(t *testing.T) {
	signingKey := []byte("test-signing-key")
	token, err := CreateSessionToken(signingKey, types.Identity{MemberId: 1, Nickname: "alice"}, -time.Minute)
	require.NoError(t, err)

	app := &ChatApp{signingKey: signingKey}
	_, err = app.identityFromToken(token)
	assert.Error(t, err)
}

func TestIdentityFromTokenGarbage(t *testing.T) {
	app := &ChatApp{signingKey: []byte("test-signing-key")}
	_, err := app.identityFromToken("not-a-jwt")
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	identity := types.Identity{MemberId: 7, Nickname: "bob"}

	ctx := WithIdentity(context.Background(), identity)
	got, ok := CallerIdentity(ctx)
	require.True(t, ok)
	assert.Equal(t, identity, got)

	_, ok = CallerIdentity(context.Background())
	assert.False(t, ok)
}
