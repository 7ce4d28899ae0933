package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubhive/chat-service/internal/chat"
	"github.com/clubhive/chat-service/internal/database"
	"github.com/clubhive/chat-service/internal/presence"
	"github.com/clubhive/chat-service/internal/stats"
	"github.com/clubhive/chat-service/internal/testutil"
	"github.com/clubhive/chat-service/internal/types"
)

func newTestChatServer(t *testing.T, repo *database.MockChatRepository, su stats.StatsProvider) *ChatServer {
	t.Helper()

	logger := testutil.TestLogger(t)
	reg := presence.NewRegistry()
	b := NewBroadcaster(logger, su, nil)
	dispatcher := chat.NewMessageDispatcher(repo, reg, b, logger)
	service, err := chat.NewRoomService(repo, reg, b, dispatcher, logger)
	require.NoError(t, err)

	return NewChatServer(logger, service, dispatcher, b, su)
}

func TestRegisterDeregister(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	cs := newTestChatServer(t, &database.MockChatRepository{}, su)

	go cs.Run()

	c := &Client{
		chatServer: cs,
		log:        testutil.TestLogger(t),
		identity:   types.Identity{MemberId: 1, Nickname: "alice"},
		send:       make(chan *ServerMessage, 1),
		rooms:      make(map[string]struct{}),
		stop:       make(chan struct{}),
	}

	require.NoError(t, cs.RegisterClient(c))
	assert.Eventually(t, func() bool {
		cs.clientsLock.Lock()
		defer cs.clientsLock.Unlock()
		_, ok := cs.clients[c]
		return ok
	}, time.Second, 10*time.Millisecond, "client should be registered")
	assert.Eventually(t, func() bool {
		incr, _ := su.Calls()
		return len(incr) == 1 && incr[0] == stats.ActiveConnections
	}, time.Second, 10*time.Millisecond)

	cs.deRegisterChan <- c
	assert.Eventually(t, func() bool {
		cs.clientsLock.Lock()
		defer cs.clientsLock.Unlock()
		_, ok := cs.clients[c]
		return !ok
	}, time.Second, 10*time.Millisecond, "client should be removed")
	assert.Eventually(t, func() bool {
		_, decr := su.Calls()
		return len(decr) == 1 && decr[0] == stats.ActiveConnections
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, cs.Shutdown(ctx))
}

func TestShutdownStopsClients(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

	go cs.Run()

	c := &Client{
		chatServer: cs,
		log:        testutil.TestLogger(t),
		send:       make(chan *ServerMessage, 1),
		rooms:      make(map[string]struct{}),
		stop:       make(chan struct{}),
	}
	cs.RegisterChan <- c

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, cs.Shutdown(ctx))

	select {
	case <-c.stop:
	case <-time.After(time.Second):
		t.Error("client was not stopped on shutdown")
	}
}

func TestRegisterRejectedDuringShutdown(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{}, &stats.MockStatsUpdater{})

	go cs.Run()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, cs.Shutdown(ctx))

	c := &Client{
		chatServer: cs,
		log:        testutil.TestLogger(t),
		send:       make(chan *ServerMessage, 1),
		rooms:      make(map[string]struct{}),
		stop:       make(chan struct{}),
	}
	assert.ErrorIs(t, cs.RegisterClient(c), ErrShuttingDown)
}

func TestQueueMessage(t *testing.T) {
	c := &Client{
		log:  testutil.TestLogger(t),
		send: make(chan *ServerMessage, 1),
	}

	assert.True(t, c.queueMessage(NoErrAccepted(1)))
	assert.False(t, c.queueMessage(NoErrAccepted(2)), "full queue should drop")
	assert.Len(t, c.send, 1)
}

func TestRoomTracking(t *testing.T) {
	c := &Client{
		log:   testutil.TestLogger(t),
		rooms: make(map[string]struct{}),
	}

	assert.False(t, c.inRoom("room-1"))
	c.addRoom("room-1")
	assert.True(t, c.inRoom("room-1"))
	c.delRoom("room-1")
	assert.False(t, c.inRoom("room-1"))
}
