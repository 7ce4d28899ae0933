package server

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/clubhive/chat-service/internal/chat"
	"github.com/clubhive/chat-service/internal/stats"
)

// ChatServer owns the set of connected clients and routes their lifecycle.
// Inbound commands run on each client's own goroutine; the run loop only
// serializes connection registration and shutdown.
type ChatServer struct {
	log            *log.Logger
	service        *chat.RoomService
	dispatcher     *chat.MessageDispatcher
	broadcaster    *Broadcaster
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	clientsLock    sync.Mutex
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	stop           chan struct{}
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, service *chat.RoomService, dispatcher *chat.MessageDispatcher, b *Broadcaster, sp stats.StatsProvider) *ChatServer {
	return &ChatServer{
		log:            logger,
		service:        service,
		dispatcher:     dispatcher,
		broadcaster:    b,
		stats:          sp,
		clients:        make(map[*Client]struct{}),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.RegisterChan:
			cs.log.Printf("adding connection %s for member %d", client.session, client.identity.MemberId)
			cs.addClient(client)
		case client := <-cs.deRegisterChan:
			cs.log.Printf("removing connection %s for member %d", client.session, client.identity.MemberId)
			cs.removeClient(client)
		case <-cs.stop:
			cs.log.Println("closing client connections")
			cs.clientsLock.Lock()
			for c := range cs.clients {
				c.stopClient()
			}
			cs.clientsLock.Unlock()

			close(cs.done)
			return
		}
	}
}

// ErrShuttingDown is returned for connections arriving after shutdown has
// begun; the run loop no longer accepts registrations.
var ErrShuttingDown = errors.New("chat server is shutting down")

func (cs *ChatServer) RegisterClient(c *Client) error {
	select {
	case cs.RegisterChan <- c:
		return nil
	case <-cs.stop:
		return ErrShuttingDown
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	cs.clients[c] = struct{}{}
	cs.clientsLock.Unlock()

	cs.broadcaster.addClient(c)
	cs.stats.Incr(stats.ActiveConnections)
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	_, ok := cs.clients[c]
	delete(cs.clients, c)
	cs.clientsLock.Unlock()

	if ok {
		cs.broadcaster.removeClient(c)
		cs.stats.Decr(stats.ActiveConnections)
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")
	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
