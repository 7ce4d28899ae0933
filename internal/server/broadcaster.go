package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clubhive/chat-service/internal/chat"
	"github.com/clubhive/chat-service/internal/stats"
	"github.com/clubhive/chat-service/internal/types"
)

const publishTimeout = 2 * time.Second

// Redis channels mirroring local fan-out, for out-of-process consumers.
const (
	roomMessageChannelPrefix = "chat:room:"
	roomMessageChannelSuffix = ":messages"
	roomNotifyChannelSuffix  = ":notifications"
	roomListChannel          = "chat:rooms"
)

// Broadcaster fans events out to the websocket clients subscribed to each
// room and to every connected client for room-list events. Delivery is
// fire-and-forget: a client whose send queue is full misses the event and
// resyncs from durable state on its next read.
type Broadcaster struct {
	log   *log.Logger
	stats stats.StatsProvider

	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}

	// rdb, when configured, mirrors every event onto pub/sub channels.
	rdb *redis.Client
}

func NewBroadcaster(logger *log.Logger, sp stats.StatsProvider, rdb *redis.Client) *Broadcaster {
	return &Broadcaster{
		log:     logger,
		stats:   sp,
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		rdb:     rdb,
	}
}

func (b *Broadcaster) addClient(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[c] = struct{}{}
}

func (b *Broadcaster) removeClient(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.clients, c)
	for roomId, subs := range b.rooms {
		delete(subs, c)
		if len(subs) == 0 {
			delete(b.rooms, roomId)
			b.stats.Decr(stats.LiveRooms)
		}
	}
}

func (b *Broadcaster) Subscribe(c *Client, roomId string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.rooms[roomId]
	if !ok {
		subs = make(map[*Client]struct{})
		b.rooms[roomId] = subs
		b.stats.Incr(stats.LiveRooms)
	}
	subs[c] = struct{}{}
}

func (b *Broadcaster) Unsubscribe(c *Client, roomId string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.rooms[roomId]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(b.rooms, roomId)
			b.stats.Decr(stats.LiveRooms)
		}
	}
}

func (b *Broadcaster) SubscriberCount(roomId string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[roomId])
}

// BroadcastMessage delivers a chat or system message to a room's
// subscribers.
func (b *Broadcaster) BroadcastMessage(roomId string, msg types.Message) {
	b.toRoom(roomId, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Message:     &msg,
	})
	b.mirror(roomMessageChannelPrefix+roomId+roomMessageChannelSuffix, msg)
}

// BroadcastRoomNotification delivers the room's full presence state to its
// subscribers.
func (b *Broadcaster) BroadcastRoomNotification(n chat.RoomNotification) {
	b.toRoom(n.RoomId, &ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: Now()},
		Notification: &Notification{Room: &n},
	})
	b.mirror(roomMessageChannelPrefix+n.RoomId+roomNotifyChannelSuffix, n)
}

// BroadcastRoomList delivers a room-list change to every connected client.
func (b *Broadcaster) BroadcastRoomList(ev chat.RoomListEvent) {
	msg := &ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: Now()},
		Notification: &Notification{RoomList: &ev},
	}

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if !c.queueMessage(msg) {
			b.stats.Incr(stats.MessagesDropped)
		}
	}

	b.mirror(roomListChannel, ev)
}

func (b *Broadcaster) toRoom(roomId string, msg *ServerMessage) {
	b.mu.RLock()
	subs := make([]*Client, 0, len(b.rooms[roomId]))
	for c := range b.rooms[roomId] {
		subs = append(subs, c)
	}
	b.mu.RUnlock()

	for _, c := range subs {
		if !c.queueMessage(msg) {
			b.stats.Incr(stats.MessagesDropped)
		}
	}
}

func (b *Broadcaster) mirror(channel string, v any) {
	if b.rdb == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		b.log.Printf("marshal event for %q: %v", channel, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.rdb.Publish(ctx, channel, data).Err(); err != nil {
		// Mirror failures never fail the operation: local delivery
		// already happened and durable state is authoritative.
		b.log.Printf("publish to %q: %v", channel, err)
	}
}
