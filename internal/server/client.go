package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/clubhive/chat-service/internal/stats"
	"github.com/clubhive/chat-service/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one websocket session for an authenticated member. A member can
// hold several sessions; durable membership is per member, live delivery is
// per session.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	identity   types.Identity
	session    uuid.UUID
	send       chan *ServerMessage
	rooms      map[string]struct{}
	roomsLock  sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(identity types.Identity, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		identity:   identity,
		session:    uuid.New(),
		send:       make(chan *ServerMessage, 256),
		rooms:      make(map[string]struct{}),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		switch {
		case msg.Join != nil:
			c.handleJoin(&msg)
		case msg.Leave != nil:
			c.handleLeave(&msg)
		case msg.Publish != nil:
			c.handlePublish(&msg)
		case msg.Read != nil:
			c.handleRead(&msg)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

// handleJoin attaches this session to a room's live channels. Durable
// membership must already exist; joining the roster is a REST operation.
func (c *Client) handleJoin(msg *ClientMessage) {
	notification, err := c.chatServer.service.EnterRoom(c.identity, msg.Join.RoomId)
	if err != nil {
		c.queueMessage(ErrResponse(msg.Id, err))
		return
	}

	c.chatServer.broadcaster.Subscribe(c, msg.Join.RoomId)
	c.addRoom(msg.Join.RoomId)

	c.queueMessage(NoErrOK(msg.Id, notification))
}

func (c *Client) handleLeave(msg *ClientMessage) {
	outcome, err := c.chatServer.service.LeaveLive(c.identity, msg.Leave.RoomId, msg.Leave.Explicit)
	if err != nil {
		c.queueMessage(ErrResponse(msg.Id, err))
		return
	}

	c.chatServer.broadcaster.Unsubscribe(c, msg.Leave.RoomId)
	c.delRoom(msg.Leave.RoomId)

	c.queueMessage(NoErrOK(msg.Id, outcome))
}

func (c *Client) handlePublish(msg *ClientMessage) {
	room, err := c.chatServer.service.GetRoom(msg.Publish.RoomId)
	if err != nil {
		c.queueMessage(ErrResponse(msg.Id, err))
		return
	}

	msgType := msg.Publish.Type
	if msgType == "" {
		msgType = types.MessageChat
	}

	if _, err := c.chatServer.dispatcher.Send(c.identity, room, msg.Publish.Content, msgType); err != nil {
		c.queueMessage(ErrResponse(msg.Id, err))
		return
	}

	// Publishing registers the sender as present, so the session should
	// also receive the room's live events from here on.
	if !c.inRoom(room.ExternalId) {
		c.chatServer.broadcaster.Subscribe(c, room.ExternalId)
		c.addRoom(room.ExternalId)
	}

	c.chatServer.stats.Incr(stats.MessagesSent)
	c.queueMessage(NoErrAccepted(msg.Id))
}

func (c *Client) handleRead(msg *ClientMessage) {
	room, err := c.chatServer.service.GetRoom(msg.Read.RoomId)
	if err != nil {
		c.queueMessage(ErrResponse(msg.Id, err))
		return
	}

	if err := c.chatServer.dispatcher.MarkRead(c.identity, room); err != nil {
		c.queueMessage(ErrResponse(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, nil))
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send queue full for session %s, dropping message", c.session)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// cleanup runs on connection teardown. A disconnect is not a leave: it only
// drops live presence, never the durable roster.
func (c *Client) cleanup() {
	c.roomsLock.Lock()
	rooms := make([]string, 0, len(c.rooms))
	for roomId := range c.rooms {
		rooms = append(rooms, roomId)
	}
	c.rooms = make(map[string]struct{})
	c.roomsLock.Unlock()

	for _, roomId := range rooms {
		if _, err := c.chatServer.service.LeaveLive(c.identity, roomId, false); err != nil {
			c.log.Printf("presence cleanup for room %q: %v", roomId, err)
		}
	}

	// During shutdown the run loop no longer drains the channel.
	select {
	case c.chatServer.deRegisterChan <- c:
	case <-c.chatServer.stop:
	}
	c.stopClient()
}

func (c *Client) addRoom(roomId string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()
	c.rooms[roomId] = struct{}{}
}

func (c *Client) delRoom(roomId string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()
	delete(c.rooms, roomId)
}

func (c *Client) inRoom(roomId string) bool {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()
	_, ok := c.rooms[roomId]
	return ok
}
