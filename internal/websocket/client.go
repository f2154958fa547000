package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"campuschat/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// Client is one live websocket connection for an authenticated user.
// A user may hold several clients at once (phone plus laptop); each
// carries its own room set and rate budget.
type Client struct {
	ID     string
	UserID uuid.UUID

	conn    *websocket.Conn
	send    chan []byte
	limiter *connRateLimiter

	mu    sync.RWMutex
	rooms map[string]struct{}

	hub    *Hub
	router *Router
	log    *logger.Logger
}

func NewClient(hub *Hub, router *Router, conn *websocket.Conn, userID uuid.UUID, log *logger.Logger) *Client {
	return &Client{
		ID:      uuid.New().String(),
		UserID:  userID,
		conn:    conn,
		send:    make(chan []byte, 256),
		limiter: newConnRateLimiter(),
		rooms:   make(map[string]struct{}),
		hub:     hub,
		router:  router,
		log:     log,
	}
}

func (c *Client) trackRoom(room string) {
	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
}

func (c *Client) untrackRoom(room string) {
	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

// Rooms returns a snapshot of the rooms this connection has joined.
func (c *Client) Rooms() map[string]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]struct{}, len(c.rooms))
	for room := range c.rooms {
		out[room] = struct{}{}
	}
	return out
}

// Enqueue hands a frame to the write pump without blocking. A full
// buffer drops the frame; the client closes the gap on resync.
func (c *Client) Enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warnf("websocket unexpected close user=%s conn=%s: %v", c.UserID, c.ID, err)
			}
			return
		}
		resp := c.router.Dispatch(ctx, c, data)
		c.writeResponse(resp)
	}
}

func (c *Client) writeResponse(resp Response) {
	data, err := resp.marshal()
	if err != nil {
		c.log.Errorf("marshal rpc response: %v", err)
		return
	}
	c.Enqueue(data)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
