package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"campuschat/internal/events"
	"campuschat/pkg/logger"
)

type subscriptionRequest struct {
	client    *Client
	room      string
	subscribe bool
}

// Hub tracks live connections and which room each one has joined, and
// fans envelopes out to room members. The envelope's Origin connection
// is skipped so a caller never receives an echo of its own RPC.
type Hub struct {
	mu sync.RWMutex

	clients map[string]*Client
	rooms   map[string]map[*Client]struct{}

	register     chan *Client
	unregister   chan *Client
	subscription chan subscriptionRequest

	log *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:      make(map[string]*Client),
		rooms:        make(map[string]map[*Client]struct{}),
		register:     make(chan *Client, 256),
		unregister:   make(chan *Client, 256),
		subscription: make(chan subscriptionRequest, 512),
		log:          log,
	}
}

// Run drives the hub's event loop until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case req := <-h.subscription:
			if req.subscribe {
				h.joinRoom(req.client, req.room)
			} else {
				h.leaveRoom(req.client, req.room)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) Subscribe(client *Client, room string) {
	h.subscription <- subscriptionRequest{client: client, room: room, subscribe: true}
}

func (h *Hub) Unsubscribe(client *Client, room string) {
	h.subscription <- subscriptionRequest{client: client, room: room, subscribe: false}
}

// Broadcast delivers an envelope to every member of its room except the
// origin connection. Sends are non-blocking: a member whose buffer is
// full misses the frame and recovers via resync.
func (h *Hub) Broadcast(env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Errorf("marshal envelope %s: %v", env.Event, err)
		return
	}

	h.mu.RLock()
	for c := range h.rooms[env.Room] {
		if env.Origin != "" && c.ID == env.Origin {
			continue
		}
		c.Enqueue(data)
	}
	h.mu.RUnlock()
}

// BroadcastToUser reaches every connection a user currently has open.
func (h *Hub) BroadcastToUser(userID string, env events.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Errorf("marshal envelope %s: %v", env.Event, err)
		return
	}

	h.mu.RLock()
	for _, c := range h.clients {
		if c.UserID.String() == userID {
			c.Enqueue(data)
		}
	}
	h.mu.RUnlock()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for room := range client.Rooms() {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.clients, client.ID)
	close(client.send)
}

func (h *Hub) joinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.trackRoom(room)
}

func (h *Hub) leaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.untrackRoom(room)
}
