package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"campuschat/internal/events"
	"campuschat/internal/repository"
	"campuschat/internal/services"
	"campuschat/internal/transport/httpdto"
	chat_errors "campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

// Presence marks users online while they hold at least one connection.
type Presence interface {
	SetOnline(ctx context.Context, userID string) error
	SetOffline(ctx context.Context, userID string) error
}

// Handler upgrades authenticated HTTP requests into hub connections.
// Authentication failures answer over plain HTTP before any upgrade, so
// a bad token never reaches the websocket layer.
type Handler struct {
	auth          *services.AuthService
	hub           *Hub
	router        *Router
	presence      Presence
	publisher     events.Publisher
	conversations repository.ConversationRepository
	log           *logger.Logger

	mu    sync.Mutex
	conns map[uuid.UUID]int
}

func NewHandler(auth *services.AuthService, hub *Hub, router *Router, presence Presence, publisher events.Publisher, conversations repository.ConversationRepository, log *logger.Logger) *Handler {
	return &Handler{
		auth:          auth,
		hub:           hub,
		router:        router,
		presence:      presence,
		publisher:     publisher,
		conversations: conversations,
		log:           log,
		conns:         make(map[uuid.UUID]int),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("missing token", chat_errors.Code(chat_errors.ErrUnauthorized)))
		return
	}
	userID, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("invalid token", chat_errors.Code(chat_errors.ErrUnauthorized)))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade: %v", err)
		return
	}

	client := NewClient(h.hub, h.router, conn, userID, h.log)
	h.hub.Register(client)
	// Connections always see their own user room.
	h.hub.Subscribe(client, events.RoomPrefixUser+userID.String())

	h.markOnline(c.Request.Context(), userID)
	defer h.markOffline(context.Background(), userID)

	go client.writePump()
	client.readPump(c.Request.Context())
}

// markOnline publishes a status change only for the user's first live
// connection; a second device joining stays silent.
func (h *Handler) markOnline(ctx context.Context, userID uuid.UUID) {
	h.mu.Lock()
	h.conns[userID]++
	first := h.conns[userID] == 1
	h.mu.Unlock()
	if !first {
		return
	}

	if h.presence != nil {
		if err := h.presence.SetOnline(ctx, userID.String()); err != nil {
			h.log.Warnf("presence set online %s: %v", userID, err)
		}
	}
	h.publishStatus(ctx, userID, true)
}

// markOffline runs on every connection close but only the last device
// going away takes the user offline.
func (h *Handler) markOffline(ctx context.Context, userID uuid.UUID) {
	h.mu.Lock()
	h.conns[userID]--
	last := h.conns[userID] <= 0
	if last {
		delete(h.conns, userID)
	}
	h.mu.Unlock()
	if !last {
		return
	}

	if h.presence != nil {
		if err := h.presence.SetOffline(ctx, userID.String()); err != nil {
			h.log.Warnf("presence set offline %s: %v", userID, err)
		}
	}
	h.publishStatus(ctx, userID, false)
}

// publishStatus fans the change out to every conversation the user is
// in, so the people who talk to them see it, plus the user's own room
// for their other devices.
func (h *Handler) publishStatus(ctx context.Context, userID uuid.UUID, online bool) {
	if h.publisher == nil {
		return
	}
	rooms := []string{events.RoomPrefixUser + userID.String()}
	if h.conversations != nil {
		convs, err := h.conversations.ListForUser(ctx, userID)
		if err != nil {
			h.log.Warnf("list conversations for status of %s: %v", userID, err)
		}
		for _, conv := range convs {
			rooms = append(rooms, events.RoomPrefixConversation+conv.ID.String())
		}
	}

	for _, room := range rooms {
		env, err := events.NewEnvelope(events.EventUserStatusChanged, room, httpdto.StatusPayload{
			UserID:   userID,
			IsOnline: online,
		})
		if err != nil {
			h.log.Errorf("marshal status envelope: %v", err)
			return
		}
		if err := h.publisher.Publish(ctx, env); err != nil {
			h.log.Errorf("publish status to %s: %v", room, err)
		}
	}
}
