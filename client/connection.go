package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"campuschat/internal/domain"
	"campuschat/internal/events"
	"campuschat/internal/transport/httpdto"
	chat_errors "campuschat/pkg/errors"
)

// Connection lifecycle. Closed is terminal: a closed manager never
// dials again.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var ErrClosed = errors.New("connection manager closed")

// Conn is the transport under the manager. gorilla's *websocket.Conn
// satisfies it; tests substitute a pipe.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a transport to the server.
type Dialer func(ctx context.Context) (Conn, error)

// WebsocketDialer dials the real server endpoint with the issued token.
func WebsocketDialer(url, token string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url+"?token="+token, nil)
		return conn, err
	}
}

// ResyncFunc fetches messages after a sequence, normally backed by the
// REST resync endpoint.
type ResyncFunc func(ctx context.Context, conversationID uuid.UUID, afterSeq int64) ([]httpdto.MessagePayload, error)

type rpcRequest struct {
	CallID string          `json:"call_id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// serverFrame carries either an RPC response or an event envelope.
type serverFrame struct {
	CallID string          `json:"call_id"`
	OK     bool            `json:"ok"`
	Error  *rpcError       `json:"error"`
	Result json.RawMessage `json:"result"`

	EventID uuid.UUID       `json:"event_id"`
	Event   string          `json:"event"`
	Room    string          `json:"room"`
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

type pendingCall struct {
	done   chan struct{}
	result json.RawMessage
	err    error
}

// Manager owns one logical connection. On transport failure it moves to
// reconnecting, redials with exponential backoff, re-joins every room
// it had, and resyncs each conversation from the store's cursor, so a
// drop costs the user nothing but latency.
type Manager struct {
	dial   Dialer
	store  *StateStore
	resync ResyncFunc

	newBackOff func() backoff.BackOff
	maxRetries int

	mu      sync.Mutex
	state   State
	conn    Conn
	pending map[string]*pendingCall
	joined  map[uuid.UUID]struct{}

	stateCh chan State
	closed  chan struct{}
	once    sync.Once
}

type Option func(*Manager)

// WithBackOff replaces the reconnect schedule.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(m *Manager) { m.newBackOff = factory }
}

// WithResync wires the gap-fill fetch run after every reconnect.
func WithResync(fn ResyncFunc) Option {
	return func(m *Manager) { m.resync = fn }
}

// WithMaxRetries caps reconnection attempts. Once exhausted the manager
// parks in Disconnected and waits for an explicit Connect.
func WithMaxRetries(n int) Option {
	return func(m *Manager) { m.maxRetries = n }
}

func NewManager(dial Dialer, store *StateStore, opts ...Option) *Manager {
	m := &Manager{
		dial:       dial,
		store:      store,
		pending:    make(map[string]*pendingCall),
		joined:     make(map[uuid.UUID]struct{}),
		stateCh:    make(chan State, 16),
		closed:     make(chan struct{}),
		maxRetries: 10,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 16 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// States emits every transition, for UIs that surface connectivity.
func (m *Manager) States() <-chan State {
	return m.stateCh
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	select {
	case m.stateCh <- s:
	default:
	}
}

// Connect dials and starts the read loop. It returns once the first
// connection is up; reconnects after that are automatic.
func (m *Manager) Connect(ctx context.Context) error {
	if m.State() == StateClosed {
		return ErrClosed
	}
	m.setState(StateConnecting)

	conn, err := m.dial(ctx)
	if err != nil {
		m.setState(StateDisconnected)
		return err
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.setState(StateConnected)

	go m.readLoop(ctx, conn)
	return nil
}

// Close is terminal.
func (m *Manager) Close() error {
	m.once.Do(func() {
		close(m.closed)
		m.setState(StateClosed)
		m.mu.Lock()
		conn := m.conn
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
	})
	return nil
}

// Call performs one RPC and waits for its correlated response.
func (m *Manager) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	callID := uuid.New().String()
	call := &pendingCall{done: make(chan struct{})}

	m.mu.Lock()
	if m.state != StateConnected || m.conn == nil {
		m.mu.Unlock()
		return nil, chat_errors.ErrServiceUnavailable
	}
	conn := m.conn
	m.pending[callID] = call
	m.mu.Unlock()

	data, err := json.Marshal(rpcRequest{CallID: callID, Method: method, Params: raw})
	if err != nil {
		m.dropPending(callID)
		return nil, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.dropPending(callID)
		return nil, err
	}

	select {
	case <-ctx.Done():
		m.dropPending(callID)
		return nil, ctx.Err()
	case <-m.closed:
		return nil, ErrClosed
	case <-call.done:
		return call.result, call.err
	}
}

// JoinConversation joins the room and remembers it for re-join after a
// reconnect.
func (m *Manager) JoinConversation(ctx context.Context, conversationID uuid.UUID) error {
	if _, err := m.Call(ctx, "JoinConversation", map[string]any{"conversation_id": conversationID}); err != nil {
		return err
	}
	m.mu.Lock()
	m.joined[conversationID] = struct{}{}
	m.mu.Unlock()
	return nil
}

func (m *Manager) LeaveConversation(ctx context.Context, conversationID uuid.UUID) error {
	m.mu.Lock()
	delete(m.joined, conversationID)
	m.mu.Unlock()
	_, err := m.Call(ctx, "LeaveConversation", map[string]any{"conversation_id": conversationID})
	return err
}

func (m *Manager) SendMessage(ctx context.Context, conversationID uuid.UUID, content string, attachments []domain.Attachment, replyTo *uuid.UUID) (httpdto.MessagePayload, error) {
	result, err := m.Call(ctx, "SendMessage", map[string]any{
		"conversation_id":     conversationID,
		"content":             content,
		"attachments":         attachments,
		"reply_to_message_id": replyTo,
	})
	if err != nil {
		return httpdto.MessagePayload{}, err
	}
	var payload httpdto.MessagePayload
	if err := json.Unmarshal(result, &payload); err != nil {
		return httpdto.MessagePayload{}, err
	}
	// The sender's own message arrives via the RPC result, never as a
	// broadcast echo; merge it here.
	m.store.MergeMessages([]httpdto.MessagePayload{payload})
	return payload, nil
}

func (m *Manager) AddReaction(ctx context.Context, messageID uuid.UUID, emoji string) error {
	_, err := m.Call(ctx, "AddReaction", map[string]any{"message_id": messageID, "emoji": emoji})
	return err
}

func (m *Manager) RemoveReaction(ctx context.Context, messageID uuid.UUID, emoji string) error {
	_, err := m.Call(ctx, "RemoveReaction", map[string]any{"message_id": messageID, "emoji": emoji})
	return err
}

func (m *Manager) MarkAsRead(ctx context.Context, messageID uuid.UUID) error {
	_, err := m.Call(ctx, "MarkAsRead", map[string]any{"message_id": messageID})
	return err
}

func (m *Manager) SendTypingIndicator(ctx context.Context, conversationID uuid.UUID, isTyping bool) error {
	_, err := m.Call(ctx, "SendTypingIndicator", map[string]any{"conversation_id": conversationID, "is_typing": isTyping})
	return err
}

func (m *Manager) readLoop(ctx context.Context, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.failPending(err)
			select {
			case <-m.closed:
				return
			default:
			}
			m.reconnect(ctx)
			return
		}
		m.handleFrame(data)
	}
}

func (m *Manager) handleFrame(data []byte) {
	var frame serverFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}

	if frame.CallID != "" {
		m.mu.Lock()
		call, ok := m.pending[frame.CallID]
		delete(m.pending, frame.CallID)
		m.mu.Unlock()
		if !ok {
			return
		}
		if frame.OK {
			call.result = frame.Result
		} else if frame.Error != nil {
			call.err = errors.New(frame.Error.Code + ": " + frame.Error.Message)
		} else {
			call.err = chat_errors.ErrServiceUnavailable
		}
		close(call.done)
		return
	}

	if frame.Event != "" {
		env := events.Envelope{
			EventID: frame.EventID,
			Event:   frame.Event,
			Room:    frame.Room,
			Origin:  frame.Origin,
			Payload: frame.Payload,
		}
		_ = m.store.Apply(env)
	}
}

// reconnect redials forever (or until Close), then restores room state
// and closes the message gap.
func (m *Manager) reconnect(ctx context.Context) {
	m.setState(StateReconnecting)
	b := m.newBackOff()

	for attempt := 0; ; attempt++ {
		if m.maxRetries > 0 && attempt >= m.maxRetries {
			m.setState(StateDisconnected)
			return
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			m.setState(StateDisconnected)
			return
		}

		select {
		case <-m.closed:
			return
		case <-ctx.Done():
			m.setState(StateDisconnected)
			return
		case <-time.After(wait):
		}

		conn, err := m.dial(ctx)
		if err != nil {
			continue
		}

		m.mu.Lock()
		m.conn = conn
		rooms := make([]uuid.UUID, 0, len(m.joined))
		for id := range m.joined {
			rooms = append(rooms, id)
		}
		m.mu.Unlock()
		m.setState(StateConnected)

		go m.readLoop(ctx, conn)
		m.restore(ctx, rooms)
		return
	}
}

func (m *Manager) restore(ctx context.Context, rooms []uuid.UUID) {
	for _, id := range rooms {
		if _, err := m.Call(ctx, "JoinConversation", map[string]any{"conversation_id": id}); err != nil {
			continue
		}
		if m.resync == nil {
			continue
		}
		gap, err := m.resync(ctx, id, m.store.LastSeq(id))
		if err != nil {
			continue
		}
		m.store.MergeMessages(gap)
	}
}

func (m *Manager) dropPending(callID string) {
	m.mu.Lock()
	delete(m.pending, callID)
	m.mu.Unlock()
}

func (m *Manager) failPending(err error) {
	m.mu.Lock()
	for id, call := range m.pending {
		call.err = err
		close(call.done)
		delete(m.pending, id)
	}
	m.mu.Unlock()
}
