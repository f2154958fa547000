package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"campuschat/internal/commands"
	"campuschat/internal/domain"
	"campuschat/internal/events"
	"campuschat/internal/repository"
	"campuschat/internal/services"
	"campuschat/internal/transport/httpdto"
	"campuschat/pkg/logger"
)

type testServer struct {
	srv  *httptest.Server
	hub  *Hub
	auth *services.AuthService

	conversations *repository.MemoryConversationRepository
	messages      *repository.MemoryMessageRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	conversations := repository.NewMemoryConversationRepository()
	messages := repository.NewMemoryMessageRepository()
	channels := repository.NewMemoryChannelRepository()

	bus := events.NewLocalBus()
	cmdBus := commands.NewBus()
	services.NewMessageService(conversations, messages, bus, log).RegisterHandlers(cmdBus)
	services.NewConversationService(conversations, bus, log).RegisterHandlers(cmdBus)

	hub := NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	bridge := NewBridge(bus, hub)
	if err := bridge.Run(ctx); err != nil {
		t.Fatalf("bridge: %v", err)
	}

	auth := services.NewAuthService("test-secret", time.Hour)
	router := NewRouter(cmdBus, NewRoomAuthorizer(conversations, channels), hub, 5*time.Second, log)
	handler := NewHandler(auth, hub, router, nil, bus, conversations, log)

	engine := gin.New()
	engine.GET("/ws", handler.Connect)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return &testServer{
		srv:           srv,
		hub:           hub,
		auth:          auth,
		conversations: conversations,
		messages:      messages,
	}
}

func (ts *testServer) dial(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	token, err := ts.auth.IssueToken(userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (ts *testServer) groupConversation(t *testing.T, creator uuid.UUID, others ...uuid.UUID) *domain.Conversation {
	t.Helper()
	conv, err := domain.NewGroupConversation("lab group", creator, others)
	if err != nil {
		t.Fatalf("NewGroupConversation: %v", err)
	}
	if err := ts.conversations.Create(context.Background(), conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv
}

// wireFrame is either an RPC response (call_id set) or an event
// envelope (event set); a single read may yield either.
type wireFrame struct {
	CallID string          `json:"call_id"`
	OK     bool            `json:"ok"`
	Error  *ErrorBody      `json:"error"`
	Result json.RawMessage `json:"result"`

	EventID uuid.UUID       `json:"event_id"`
	Event   string          `json:"event"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	return f
}

// awaitEvent skips unrelated frames until the named event arrives.
func awaitEvent(t *testing.T, conn *websocket.Conn, event string) wireFrame {
	t.Helper()
	for i := 0; i < 10; i++ {
		f := readFrame(t, conn)
		if f.Event == event {
			return f
		}
	}
	t.Fatalf("event %s never arrived", event)
	return wireFrame{}
}

// awaitResponse skips event frames until the RPC answer arrives.
func awaitResponse(t *testing.T, conn *websocket.Conn, callID string) wireFrame {
	t.Helper()
	for i := 0; i < 10; i++ {
		f := readFrame(t, conn)
		if f.CallID == callID {
			return f
		}
	}
	t.Fatalf("response for %s never arrived", callID)
	return wireFrame{}
}

func call(t *testing.T, conn *websocket.Conn, method string, params any) string {
	t.Helper()
	callID := uuid.New().String()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	if err := conn.WriteJSON(Frame{CallID: callID, Method: method, Params: raw}); err != nil {
		t.Fatalf("write %s: %v", method, err)
	}
	return callID
}

func joinRoom(t *testing.T, ts *testServer, conn *websocket.Conn, conversationID uuid.UUID, wantSize int) {
	t.Helper()
	callID := call(t, conn, MethodJoinConversation, map[string]any{"conversation_id": conversationID})
	resp := awaitResponse(t, conn, callID)
	if !resp.OK {
		t.Fatalf("join rejected: %+v", resp.Error)
	}

	room := events.RoomPrefixConversation + conversationID.String()
	deadline := time.Now().Add(2 * time.Second)
	for ts.hub.RoomSize(room) < wantSize {
		if time.Now().After(deadline) {
			t.Fatalf("room %s size = %d, want %d", room, ts.hub.RoomSize(room), wantSize)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectRejectsBadToken(t *testing.T) {
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("dial with bad token succeeded")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401 before upgrade, got %+v", resp)
	}
}

func TestSendMessageFansOutWithoutEcho(t *testing.T) {
	ts := newTestServer(t)
	alice, bob := uuid.New(), uuid.New()
	conv := ts.groupConversation(t, alice, bob)

	aliceConn := ts.dial(t, alice)
	bobConn := ts.dial(t, bob)
	joinRoom(t, ts, aliceConn, conv.ID, 1)
	joinRoom(t, ts, bobConn, conv.ID, 2)

	callID := call(t, aliceConn, MethodSendMessage, map[string]any{
		"conversation_id": conv.ID,
		"content":         "hello room",
	})

	// Bob gets the broadcast.
	env := awaitEvent(t, bobConn, events.EventReceiveMessage)
	var msg struct {
		Content string `json:"content"`
		SeqID   int64  `json:"seq_id"`
	}
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if msg.Content != "hello room" || msg.SeqID != 1 {
		t.Fatalf("payload = %+v", msg)
	}

	// Alice gets the RPC result but never an echo of her own event.
	resp := awaitResponse(t, aliceConn, callID)
	if !resp.OK {
		t.Fatalf("send failed: %+v", resp.Error)
	}
	_ = aliceConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := aliceConn.ReadMessage(); err == nil {
		var f wireFrame
		_ = json.Unmarshal(data, &f)
		if f.Event == events.EventReceiveMessage {
			t.Fatalf("sender received an echo of their own message")
		}
	}
}

func TestJoinRejectedForNonParticipant(t *testing.T) {
	ts := newTestServer(t)
	conv := ts.groupConversation(t, uuid.New(), uuid.New())

	outsider := uuid.New()
	conn := ts.dial(t, outsider)
	callID := call(t, conn, MethodJoinConversation, map[string]any{"conversation_id": conv.ID})
	resp := awaitResponse(t, conn, callID)
	if resp.OK {
		t.Fatalf("outsider joined a private conversation")
	}
	if resp.Error == nil || resp.Error.Code != "FORBIDDEN" {
		t.Fatalf("error = %+v, want FORBIDDEN", resp.Error)
	}
	if ts.hub.RoomSize(events.RoomPrefixConversation+conv.ID.String()) != 0 {
		t.Fatalf("rejected client still counted in room")
	}
}

func TestReactionRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	alice, bob := uuid.New(), uuid.New()
	conv := ts.groupConversation(t, alice, bob)

	aliceConn := ts.dial(t, alice)
	bobConn := ts.dial(t, bob)
	joinRoom(t, ts, aliceConn, conv.ID, 1)
	joinRoom(t, ts, bobConn, conv.ID, 2)

	sendID := call(t, aliceConn, MethodSendMessage, map[string]any{
		"conversation_id": conv.ID,
		"content":         "react to this",
	})
	sendResp := awaitResponse(t, aliceConn, sendID)
	if !sendResp.OK {
		t.Fatalf("send failed: %+v", sendResp.Error)
	}
	var sent struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(sendResp.Result, &sent); err != nil {
		t.Fatalf("decode send result: %v", err)
	}

	reactID := call(t, bobConn, MethodAddReaction, map[string]any{
		"message_id": sent.ID,
		"emoji":      "👍",
	})
	env := awaitEvent(t, aliceConn, events.EventReactionAdded)
	var reaction struct {
		Emoji string `json:"emoji"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal(env.Payload, &reaction); err != nil {
		t.Fatalf("decode reaction payload: %v", err)
	}
	if reaction.Emoji != "👍" || reaction.Count != 1 {
		t.Fatalf("reaction payload = %+v", reaction)
	}
	if resp := awaitResponse(t, bobConn, reactID); !resp.OK {
		t.Fatalf("reaction rpc failed: %+v", resp.Error)
	}
}

func TestUnknownMethodAnswersWithError(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, uuid.New())
	callID := call(t, conn, "SelfDestruct", map[string]any{})
	resp := awaitResponse(t, conn, callID)
	if resp.OK || resp.Error == nil || resp.Error.Code != "VALIDATION" {
		t.Fatalf("response = %+v, want VALIDATION error", resp)
	}
}

func TestResyncAfterReconnectDeliversExactlyOnce(t *testing.T) {
	ts := newTestServer(t)
	alice, bob := uuid.New(), uuid.New()
	conv := ts.groupConversation(t, alice, bob)

	log := logger.NewNop()
	bus := events.NewLocalBus()
	msgSvc := services.NewMessageService(ts.conversations, ts.messages, bus, log)

	aliceConn := ts.dial(t, alice)
	bobConn := ts.dial(t, bob)
	joinRoom(t, ts, aliceConn, conv.ID, 1)
	joinRoom(t, ts, bobConn, conv.ID, 2)

	firstID := call(t, aliceConn, MethodSendMessage, map[string]any{
		"conversation_id": conv.ID,
		"content":         "before the drop",
	})
	first := awaitEvent(t, bobConn, events.EventReceiveMessage)
	if resp := awaitResponse(t, aliceConn, firstID); !resp.OK {
		t.Fatalf("send failed: %+v", resp.Error)
	}
	var seen struct {
		SeqID int64 `json:"seq_id"`
	}
	if err := json.Unmarshal(first.Payload, &seen); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Bob drops; Alice keeps talking into the gap.
	_ = bobConn.Close()
	secondID := call(t, aliceConn, MethodSendMessage, map[string]any{
		"conversation_id": conv.ID,
		"content":         "into the gap",
	})
	if resp := awaitResponse(t, aliceConn, secondID); !resp.OK {
		t.Fatalf("send failed: %+v", resp.Error)
	}

	// Bob reconnects and resyncs from his last seen sequence: the missed
	// message arrives exactly once.
	gap, err := msgSvc.Resync(context.Background(), conv.ID, bob, seen.SeqID, 0)
	if err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if len(gap) != 1 {
		t.Fatalf("gap = %d messages, want 1", len(gap))
	}
	if gap[0].Content != "into the gap" || gap[0].SeqID != seen.SeqID+1 {
		t.Fatalf("gap[0] = %+v", gap[0])
	}
}

// awaitStatus reads frames until a UserStatusChanged for the given user
// arrives; other users' presence and unrelated events are skipped.
func awaitStatus(t *testing.T, conn *websocket.Conn, userID uuid.UUID) httpdto.StatusPayload {
	t.Helper()
	for i := 0; i < 20; i++ {
		f := readFrame(t, conn)
		if f.Event != events.EventUserStatusChanged {
			continue
		}
		var p httpdto.StatusPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		if p.UserID == userID {
			return p
		}
	}
	t.Fatalf("status for %s never arrived", userID)
	return httpdto.StatusPayload{}
}

func TestPresenceReachesConversationMembers(t *testing.T) {
	ts := newTestServer(t)
	alice, bob := uuid.New(), uuid.New()
	conv := ts.groupConversation(t, alice, bob)

	bobConn := ts.dial(t, bob)
	joinRoom(t, ts, bobConn, conv.ID, 1)

	// Alice connects without ever joining the room; her presence still
	// reaches the conversations she belongs to.
	aliceConn := ts.dial(t, alice)
	if p := awaitStatus(t, bobConn, alice); !p.IsOnline {
		t.Fatalf("first status for alice = offline, want online")
	}

	_ = aliceConn.Close()
	if p := awaitStatus(t, bobConn, alice); p.IsOnline {
		t.Fatalf("status after disconnect = online, want offline")
	}
}

type statusRecorder struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (r *statusRecorder) Publish(_ context.Context, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func (r *statusRecorder) rooms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.envs))
	for _, env := range r.envs {
		out = append(out, env.Room)
	}
	return out
}

func TestPresenceCountsConnectionsPerUser(t *testing.T) {
	rec := &statusRecorder{}
	conversations := repository.NewMemoryConversationRepository()
	alice := uuid.New()
	conv, err := domain.NewGroupConversation("late shift", alice, []uuid.UUID{uuid.New()})
	if err != nil {
		t.Fatalf("NewGroupConversation: %v", err)
	}
	if err := conversations.Create(context.Background(), conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	h := NewHandler(nil, nil, nil, nil, rec, conversations, logger.NewNop())
	ctx := context.Background()

	// Phone connects, then laptop: only the first transition publishes.
	h.markOnline(ctx, alice)
	h.markOnline(ctx, alice)
	wantRooms := []string{
		events.RoomPrefixUser + alice.String(),
		events.RoomPrefixConversation + conv.ID.String(),
	}
	got := rec.rooms()
	if len(got) != len(wantRooms) || got[0] != wantRooms[0] || got[1] != wantRooms[1] {
		t.Fatalf("rooms after double connect = %v, want %v", got, wantRooms)
	}

	// Phone disconnects: alice is still on the laptop, nothing fires.
	h.markOffline(ctx, alice)
	if got := rec.rooms(); len(got) != 2 {
		t.Fatalf("events after partial disconnect = %d, want 2", len(got))
	}

	// Laptop disconnects: now the offline change fans out.
	h.markOffline(ctx, alice)
	got = rec.rooms()
	if len(got) != 4 {
		t.Fatalf("events after last disconnect = %d, want 4", len(got))
	}
	var offline httpdto.StatusPayload
	if err := json.Unmarshal(rec.envs[2].Payload, &offline); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if offline.IsOnline || offline.UserID != alice {
		t.Fatalf("payload = %+v, want alice offline", offline)
	}
}
