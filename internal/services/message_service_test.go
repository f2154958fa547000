package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"campuschat/internal/commands"
	"campuschat/internal/domain"
	"campuschat/internal/events"
	"campuschat/internal/repository"
	chat_errors "campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

// eventRecorder is a Publisher that remembers every envelope it saw.
type eventRecorder struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (r *eventRecorder) Publish(_ context.Context, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func (r *eventRecorder) all() []events.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Envelope, len(r.envs))
	copy(out, r.envs)
	return out
}

func (r *eventRecorder) named(event string) []events.Envelope {
	var out []events.Envelope
	for _, env := range r.all() {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

type messageFixture struct {
	conversations *repository.MemoryConversationRepository
	messages      *repository.MemoryMessageRepository
	recorder      *eventRecorder
	svc           *MessageService
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	f := &messageFixture{
		conversations: repository.NewMemoryConversationRepository(),
		messages:      repository.NewMemoryMessageRepository(),
		recorder:      &eventRecorder{},
	}
	f.svc = NewMessageService(f.conversations, f.messages, f.recorder, logger.NewNop())
	return f
}

func (f *messageFixture) group(t *testing.T, creator uuid.UUID, others ...uuid.UUID) *domain.Conversation {
	t.Helper()
	conv, err := domain.NewGroupConversation("study group", creator, others)
	if err != nil {
		t.Fatalf("NewGroupConversation: %v", err)
	}
	if err := f.conversations.Create(context.Background(), conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	return conv
}

func (f *messageFixture) send(t *testing.T, conv *domain.Conversation, sender uuid.UUID, content string) uuid.UUID {
	t.Helper()
	payload, err := f.svc.Send(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID,
		SenderID:       sender,
		Content:        content,
	})
	if err != nil {
		t.Fatalf("Send(%q): %v", content, err)
	}
	return payload.ID
}

func TestSendPersistsAndPublishes(t *testing.T) {
	f := newMessageFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv := f.group(t, alice, bob)

	payload, err := f.svc.Send(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID,
		SenderID:       alice,
		Content:        "hello",
		Origin:         commands.Origin{ConnectionID: "conn-1"},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if payload.SeqID != 1 {
		t.Fatalf("first message SeqID = %d, want 1", payload.SeqID)
	}
	if payload.Type != domain.MessageTypeText {
		t.Fatalf("Type = %q, want TEXT", payload.Type)
	}

	envs := f.recorder.named(events.EventReceiveMessage)
	if len(envs) != 1 {
		t.Fatalf("ReceiveMessage events = %d, want 1", len(envs))
	}
	if want := events.RoomPrefixConversation + conv.ID.String(); envs[0].Room != want {
		t.Fatalf("Room = %q, want %q", envs[0].Room, want)
	}
	if envs[0].Origin != "conn-1" {
		t.Fatalf("Origin = %q, want conn-1", envs[0].Origin)
	}

	stored, err := f.conversations.GetByID(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("reload conversation: %v", err)
	}
	if stored.LastMessageAt == nil || !stored.LastMessageAt.Equal(payload.SentAt) {
		t.Fatalf("LastMessageAt not advanced to the new message")
	}
}

func TestSendToArchivedConversation(t *testing.T) {
	f := newMessageFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv := f.group(t, alice, bob)
	conv.Archive(time.Now())
	if err := f.conversations.Update(context.Background(), conv); err != nil {
		t.Fatalf("archive: %v", err)
	}

	_, err := f.svc.Send(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID,
		SenderID:       alice,
		Content:        "too late",
	})
	if !errors.Is(err, chat_errors.ErrConversationArchived) {
		t.Fatalf("err = %v, want ErrConversationArchived", err)
	}
	if len(f.recorder.all()) != 0 {
		t.Fatalf("no events expected for a rejected send")
	}
}

func TestSendRejectsNonParticipant(t *testing.T) {
	f := newMessageFixture(t)
	conv := f.group(t, uuid.New(), uuid.New())

	_, err := f.svc.Send(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID,
		SenderID:       uuid.New(),
		Content:        "hi",
	})
	if !errors.Is(err, chat_errors.ErrNotParticipant) {
		t.Fatalf("err = %v, want ErrNotParticipant", err)
	}
}

func TestReplyMustStayInConversation(t *testing.T) {
	f := newMessageFixture(t)
	alice, bob := uuid.New(), uuid.New()
	convA := f.group(t, alice, bob)
	convB := f.group(t, alice, bob)
	original := f.send(t, convA, alice, "original")

	_, err := f.svc.Send(context.Background(), commands.SendMessageCommand{
		ConversationID:   convB.ID,
		SenderID:         bob,
		Content:          "cross reply",
		ReplyToMessageID: &original,
	})
	if !errors.Is(err, chat_errors.ErrReplyWrongConversation) {
		t.Fatalf("err = %v, want ErrReplyWrongConversation", err)
	}
}

func TestToggleReactionRetrySafe(t *testing.T) {
	f := newMessageFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv := f.group(t, alice, bob)
	msgID := f.send(t, conv, alice, "react to me")

	add := commands.ToggleReactionCommand{MessageID: msgID, UserID: bob, Emoji: "👍", Add: true}
	if _, err := f.svc.ToggleReaction(context.Background(), add); err != nil {
		t.Fatalf("add: %v", err)
	}
	// Retrying the add must not fire a second event.
	if _, err := f.svc.ToggleReaction(context.Background(), add); err != nil {
		t.Fatalf("add retry: %v", err)
	}
	if got := len(f.recorder.named(events.EventReactionAdded)); got != 1 {
		t.Fatalf("ReactionAdded events = %d, want 1", got)
	}

	remove := add
	remove.Add = false
	payload, err := f.svc.ToggleReaction(context.Background(), remove)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(payload.Reactions) != 0 {
		t.Fatalf("reactions survive removal: %v", payload.Reactions)
	}
	if _, err := f.svc.ToggleReaction(context.Background(), remove); err != nil {
		t.Fatalf("remove retry: %v", err)
	}
	if got := len(f.recorder.named(events.EventReactionRemoved)); got != 1 {
		t.Fatalf("ReactionRemoved events = %d, want 1", got)
	}
}

func TestMarkReadOnlyBroadcastsFirstRead(t *testing.T) {
	f := newMessageFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv := f.group(t, alice, bob)
	msgID := f.send(t, conv, alice, "read me")

	first := time.Now()
	cmd := commands.MarkReadCommand{MessageID: msgID, UserID: bob, ReadAt: first}
	if err := f.svc.MarkRead(context.Background(), cmd); err != nil {
		t.Fatalf("first read: %v", err)
	}
	cmd.ReadAt = first.Add(time.Hour)
	if err := f.svc.MarkRead(context.Background(), cmd); err != nil {
		t.Fatalf("second read: %v", err)
	}

	if got := len(f.recorder.named(events.EventMessageRead)); got != 1 {
		t.Fatalf("MessageRead events = %d, want 1", got)
	}
	stored, _ := f.messages.GetByID(context.Background(), msgID)
	if !stored.ReadReceipts[bob].Equal(first) {
		t.Fatalf("read timestamp moved on re-read")
	}
}

func TestEditOnlyBySender(t *testing.T) {
	f := newMessageFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv := f.group(t, alice, bob)
	msgID := f.send(t, conv, alice, "draft")

	_, err := f.svc.Edit(context.Background(), commands.EditMessageCommand{
		MessageID: msgID,
		EditorID:  bob,
		Content:   "hijacked",
	})
	if !errors.Is(err, chat_errors.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}

	payload, err := f.svc.Edit(context.Background(), commands.EditMessageCommand{
		MessageID: msgID,
		EditorID:  alice,
		Content:   "final",
	})
	if err != nil {
		t.Fatalf("edit by sender: %v", err)
	}
	if payload.EditedAt == nil {
		t.Fatalf("EditedAt not set after edit")
	}
}

func TestDeleteRedactsAndBlocksEdit(t *testing.T) {
	f := newMessageFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv := f.group(t, alice, bob)
	msgID := f.send(t, conv, alice, "ephemeral")

	if err := f.svc.Delete(context.Background(), commands.DeleteMessageCommand{MessageID: msgID, UserID: alice}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := len(f.recorder.named(events.EventMessageDeleted)); got != 1 {
		t.Fatalf("MessageDeleted events = %d, want 1", got)
	}

	_, err := f.svc.Edit(context.Background(), commands.EditMessageCommand{
		MessageID: msgID,
		EditorID:  alice,
		Content:   "resurrect",
	})
	if !errors.Is(err, chat_errors.ErrMessageDeleted) {
		t.Fatalf("err = %v, want ErrMessageDeleted", err)
	}
}

func TestTypingRequiresParticipant(t *testing.T) {
	f := newMessageFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv := f.group(t, alice, bob)

	err := f.svc.Typing(context.Background(), commands.TypingCommand{
		ConversationID: conv.ID,
		UserID:         uuid.New(),
		IsTyping:       true,
	})
	if !errors.Is(err, chat_errors.ErrNotParticipant) {
		t.Fatalf("err = %v, want ErrNotParticipant", err)
	}

	if err := f.svc.Typing(context.Background(), commands.TypingCommand{
		ConversationID: conv.ID,
		UserID:         bob,
		IsTyping:       true,
	}); err != nil {
		t.Fatalf("typing by participant: %v", err)
	}
	if got := len(f.recorder.named(events.EventUserTyping)); got != 1 {
		t.Fatalf("UserTyping events = %d, want 1", got)
	}
}

func TestMessageMutationsRequireParticipant(t *testing.T) {
	f := newMessageFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv := f.group(t, alice, bob)
	msgID := f.send(t, conv, alice, "members only")

	outsider := uuid.New()
	_, err := f.svc.ToggleReaction(context.Background(), commands.ToggleReactionCommand{
		MessageID: msgID,
		UserID:    outsider,
		Emoji:     "👍",
		Add:       true,
	})
	if !errors.Is(err, chat_errors.ErrNotParticipant) {
		t.Fatalf("outsider ToggleReaction err = %v, want ErrNotParticipant", err)
	}

	err = f.svc.MarkRead(context.Background(), commands.MarkReadCommand{
		MessageID: msgID,
		UserID:    outsider,
	})
	if !errors.Is(err, chat_errors.ErrNotParticipant) {
		t.Fatalf("outsider MarkRead err = %v, want ErrNotParticipant", err)
	}

	if got := len(f.recorder.all()); got != 1 {
		t.Fatalf("events = %d, want only the original send", got)
	}

	// A participant who is not the sender can still react and read.
	if _, err := f.svc.ToggleReaction(context.Background(), commands.ToggleReactionCommand{
		MessageID: msgID,
		UserID:    bob,
		Emoji:     "👍",
		Add:       true,
	}); err != nil {
		t.Fatalf("participant ToggleReaction: %v", err)
	}
	if err := f.svc.MarkRead(context.Background(), commands.MarkReadCommand{
		MessageID: msgID,
		UserID:    bob,
	}); err != nil {
		t.Fatalf("participant MarkRead: %v", err)
	}
}

func TestResyncReturnsOnlyTheGap(t *testing.T) {
	f := newMessageFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv := f.group(t, alice, bob)
	f.send(t, conv, alice, "one")
	f.send(t, conv, bob, "two")
	f.send(t, conv, alice, "three")

	gap, err := f.svc.Resync(context.Background(), conv.ID, bob, 1, 0)
	if err != nil {
		t.Fatalf("Resync: %v", err)
	}
	if len(gap) != 2 {
		t.Fatalf("gap length = %d, want 2", len(gap))
	}
	if gap[0].SeqID != 2 || gap[1].SeqID != 3 {
		t.Fatalf("gap sequence = [%d %d], want [2 3]", gap[0].SeqID, gap[1].SeqID)
	}
	if gap[0].Content != "two" || gap[1].Content != "three" {
		t.Fatalf("gap contents out of order: %q %q", gap[0].Content, gap[1].Content)
	}

	if _, err := f.svc.Resync(context.Background(), conv.ID, uuid.New(), 0, 0); !errors.Is(err, chat_errors.ErrNotParticipant) {
		t.Fatalf("resync by outsider: err = %v, want ErrNotParticipant", err)
	}
}

func TestHistoryPagesBackwards(t *testing.T) {
	f := newMessageFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv := f.group(t, alice, bob)
	for _, content := range []string{"a", "b", "c", "d"} {
		f.send(t, conv, alice, content)
	}

	page, err := f.svc.History(context.Background(), conv.ID, bob, 4, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page length = %d, want 2", len(page))
	}
	if page[0].SeqID != 3 || page[1].SeqID != 2 {
		t.Fatalf("page sequence = [%d %d], want [3 2]", page[0].SeqID, page[1].SeqID)
	}
}

func TestCommandBusRoutesToHandlers(t *testing.T) {
	f := newMessageFixture(t)
	alice, bob := uuid.New(), uuid.New()
	conv := f.group(t, alice, bob)

	bus := commands.NewBus()
	f.svc.RegisterHandlers(bus)

	res, err := bus.Execute(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID,
		SenderID:       alice,
		Content:        "via bus",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.AggregateID == "" {
		t.Fatalf("AggregateID empty")
	}

	// Validation runs before dispatch.
	if _, err := bus.Execute(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID,
		SenderID:       alice,
	}); !errors.Is(err, chat_errors.ErrEmptyContent) {
		t.Fatalf("err = %v, want ErrEmptyContent", err)
	}
}
