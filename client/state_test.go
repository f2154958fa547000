package client

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"campuschat/internal/events"
	"campuschat/internal/transport/httpdto"
)

func envelope(t *testing.T, event, room string, payload any) events.Envelope {
	t.Helper()
	env, err := events.NewEnvelope(event, room, payload)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	return env
}

func messagePayload(convID, sender uuid.UUID, seq int64, content string) httpdto.MessagePayload {
	return httpdto.MessagePayload{
		ID:             uuid.New(),
		ConversationID: convID,
		SenderID:       sender,
		SeqID:          seq,
		Content:        content,
		Type:           "TEXT",
		SentAt:         time.Now(),
	}
}

func TestApplyDeduplicatesByEventID(t *testing.T) {
	self := uuid.New()
	store := NewStateStore(self)
	conv := uuid.New()

	env := envelope(t, events.EventReceiveMessage, "room:conversation:"+conv.String(), messagePayload(conv, uuid.New(), 1, "once"))
	if err := store.Apply(env); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := store.Apply(env); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if got := len(store.Messages(conv)); got != 1 {
		t.Fatalf("messages = %d, want 1", got)
	}
	if got := store.Unread(conv); got != 1 {
		t.Fatalf("unread = %d, want 1 after replay", got)
	}
}

func TestBroadcastAndResyncConverge(t *testing.T) {
	store := NewStateStore(uuid.New())
	conv := uuid.New()
	msg := messagePayload(conv, uuid.New(), 3, "same message twice")

	env := envelope(t, events.EventReceiveMessage, "room:conversation:"+conv.String(), msg)
	if err := store.Apply(env); err != nil {
		t.Fatalf("apply: %v", err)
	}
	// The resync page carries the same message under a fresh fetch.
	store.MergeMessages([]httpdto.MessagePayload{msg})

	msgs := store.Messages(conv)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want exactly 1", len(msgs))
	}
	if store.LastSeq(conv) != 3 {
		t.Fatalf("LastSeq = %d, want 3", store.LastSeq(conv))
	}
}

func TestResyncRepairsReactionsAndReads(t *testing.T) {
	store := NewStateStore(uuid.New())
	conv := uuid.New()
	reader := uuid.New()
	msg := messagePayload(conv, uuid.New(), 1, "seen live, decorated later")

	env := envelope(t, events.EventReceiveMessage, "room:conversation:"+conv.String(), msg)
	if err := store.Apply(env); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// The reaction and read-receipt frames were dropped; the next resync
	// page carries them on the same message.
	page := msg
	page.Reactions = []httpdto.ReactionEntry{{Emoji: "👍", UserIDs: []uuid.UUID{reader}}}
	page.ReadBy = []uuid.UUID{reader}
	store.MergeMessages([]httpdto.MessagePayload{page})

	msgs := store.Messages(conv)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if len(msgs[0].Reactions) != 1 || msgs[0].Reactions[0].Emoji != "👍" || len(msgs[0].Reactions[0].UserIDs) != 1 {
		t.Fatalf("reactions = %+v, want the resynced 👍", msgs[0].Reactions)
	}
	if len(msgs[0].ReadBy) != 1 || msgs[0].ReadBy[0] != reader {
		t.Fatalf("read by = %v, want [%s]", msgs[0].ReadBy, reader)
	}

	// The union runs both ways: a live reaction survives a page that
	// predates it.
	if err := store.Apply(envelope(t, events.EventReactionAdded, "room:conversation:"+conv.String(), httpdto.ReactionPayload{
		MessageID:      msg.ID,
		ConversationID: conv,
		UserID:         uuid.New(),
		Emoji:          "😂",
	})); err != nil {
		t.Fatalf("apply reaction: %v", err)
	}
	store.MergeMessages([]httpdto.MessagePayload{page})
	if got := len(store.Messages(conv)[0].Reactions); got != 2 {
		t.Fatalf("reactions after stale page = %d, want 2", got)
	}
}

func TestMergeOrdersBySequence(t *testing.T) {
	store := NewStateStore(uuid.New())
	conv := uuid.New()
	sender := uuid.New()

	// Resync pages can arrive out of order.
	store.MergeMessages([]httpdto.MessagePayload{
		messagePayload(conv, sender, 3, "third"),
		messagePayload(conv, sender, 1, "first"),
		messagePayload(conv, sender, 2, "second"),
	})

	msgs := store.Messages(conv)
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Content != want {
			t.Fatalf("msgs[%d] = %q, want %q", i, msgs[i].Content, want)
		}
	}
}

func TestUnreadCounters(t *testing.T) {
	self := uuid.New()
	store := NewStateStore(self)
	active, background := uuid.New(), uuid.New()
	other := uuid.New()
	store.SetActiveConversation(active)

	// A stranger's message in a background conversation counts.
	_ = store.Apply(envelope(t, events.EventReceiveMessage, "r", messagePayload(background, other, 1, "psst")))
	// The same in the active conversation does not.
	_ = store.Apply(envelope(t, events.EventReceiveMessage, "r", messagePayload(active, other, 1, "hey")))
	// Nor does the user's own message anywhere.
	_ = store.Apply(envelope(t, events.EventReceiveMessage, "r", messagePayload(background, self, 2, "mine")))
	// History pages never count as new activity.
	store.MergeMessages([]httpdto.MessagePayload{messagePayload(background, other, 3, "old news")})

	if got := store.Unread(background); got != 1 {
		t.Fatalf("background unread = %d, want 1", got)
	}
	if got := store.Unread(active); got != 0 {
		t.Fatalf("active unread = %d, want 0", got)
	}

	// Opening the conversation clears it.
	store.SetActiveConversation(background)
	if got := store.Unread(background); got != 0 {
		t.Fatalf("unread after opening = %d, want 0", got)
	}
}

func TestReactionMergeIdempotent(t *testing.T) {
	store := NewStateStore(uuid.New())
	conv := uuid.New()
	msg := messagePayload(conv, uuid.New(), 1, "react")
	store.MergeMessages([]httpdto.MessagePayload{msg})

	reactor := uuid.New()
	add := httpdto.ReactionPayload{MessageID: msg.ID, ConversationID: conv, UserID: reactor, Emoji: "🔥", Count: 1}
	_ = store.Apply(envelope(t, events.EventReactionAdded, "r", add))
	_ = store.Apply(envelope(t, events.EventReactionAdded, "r", add))

	got := store.Messages(conv)[0].Reactions
	if len(got) != 1 || len(got[0].UserIDs) != 1 {
		t.Fatalf("reactions = %+v, want one user under one emoji", got)
	}

	remove := add
	_ = store.Apply(envelope(t, events.EventReactionRemoved, "r", remove))
	_ = store.Apply(envelope(t, events.EventReactionRemoved, "r", remove))
	if got := store.Messages(conv)[0].Reactions; len(got) != 0 {
		t.Fatalf("reactions after removal = %+v, want none", got)
	}
}

func TestReadReceiptsUnion(t *testing.T) {
	store := NewStateStore(uuid.New())
	conv := uuid.New()
	msg := messagePayload(conv, uuid.New(), 1, "seen")
	store.MergeMessages([]httpdto.MessagePayload{msg})

	reader := uuid.New()
	read := httpdto.ReadPayload{MessageID: msg.ID, ConversationID: conv, UserID: reader, ReadAt: time.Now()}
	_ = store.Apply(envelope(t, events.EventMessageRead, "r", read))
	_ = store.Apply(envelope(t, events.EventMessageRead, "r", read))

	if got := store.Messages(conv)[0].ReadBy; len(got) != 1 || got[0] != reader {
		t.Fatalf("ReadBy = %v, want [%s]", got, reader)
	}
}

func TestDeleteRedactsLocally(t *testing.T) {
	store := NewStateStore(uuid.New())
	conv := uuid.New()
	msg := messagePayload(conv, uuid.New(), 1, "secret")
	store.MergeMessages([]httpdto.MessagePayload{msg})

	_ = store.Apply(envelope(t, events.EventMessageDeleted, "r", httpdto.MessageDeletedPayload{
		MessageID:      msg.ID,
		ConversationID: conv,
		DeletedAt:      time.Now(),
	}))

	got := store.Messages(conv)[0]
	if !got.IsDeleted || got.Content != "" {
		t.Fatalf("deleted message still carries content: %+v", got)
	}
	// Ordering survives: the tombstone keeps its sequence slot.
	if got.SeqID != 1 {
		t.Fatalf("SeqID = %d, want 1", got.SeqID)
	}
}

func TestTypingAndPresence(t *testing.T) {
	store := NewStateStore(uuid.New())
	conv := uuid.New()
	typist := uuid.New()

	_ = store.Apply(envelope(t, events.EventUserTyping, "r", httpdto.TypingPayload{ConversationID: conv, UserID: typist, IsTyping: true}))
	if got := store.TypingUsers(conv); len(got) != 1 || got[0] != typist {
		t.Fatalf("TypingUsers = %v", got)
	}
	_ = store.Apply(envelope(t, events.EventUserTyping, "r", httpdto.TypingPayload{ConversationID: conv, UserID: typist, IsTyping: false}))
	if got := store.TypingUsers(conv); len(got) != 0 {
		t.Fatalf("TypingUsers after stop = %v", got)
	}

	user := uuid.New()
	_ = store.Apply(envelope(t, events.EventUserStatusChanged, "r", httpdto.StatusPayload{UserID: user, IsOnline: true}))
	if !store.IsOnline(user) {
		t.Fatalf("user should be online")
	}
	_ = store.Apply(envelope(t, events.EventUserStatusChanged, "r", httpdto.StatusPayload{UserID: user, IsOnline: false}))
	if store.IsOnline(user) {
		t.Fatalf("user should be offline")
	}
}

func TestEditReplacesInPlace(t *testing.T) {
	store := NewStateStore(uuid.New())
	conv := uuid.New()
	msg := messagePayload(conv, uuid.New(), 1, "tyop")
	store.MergeMessages([]httpdto.MessagePayload{msg})

	edited := msg
	edited.Content = "typo"
	now := time.Now()
	edited.EditedAt = &now
	_ = store.Apply(envelope(t, events.EventMessageEdited, "r", edited))

	msgs := store.Messages(conv)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].Content != "typo" || msgs[0].EditedAt == nil {
		t.Fatalf("edit not applied: %+v", msgs[0])
	}
}
