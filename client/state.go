package client

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"campuschat/internal/events"
	"campuschat/internal/transport/httpdto"
)

// seenEventCap bounds the duplicate-detection window. Events older than
// the window cannot be deduplicated, but by then a replay is harmless:
// every merge below is idempotent anyway.
const seenEventCap = 2048

type conversationState struct {
	byID    map[uuid.UUID]*httpdto.MessagePayload
	order   []uuid.UUID
	typing  map[uuid.UUID]bool
	unread  int
	lastSeq int64
}

func newConversationState() *conversationState {
	return &conversationState{
		byID:   make(map[uuid.UUID]*httpdto.MessagePayload),
		typing: make(map[uuid.UUID]bool),
	}
}

// StateStore is the client's local view of its conversations. Every
// apply is an idempotent merge: replaying an event, or receiving the
// same message over both broadcast and resync, converges to one copy.
type StateStore struct {
	mu sync.RWMutex

	self          uuid.UUID
	conversations map[uuid.UUID]*conversationState
	online        map[uuid.UUID]struct{}
	active        uuid.UUID

	seen      map[uuid.UUID]struct{}
	seenOrder []uuid.UUID
}

func NewStateStore(self uuid.UUID) *StateStore {
	return &StateStore{
		self:          self,
		conversations: make(map[uuid.UUID]*conversationState),
		online:        make(map[uuid.UUID]struct{}),
		seen:          make(map[uuid.UUID]struct{}),
	}
}

// Apply merges one envelope into local state. Envelopes already seen by
// EventID are dropped.
func (s *StateStore) Apply(env events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.alreadySeen(env.EventID) {
		return nil
	}

	payload, err := DecodeEvent(env)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case httpdto.MessagePayload:
		if env.Event == events.EventMessageEdited {
			s.mergeEdit(p)
		} else {
			s.mergeMessage(p, true)
		}
	case httpdto.MessageDeletedPayload:
		s.mergeDelete(p)
	case httpdto.ReactionPayload:
		s.mergeReaction(p, env.Event == events.EventReactionAdded)
	case httpdto.ReadPayload:
		s.mergeRead(p)
	case httpdto.TypingPayload:
		s.conv(p.ConversationID).typing[p.UserID] = p.IsTyping
	case httpdto.MembershipPayload:
		// Membership shows up in the conversation payload on the next
		// fetch; nothing message-local to merge.
	case httpdto.StatusPayload:
		if p.IsOnline {
			s.online[p.UserID] = struct{}{}
		} else {
			delete(s.online, p.UserID)
		}
	}
	return nil
}

// MergeMessages folds a history or resync page into the store. Pages
// never bump unread counts; they describe the past, not new activity.
func (s *StateStore) MergeMessages(msgs []httpdto.MessagePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range msgs {
		s.mergeMessage(msgs[i], false)
	}
}

// SetActiveConversation marks the conversation on screen. Its unread
// count resets and new arrivals there stay at zero.
func (s *StateStore) SetActiveConversation(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = id
	if cs, ok := s.conversations[id]; ok {
		cs.unread = 0
	}
}

// Messages returns the conversation's messages in sequence order.
func (s *StateStore) Messages(conversationID uuid.UUID) []httpdto.MessagePayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	out := make([]httpdto.MessagePayload, 0, len(cs.order))
	for _, id := range cs.order {
		out = append(out, *cs.byID[id])
	}
	return out
}

// LastSeq is the resync cursor: the highest sequence merged so far.
func (s *StateStore) LastSeq(conversationID uuid.UUID) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cs, ok := s.conversations[conversationID]; ok {
		return cs.lastSeq
	}
	return 0
}

func (s *StateStore) Unread(conversationID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cs, ok := s.conversations[conversationID]; ok {
		return cs.unread
	}
	return 0
}

// TypingUsers lists users currently typing in a conversation.
func (s *StateStore) TypingUsers(conversationID uuid.UUID) []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}
	var out []uuid.UUID
	for id, typing := range cs.typing {
		if typing {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (s *StateStore) IsOnline(userID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[userID]
	return ok
}

// ConversationIDs lists every conversation with local state, for
// post-reconnect resync sweeps.
func (s *StateStore) ConversationIDs() []uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(s.conversations))
	for id := range s.conversations {
		out = append(out, id)
	}
	return out
}

func (s *StateStore) conv(id uuid.UUID) *conversationState {
	cs, ok := s.conversations[id]
	if !ok {
		cs = newConversationState()
		s.conversations[id] = cs
	}
	return cs
}

func (s *StateStore) alreadySeen(eventID uuid.UUID) bool {
	if eventID == uuid.Nil {
		return false
	}
	if _, ok := s.seen[eventID]; ok {
		return true
	}
	s.seen[eventID] = struct{}{}
	s.seenOrder = append(s.seenOrder, eventID)
	if len(s.seenOrder) > seenEventCap {
		evicted := s.seenOrder[0]
		s.seenOrder = s.seenOrder[1:]
		delete(s.seen, evicted)
	}
	return false
}

func (s *StateStore) mergeMessage(p httpdto.MessagePayload, live bool) {
	cs := s.conv(p.ConversationID)

	if existing, ok := cs.byID[p.ID]; ok {
		// Same message arriving twice (broadcast plus resync): converge
		// in place, never a second entry. Reactions and read receipts
		// union so a resync page can repair frames the live path
		// dropped, and vice versa.
		reactions := unionReactions(existing.Reactions, p.Reactions)
		readBy := unionReadBy(existing.ReadBy, p.ReadBy)
		if p.EditedAt != nil || p.IsDeleted {
			*existing = p
		}
		existing.Reactions = reactions
		existing.ReadBy = readBy
		return
	}

	cp := p
	cs.byID[p.ID] = &cp
	cs.order = append(cs.order, p.ID)
	sort.Slice(cs.order, func(i, j int) bool {
		return cs.byID[cs.order[i]].SeqID < cs.byID[cs.order[j]].SeqID
	})
	if p.SeqID > cs.lastSeq {
		cs.lastSeq = p.SeqID
	}
	// The sender has read their own message; everyone else in an
	// inactive conversation sees the unread count climb.
	if live && p.SenderID != s.self && p.ConversationID != s.active {
		cs.unread++
	}
}

func (s *StateStore) mergeEdit(p httpdto.MessagePayload) {
	cs := s.conv(p.ConversationID)
	if existing, ok := cs.byID[p.ID]; ok {
		*existing = p
		return
	}
	s.mergeMessage(p, false)
}

func (s *StateStore) mergeDelete(p httpdto.MessageDeletedPayload) {
	cs := s.conv(p.ConversationID)
	msg, ok := cs.byID[p.MessageID]
	if !ok {
		return
	}
	msg.IsDeleted = true
	msg.Content = ""
	msg.Attachments = nil
}

func (s *StateStore) mergeReaction(p httpdto.ReactionPayload, add bool) {
	cs := s.conv(p.ConversationID)
	msg, ok := cs.byID[p.MessageID]
	if !ok {
		return
	}

	idx := -1
	for i := range msg.Reactions {
		if msg.Reactions[i].Emoji == p.Emoji {
			idx = i
			break
		}
	}

	if add {
		if idx < 0 {
			msg.Reactions = append(msg.Reactions, httpdto.ReactionEntry{Emoji: p.Emoji})
			idx = len(msg.Reactions) - 1
		}
		for _, id := range msg.Reactions[idx].UserIDs {
			if id == p.UserID {
				return
			}
		}
		msg.Reactions[idx].UserIDs = append(msg.Reactions[idx].UserIDs, p.UserID)
		sort.Slice(msg.Reactions[idx].UserIDs, func(i, j int) bool {
			return msg.Reactions[idx].UserIDs[i].String() < msg.Reactions[idx].UserIDs[j].String()
		})
		return
	}

	if idx < 0 {
		return
	}
	users := msg.Reactions[idx].UserIDs[:0]
	for _, id := range msg.Reactions[idx].UserIDs {
		if id != p.UserID {
			users = append(users, id)
		}
	}
	msg.Reactions[idx].UserIDs = users
	if len(users) == 0 {
		msg.Reactions = append(msg.Reactions[:idx], msg.Reactions[idx+1:]...)
	}
}

func (s *StateStore) mergeRead(p httpdto.ReadPayload) {
	cs := s.conv(p.ConversationID)
	msg, ok := cs.byID[p.MessageID]
	if !ok {
		return
	}
	for _, id := range msg.ReadBy {
		if id == p.UserID {
			return
		}
	}
	msg.ReadBy = append(msg.ReadBy, p.UserID)
	sort.Slice(msg.ReadBy, func(i, j int) bool { return msg.ReadBy[i].String() < msg.ReadBy[j].String() })
}

func unionReadBy(a, b []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(a)+len(b))
	out := make([]uuid.UUID, 0, len(a)+len(b))
	for _, id := range a {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func unionReactions(a, b []httpdto.ReactionEntry) []httpdto.ReactionEntry {
	byEmoji := make(map[string]map[uuid.UUID]struct{})
	emojis := make([]string, 0, len(a)+len(b))
	for _, entries := range [2][]httpdto.ReactionEntry{a, b} {
		for _, entry := range entries {
			users, ok := byEmoji[entry.Emoji]
			if !ok {
				users = make(map[uuid.UUID]struct{})
				byEmoji[entry.Emoji] = users
				emojis = append(emojis, entry.Emoji)
			}
			for _, id := range entry.UserIDs {
				users[id] = struct{}{}
			}
		}
	}

	out := make([]httpdto.ReactionEntry, 0, len(emojis))
	for _, emoji := range emojis {
		users := make([]uuid.UUID, 0, len(byEmoji[emoji]))
		for id := range byEmoji[emoji] {
			users = append(users, id)
		}
		if len(users) == 0 {
			continue
		}
		sort.Slice(users, func(i, j int) bool { return users[i].String() < users[j].String() })
		out = append(out, httpdto.ReactionEntry{Emoji: emoji, UserIDs: users})
	}
	return out
}
