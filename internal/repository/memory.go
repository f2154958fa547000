package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"campuschat/internal/domain"
	chat_errors "campuschat/pkg/errors"
)

// In-memory implementations of the store interfaces. They back the test
// suites and single-process deployments; the maps are guarded by RWMutex
// and every read/write deep-copies so callers never alias stored state.

type MemoryConversationRepository struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*domain.Conversation
	pairs map[string]uuid.UUID
}

func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		byID:  make(map[uuid.UUID]*domain.Conversation),
		pairs: make(map[string]uuid.UUID),
	}
}

func (r *MemoryConversationRepository) Create(_ context.Context, c *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; ok {
		return chat_errors.ErrAlreadyExists
	}
	if c.PairKey != nil {
		if _, ok := r.pairs[*c.PairKey]; ok {
			return chat_errors.ErrAlreadyExists
		}
		r.pairs[*c.PairKey] = c.ID
	}
	r.byID[c.ID] = cloneConversation(c)
	return nil
}

func (r *MemoryConversationRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, chat_errors.ErrNotFound
	}
	return cloneConversation(c), nil
}

func (r *MemoryConversationRepository) Update(_ context.Context, c *domain.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; !ok {
		return chat_errors.ErrNotFound
	}
	r.byID[c.ID] = cloneConversation(c)
	return nil
}

func (r *MemoryConversationRepository) GetDirectByPair(_ context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.pairs[domain.DirectPairKey(userA, userB)]
	if !ok {
		return nil, chat_errors.ErrNotFound
	}
	return cloneConversation(r.byID[id]), nil
}

func (r *MemoryConversationRepository) ListForUser(_ context.Context, userID uuid.UUID) ([]*domain.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Conversation
	for _, c := range r.byID {
		if c.Participants.Contains(userID) {
			out = append(out, cloneConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].LastMessageAt, out[j].LastMessageAt
		switch {
		case ti == nil && tj == nil:
			return out[i].CreatedAt.After(out[j].CreatedAt)
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
	return out, nil
}

func (r *MemoryConversationRepository) IsParticipant(_ context.Context, conversationID, userID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[conversationID]
	if !ok {
		return false, chat_errors.ErrNotFound
	}
	return c.Participants.Contains(userID), nil
}

type MemoryMessageRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*domain.Message
	seqs map[uuid.UUID]int64
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		byID: make(map[uuid.UUID]*domain.Message),
		seqs: make(map[uuid.UUID]int64),
	}
}

func (r *MemoryMessageRepository) Create(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[m.ID]; ok {
		return chat_errors.ErrAlreadyExists
	}
	r.seqs[m.ConversationID]++
	m.SeqID = r.seqs[m.ConversationID]
	r.byID[m.ID] = cloneMessage(m)
	return nil
}

func (r *MemoryMessageRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, chat_errors.ErrNotFound
	}
	return cloneMessage(m), nil
}

func (r *MemoryMessageRepository) Update(_ context.Context, m *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[m.ID]; !ok {
		return chat_errors.ErrNotFound
	}
	r.byID[m.ID] = cloneMessage(m)
	return nil
}

func (r *MemoryMessageRepository) ListBeforeSeq(_ context.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Message
	for _, m := range r.byID {
		if m.ConversationID != conversationID {
			continue
		}
		if beforeSeq > 0 && m.SeqID >= beforeSeq {
			continue
		}
		out = append(out, cloneMessage(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeqID > out[j].SeqID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryMessageRepository) ListAfterSeq(_ context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Message
	for _, m := range r.byID {
		if m.ConversationID != conversationID || m.SeqID <= afterSeq {
			continue
		}
		out = append(out, cloneMessage(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeqID < out[j].SeqID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type MemoryChannelRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*domain.Channel
}

func NewMemoryChannelRepository() *MemoryChannelRepository {
	return &MemoryChannelRepository{byID: make(map[uuid.UUID]*domain.Channel)}
}

func (r *MemoryChannelRepository) Create(_ context.Context, ch *domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[ch.ID]; ok {
		return chat_errors.ErrAlreadyExists
	}
	r.byID[ch.ID] = cloneChannel(ch)
	return nil
}

func (r *MemoryChannelRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byID[id]
	if !ok {
		return nil, chat_errors.ErrNotFound
	}
	return cloneChannel(ch), nil
}

func (r *MemoryChannelRepository) Update(_ context.Context, ch *domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[ch.ID]; !ok {
		return chat_errors.ErrNotFound
	}
	r.byID[ch.ID] = cloneChannel(ch)
	return nil
}

func (r *MemoryChannelRepository) ListPublic(_ context.Context) ([]*domain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Channel
	for _, ch := range r.byID {
		if ch.Type == domain.ChannelTypePublic && !ch.Archived {
			out = append(out, cloneChannel(ch))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryChannelRepository) ListForUser(_ context.Context, userID uuid.UUID) ([]*domain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Channel
	for _, ch := range r.byID {
		if ch.Members.Contains(userID) {
			out = append(out, cloneChannel(ch))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryChannelRepository) IsMember(_ context.Context, channelID, userID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.byID[channelID]
	if !ok {
		return false, chat_errors.ErrNotFound
	}
	return ch.Members.Contains(userID), nil
}

func cloneConversation(c *domain.Conversation) *domain.Conversation {
	out := *c
	out.Participants = domain.NewUserIDSet(c.Participants.Sorted()...)
	if c.Title != nil {
		t := *c.Title
		out.Title = &t
	}
	if c.PairKey != nil {
		k := *c.PairKey
		out.PairKey = &k
	}
	if c.LastMessageAt != nil {
		t := *c.LastMessageAt
		out.LastMessageAt = &t
	}
	if c.ArchivedAt != nil {
		t := *c.ArchivedAt
		out.ArchivedAt = &t
	}
	return &out
}

func cloneMessage(m *domain.Message) *domain.Message {
	out := *m
	out.Attachments = append([]domain.Attachment(nil), m.Attachments...)
	out.Reactions = make(domain.ReactionSet, len(m.Reactions))
	for emoji, users := range m.Reactions {
		out.Reactions[emoji] = domain.NewUserIDSet(users.Sorted()...)
	}
	out.ReadReceipts = make(map[uuid.UUID]time.Time, len(m.ReadReceipts))
	for id, at := range m.ReadReceipts {
		out.ReadReceipts[id] = at
	}
	if m.ReplyToMessageID != nil {
		id := *m.ReplyToMessageID
		out.ReplyToMessageID = &id
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		out.EditedAt = &t
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

func cloneChannel(ch *domain.Channel) *domain.Channel {
	out := *ch
	out.Members = domain.NewUserIDSet(ch.Members.Sorted()...)
	out.Moderators = domain.NewUserIDSet(ch.Moderators.Sorted()...)
	if ch.ArchivedAt != nil {
		t := *ch.ArchivedAt
		out.ArchivedAt = &t
	}
	return &out
}
