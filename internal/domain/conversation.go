package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	chat_errors "campuschat/pkg/errors"
)

// Conversation is a Direct (two-party, fixed) or Group (N-party, mutable)
// messaging thread. The participant set is stored on the row itself so a
// single row carries the whole aggregate.
type Conversation struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Type         ConversationType `gorm:"type:text;not null" json:"type"`
	Title        *string          `gorm:"type:text" json:"title,omitempty"`
	Participants UserIDSet        `gorm:"type:jsonb;serializer:json;not null" json:"participants"`
	// PairKey is the ordered "<a>:<b>" of the two participants of a Direct
	// conversation; unique-indexed so a pair can never get two of them.
	PairKey       *string    `gorm:"type:text;uniqueIndex:idx_conversations_pair" json:"-"`
	CreatedBy     uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `gorm:"index:idx_conversations_last_message,sort:desc" json:"last_message_at,omitempty"`
	Archived      bool       `gorm:"default:false" json:"archived"`
	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// DirectPairKey orders the two user ids so that (A,B) and (B,A) produce
// the same key.
func DirectPairKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if strings.Compare(as, bs) > 0 {
		as, bs = bs, as
	}
	return as + ":" + bs
}

// NewDirectConversation builds a two-party conversation. The caller is
// responsible for the check-and-reuse lookup against existing pairs.
func NewDirectConversation(userA, userB uuid.UUID) (*Conversation, error) {
	if userA == uuid.Nil || userB == uuid.Nil {
		return nil, chat_errors.ErrInvalidInput
	}
	if userA == userB {
		return nil, chat_errors.ErrSelfConversation
	}
	key := DirectPairKey(userA, userB)
	return &Conversation{
		ID:           uuid.New(),
		Type:         ConversationTypeDirect,
		Participants: NewUserIDSet(userA, userB),
		PairKey:      &key,
		CreatedBy:    userA,
		CreatedAt:    time.Now(),
	}, nil
}

// NewGroupConversation builds a group thread. The creator is implicitly a
// participant.
func NewGroupConversation(title string, creatorID uuid.UUID, participantIDs []uuid.UUID) (*Conversation, error) {
	if creatorID == uuid.Nil {
		return nil, chat_errors.ErrInvalidInput
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, chat_errors.ErrTitleRequired
	}
	participants := NewUserIDSet(creatorID)
	for _, id := range participantIDs {
		if id == uuid.Nil {
			return nil, chat_errors.ErrInvalidInput
		}
		participants.Add(id)
	}
	// A group needs the creator plus at least one other member.
	if participants.Len() < 2 {
		return nil, chat_errors.ErrInvalidInput
	}
	return &Conversation{
		ID:           uuid.New(),
		Type:         ConversationTypeGroup,
		Title:        &title,
		Participants: participants,
		CreatedBy:    creatorID,
		CreatedAt:    time.Now(),
	}, nil
}

func (c *Conversation) IsParticipant(userID uuid.UUID) bool {
	return c.Participants.Contains(userID)
}

// ensureMutable guards every mutation except Unarchive.
func (c *Conversation) ensureMutable() error {
	if c.Archived {
		return chat_errors.ErrConversationArchived
	}
	return nil
}

// AddParticipant grows a group conversation. Direct participant sets are
// fixed at creation.
func (c *Conversation) AddParticipant(userID uuid.UUID) error {
	if err := c.ensureMutable(); err != nil {
		return err
	}
	if c.Type != ConversationTypeGroup {
		return chat_errors.ErrConflict
	}
	if userID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	c.Participants.Add(userID)
	return nil
}

func (c *Conversation) RemoveParticipant(userID uuid.UUID) error {
	if err := c.ensureMutable(); err != nil {
		return err
	}
	if c.Type != ConversationTypeGroup {
		return chat_errors.ErrConflict
	}
	if !c.Participants.Contains(userID) {
		return chat_errors.ErrNotFound
	}
	// Groups never shrink below two members; archive instead.
	if c.Participants.Len() <= 2 {
		return chat_errors.ErrConflict
	}
	c.Participants.Remove(userID)
	return nil
}

// TouchLastMessage advances the derived last-message timestamp. Older
// timestamps are ignored so out-of-order event application cannot move
// the conversation backwards in listings.
func (c *Conversation) TouchLastMessage(at time.Time) {
	if c.LastMessageAt != nil && !at.After(*c.LastMessageAt) {
		return
	}
	t := at
	c.LastMessageAt = &t
}

// Archive is a soft, reversible close. Archiving twice is a no-op.
func (c *Conversation) Archive(at time.Time) {
	if c.Archived {
		return
	}
	c.Archived = true
	t := at
	c.ArchivedAt = &t
}

func (c *Conversation) Unarchive() {
	if !c.Archived {
		return
	}
	c.Archived = false
	c.ArchivedAt = nil
}
