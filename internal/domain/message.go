package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	chat_errors "campuschat/pkg/errors"
)

// Message belongs to a conversation but is an independently addressable
// aggregate, so a reaction toggle or read receipt never loads the whole
// conversation. Reactions and read receipts are jsonb maps on the row.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_history,priority:1" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null" json:"sender_id"`
	// SeqID is the per-conversation sequence assigned at persist time; it
	// orders history and is the cursor for reconnect resync.
	SeqID            int64        `gorm:"not null;index:idx_messages_history,priority:2,sort:desc" json:"seq_id"`
	Type             MessageType  `gorm:"type:text;default:'TEXT';not null" json:"type"`
	Content          string       `gorm:"type:text" json:"content"`
	Attachments      []Attachment `gorm:"type:jsonb;serializer:json" json:"attachments,omitempty"`
	ReplyToMessageID *uuid.UUID   `gorm:"type:uuid" json:"reply_to_message_id,omitempty"`
	Reactions        ReactionSet  `gorm:"type:jsonb;serializer:json" json:"reactions,omitempty"`
	// ReadReceipts records the first-read timestamp per user; entries are
	// never updated or removed.
	ReadReceipts map[uuid.UUID]time.Time `gorm:"type:jsonb;serializer:json" json:"read_receipts,omitempty"`
	SentAt       time.Time               `json:"sent_at"`
	EditedAt     *time.Time              `json:"edited_at,omitempty"`
	DeletedAt    *time.Time              `json:"deleted_at,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}

// NewMessage validates and builds a message for the given conversation.
// replyTo, when non-nil, must be a message of the same conversation.
func NewMessage(conv *Conversation, senderID uuid.UUID, content string, attachments []Attachment, replyTo *Message) (*Message, error) {
	if conv == nil || senderID == uuid.Nil {
		return nil, chat_errors.ErrInvalidInput
	}
	if err := conv.ensureMutable(); err != nil {
		return nil, err
	}
	if !conv.IsParticipant(senderID) {
		return nil, chat_errors.ErrNotParticipant
	}
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return nil, chat_errors.ErrEmptyContent
	}
	if len(attachments) > MaxAttachments {
		return nil, chat_errors.ErrTooManyAttachments
	}
	for _, a := range attachments {
		if a.FileSizeBytes <= 0 {
			return nil, chat_errors.ErrEmptyAttachment
		}
	}
	m := &Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Type:           InferMessageType(attachments),
		Content:        content,
		Attachments:    attachments,
		Reactions:      make(ReactionSet),
		ReadReceipts:   make(map[uuid.UUID]time.Time),
		SentAt:         time.Now(),
	}
	if replyTo != nil {
		if replyTo.ConversationID != conv.ID {
			return nil, chat_errors.ErrReplyWrongConversation
		}
		id := replyTo.ID
		m.ReplyToMessageID = &id
	}
	return m, nil
}

func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// ToggleReaction flips the (user, emoji) pair and reports whether the
// reaction is present afterwards. Reactions stay recordable on deleted
// messages for audit; the UI suppresses them.
func (m *Message) ToggleReaction(userID uuid.UUID, emoji string) (bool, error) {
	if userID == uuid.Nil || emoji == "" {
		return false, chat_errors.ErrInvalidInput
	}
	if m.Reactions == nil {
		m.Reactions = make(ReactionSet)
	}
	return m.Reactions.Toggle(userID, emoji), nil
}

func (m *Message) HasReaction(userID uuid.UUID, emoji string) bool {
	return m.Reactions.Has(userID, emoji)
}

// MarkRead records the first-read timestamp for a user. Re-reading never
// regresses the stored timestamp; the return value reports whether the
// receipt was newly inserted.
func (m *Message) MarkRead(userID uuid.UUID, at time.Time) bool {
	if userID == uuid.Nil {
		return false
	}
	if m.ReadReceipts == nil {
		m.ReadReceipts = make(map[uuid.UUID]time.Time)
	}
	if _, ok := m.ReadReceipts[userID]; ok {
		return false
	}
	m.ReadReceipts[userID] = at
	return true
}

func (m *Message) Edit(newContent string) error {
	if m.IsDeleted() {
		return chat_errors.ErrMessageDeleted
	}
	if strings.TrimSpace(newContent) == "" && len(m.Attachments) == 0 {
		return chat_errors.ErrEmptyContent
	}
	m.Content = newContent
	m.EditedAt = chat_errors.NowPtr()
	return nil
}

// Delete soft-deletes: content and attachments are redacted but the row
// keeps its id and position in history.
func (m *Message) Delete() error {
	if m.IsDeleted() {
		return chat_errors.ErrMessageDeleted
	}
	m.Content = ""
	m.Attachments = nil
	m.DeletedAt = chat_errors.NowPtr()
	return nil
}
