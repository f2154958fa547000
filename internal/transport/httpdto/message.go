package httpdto

import (
	"time"

	"github.com/google/uuid"

	"campuschat/internal/domain"
)

// ReactionEntry is the wire form of one emoji bucket.
type ReactionEntry struct {
	Emoji   string      `json:"emoji"`
	UserIDs []uuid.UUID `json:"user_ids"`
}

// MessagePayload is the wire shape of a message, shared by the REST
// history endpoints and the ReceiveMessage/MessageEdited events.
type MessagePayload struct {
	ID               uuid.UUID           `json:"id"`
	ConversationID   uuid.UUID           `json:"conversation_id"`
	SenderID         uuid.UUID           `json:"sender_id"`
	SeqID            int64               `json:"seq_id"`
	Content          string              `json:"content"`
	Type             domain.MessageType  `json:"type"`
	Attachments      []domain.Attachment `json:"attachments,omitempty"`
	ReplyToMessageID *uuid.UUID          `json:"reply_to_message_id,omitempty"`
	Reactions        []ReactionEntry     `json:"reactions"`
	ReadBy           []uuid.UUID         `json:"read_by"`
	SentAt           time.Time           `json:"sent_at"`
	EditedAt         *time.Time          `json:"edited_at,omitempty"`
	IsDeleted        bool                `json:"is_deleted"`
}

// FromMessage converts a message aggregate to its wire form. Deleted
// messages keep id and ordering but carry no content or attachments.
func FromMessage(m *domain.Message) MessagePayload {
	p := MessagePayload{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		SenderID:         m.SenderID,
		SeqID:            m.SeqID,
		Content:          m.Content,
		Type:             m.Type,
		Attachments:      m.Attachments,
		ReplyToMessageID: m.ReplyToMessageID,
		Reactions:        make([]ReactionEntry, 0, len(m.Reactions)),
		ReadBy:           make([]uuid.UUID, 0, len(m.ReadReceipts)),
		SentAt:           m.SentAt,
		EditedAt:         m.EditedAt,
		IsDeleted:        m.IsDeleted(),
	}
	for _, emoji := range m.Reactions.Emojis() {
		p.Reactions = append(p.Reactions, ReactionEntry{
			Emoji:   emoji,
			UserIDs: m.Reactions[emoji].Sorted(),
		})
	}
	for userID := range m.ReadReceipts {
		p.ReadBy = append(p.ReadBy, userID)
	}
	sortUUIDs(p.ReadBy)
	return p
}

// MessageDeletedPayload is the wire form of a MessageDeleted event.
type MessageDeletedPayload struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	DeletedAt      time.Time `json:"deleted_at"`
}

// ReactionPayload is the wire form of ReactionAdded / ReactionRemoved.
type ReactionPayload struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Emoji          string    `json:"emoji"`
	Count          int       `json:"count"`
}

// ReadPayload is the wire form of a MessageRead event.
type ReadPayload struct {
	MessageID      uuid.UUID `json:"message_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	ReadAt         time.Time `json:"read_at"`
}

// TypingPayload is the wire form of a UserTyping event.
type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	IsTyping       bool      `json:"is_typing"`
}

// MembershipPayload is the wire form of UserJoined / UserLeft.
type MembershipPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
}

// StatusPayload is the wire form of a UserStatusChanged event.
type StatusPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
}

// SendMessageRequest is the REST body for posting a message outside the
// realtime connection (used by clients that are mid-reconnect).
type SendMessageRequest struct {
	Content          string              `json:"content"`
	Attachments      []domain.Attachment `json:"attachments,omitempty"`
	ReplyToMessageID *uuid.UUID          `json:"reply_to_message_id,omitempty"`
}
