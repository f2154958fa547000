package commands

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"campuschat/internal/domain"
	chat_errors "campuschat/pkg/errors"
)

// Origin identifies the connection a command arrived on, so the hub can
// avoid echoing the resulting event back to it.
type Origin struct {
	ConnectionID string
}

type SendMessageCommand struct {
	ConversationID   uuid.UUID
	SenderID         uuid.UUID
	Content          string
	Attachments      []domain.Attachment
	ReplyToMessageID *uuid.UUID
	Origin           Origin
}

func (c SendMessageCommand) CommandType() string { return "message.send" }

func (c SendMessageCommand) Validate() error {
	if c.ConversationID == uuid.Nil || c.SenderID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	if strings.TrimSpace(c.Content) == "" && len(c.Attachments) == 0 {
		return chat_errors.ErrEmptyContent
	}
	if len(c.Attachments) > domain.MaxAttachments {
		return chat_errors.ErrTooManyAttachments
	}
	for _, a := range c.Attachments {
		if a.FileSizeBytes <= 0 {
			return chat_errors.ErrEmptyAttachment
		}
	}
	return nil
}

type EditMessageCommand struct {
	MessageID uuid.UUID
	EditorID  uuid.UUID
	Content   string
	Origin    Origin
}

func (c EditMessageCommand) CommandType() string { return "message.edit" }

func (c EditMessageCommand) Validate() error {
	if c.MessageID == uuid.Nil || c.EditorID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	if strings.TrimSpace(c.Content) == "" {
		return chat_errors.ErrEmptyContent
	}
	return nil
}

type DeleteMessageCommand struct {
	MessageID uuid.UUID
	UserID    uuid.UUID
	Origin    Origin
}

func (c DeleteMessageCommand) CommandType() string { return "message.delete" }

func (c DeleteMessageCommand) Validate() error {
	if c.MessageID == uuid.Nil || c.UserID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	return nil
}

// ToggleReactionCommand covers both AddReaction and RemoveReaction RPCs.
// Add wants the reaction present afterwards, Remove wants it absent;
// either direction is a no-op when already in the desired state, which
// is what makes client retries safe.
type ToggleReactionCommand struct {
	MessageID uuid.UUID
	UserID    uuid.UUID
	Emoji     string
	Add       bool
	Origin    Origin
}

func (c ToggleReactionCommand) CommandType() string { return "message.reaction" }

func (c ToggleReactionCommand) Validate() error {
	if c.MessageID == uuid.Nil || c.UserID == uuid.Nil || c.Emoji == "" {
		return chat_errors.ErrInvalidInput
	}
	return nil
}

type MarkReadCommand struct {
	MessageID uuid.UUID
	UserID    uuid.UUID
	ReadAt    time.Time
	Origin    Origin
}

func (c MarkReadCommand) CommandType() string { return "message.read" }

func (c MarkReadCommand) Validate() error {
	if c.MessageID == uuid.Nil || c.UserID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	return nil
}

type TypingCommand struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	IsTyping       bool
	Origin         Origin
}

func (c TypingCommand) CommandType() string { return "message.typing" }

func (c TypingCommand) Validate() error {
	if c.ConversationID == uuid.Nil || c.UserID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	return nil
}
