package commands

import (
	"strings"

	"github.com/google/uuid"

	chat_errors "campuschat/pkg/errors"
)

type CreateDirectConversationCommand struct {
	UserA uuid.UUID
	UserB uuid.UUID
}

func (c CreateDirectConversationCommand) CommandType() string { return "conversation.create_direct" }

func (c CreateDirectConversationCommand) Validate() error {
	if c.UserA == uuid.Nil || c.UserB == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	if c.UserA == c.UserB {
		return chat_errors.ErrSelfConversation
	}
	return nil
}

type CreateGroupConversationCommand struct {
	Title          string
	CreatorID      uuid.UUID
	ParticipantIDs []uuid.UUID
}

func (c CreateGroupConversationCommand) CommandType() string { return "conversation.create_group" }

func (c CreateGroupConversationCommand) Validate() error {
	if c.CreatorID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	if strings.TrimSpace(c.Title) == "" {
		return chat_errors.ErrTitleRequired
	}
	return nil
}

type ArchiveConversationCommand struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	Archive        bool
}

func (c ArchiveConversationCommand) CommandType() string { return "conversation.archive" }

func (c ArchiveConversationCommand) Validate() error {
	if c.ConversationID == uuid.Nil || c.UserID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	return nil
}

type AddParticipantCommand struct {
	ConversationID uuid.UUID
	ActorID        uuid.UUID
	UserID         uuid.UUID
}

func (c AddParticipantCommand) CommandType() string { return "conversation.add_participant" }

func (c AddParticipantCommand) Validate() error {
	if c.ConversationID == uuid.Nil || c.ActorID == uuid.Nil || c.UserID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	return nil
}

type RemoveParticipantCommand struct {
	ConversationID uuid.UUID
	ActorID        uuid.UUID
	UserID         uuid.UUID
}

func (c RemoveParticipantCommand) CommandType() string { return "conversation.remove_participant" }

func (c RemoveParticipantCommand) Validate() error {
	if c.ConversationID == uuid.Nil || c.ActorID == uuid.Nil || c.UserID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	return nil
}
