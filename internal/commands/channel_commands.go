package commands

import (
	"strings"

	"github.com/google/uuid"

	"campuschat/internal/domain"
	chat_errors "campuschat/pkg/errors"
)

type CreateChannelCommand struct {
	Name        string
	Description string
	Type        domain.ChannelType
	OwnerID     uuid.UUID
}

func (c CreateChannelCommand) CommandType() string { return "channel.create" }

func (c CreateChannelCommand) Validate() error {
	if c.OwnerID == uuid.Nil || strings.TrimSpace(c.Name) == "" {
		return chat_errors.ErrInvalidInput
	}
	if c.Type != domain.ChannelTypePublic && c.Type != domain.ChannelTypePrivate {
		return chat_errors.ErrInvalidInput
	}
	return nil
}

type JoinChannelCommand struct {
	ChannelID uuid.UUID
	UserID    uuid.UUID
	// AddedBy is set when a moderator adds someone to a private channel.
	AddedBy *uuid.UUID
}

func (c JoinChannelCommand) CommandType() string { return "channel.join" }

func (c JoinChannelCommand) Validate() error {
	if c.ChannelID == uuid.Nil || c.UserID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	return nil
}

type LeaveChannelCommand struct {
	ChannelID uuid.UUID
	UserID    uuid.UUID
}

func (c LeaveChannelCommand) CommandType() string { return "channel.leave" }

func (c LeaveChannelCommand) Validate() error {
	if c.ChannelID == uuid.Nil || c.UserID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	return nil
}

type ArchiveChannelCommand struct {
	ChannelID uuid.UUID
	ActorID   uuid.UUID
	Archive   bool
}

func (c ArchiveChannelCommand) CommandType() string { return "channel.archive" }

func (c ArchiveChannelCommand) Validate() error {
	if c.ChannelID == uuid.Nil || c.ActorID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	return nil
}
