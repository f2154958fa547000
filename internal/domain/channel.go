package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	chat_errors "campuschat/pkg/errors"
)

// Channel is a broadcast-style membership space. Unlike a conversation it
// is discoverable when public and its membership is not capped.
type Channel struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string      `gorm:"type:text;not null" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Type        ChannelType `gorm:"type:text;not null" json:"type"`
	OwnerID     uuid.UUID   `gorm:"type:uuid;not null" json:"owner_id"`
	Members     UserIDSet   `gorm:"type:jsonb;serializer:json;not null" json:"members"`
	Moderators  UserIDSet   `gorm:"type:jsonb;serializer:json;not null" json:"moderators"`
	CreatedAt   time.Time   `json:"created_at"`
	Archived    bool        `gorm:"default:false" json:"archived"`
	ArchivedAt  *time.Time  `json:"archived_at,omitempty"`
}

func (Channel) TableName() string {
	return "channels"
}

func NewChannel(name, description string, channelType ChannelType, ownerID uuid.UUID) (*Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" || ownerID == uuid.Nil {
		return nil, chat_errors.ErrInvalidInput
	}
	if channelType != ChannelTypePublic && channelType != ChannelTypePrivate {
		return nil, chat_errors.ErrInvalidInput
	}
	return &Channel{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Type:        channelType,
		OwnerID:     ownerID,
		Members:     NewUserIDSet(ownerID),
		Moderators:  NewUserIDSet(ownerID),
		CreatedAt:   time.Now(),
	}, nil
}

func (ch *Channel) IsMember(userID uuid.UUID) bool {
	return ch.Members.Contains(userID)
}

func (ch *Channel) IsModerator(userID uuid.UUID) bool {
	return ch.Moderators.Contains(userID)
}

func (ch *Channel) ensureMutable() error {
	if ch.Archived {
		return chat_errors.ErrConversationArchived
	}
	return nil
}

// Join adds a member. Private channels only admit users added by a
// moderator, which the service checks before calling this.
func (ch *Channel) Join(userID uuid.UUID) error {
	if err := ch.ensureMutable(); err != nil {
		return err
	}
	if userID == uuid.Nil {
		return chat_errors.ErrInvalidInput
	}
	ch.Members.Add(userID)
	return nil
}

func (ch *Channel) Leave(userID uuid.UUID) error {
	if err := ch.ensureMutable(); err != nil {
		return err
	}
	if !ch.Members.Contains(userID) {
		return chat_errors.ErrNotMember
	}
	if userID == ch.OwnerID {
		return chat_errors.ErrConflict
	}
	ch.Members.Remove(userID)
	ch.Moderators.Remove(userID)
	return nil
}

// Promote makes an existing member a moderator. Moderators are always a
// subset of members.
func (ch *Channel) Promote(userID uuid.UUID) error {
	if err := ch.ensureMutable(); err != nil {
		return err
	}
	if !ch.Members.Contains(userID) {
		return chat_errors.ErrNotMember
	}
	ch.Moderators.Add(userID)
	return nil
}

func (ch *Channel) Demote(userID uuid.UUID) error {
	if err := ch.ensureMutable(); err != nil {
		return err
	}
	if userID == ch.OwnerID {
		return chat_errors.ErrConflict
	}
	ch.Moderators.Remove(userID)
	return nil
}

func (ch *Channel) Archive(at time.Time) {
	if ch.Archived {
		return
	}
	ch.Archived = true
	t := at
	ch.ArchivedAt = &t
}

func (ch *Channel) Unarchive() {
	if !ch.Archived {
		return
	}
	ch.Archived = false
	ch.ArchivedAt = nil
}
