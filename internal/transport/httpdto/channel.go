package httpdto

import (
	"time"

	"github.com/google/uuid"

	"campuschat/internal/domain"
)

type ChannelPayload struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Type        domain.ChannelType `json:"type"`
	OwnerID     uuid.UUID          `json:"owner_id"`
	Members     []uuid.UUID        `json:"members"`
	Moderators  []uuid.UUID        `json:"moderators"`
	CreatedAt   time.Time          `json:"created_at"`
	Archived    bool               `json:"archived"`
}

func FromChannel(ch *domain.Channel) ChannelPayload {
	return ChannelPayload{
		ID:          ch.ID,
		Name:        ch.Name,
		Description: ch.Description,
		Type:        ch.Type,
		OwnerID:     ch.OwnerID,
		Members:     ch.Members.Sorted(),
		Moderators:  ch.Moderators.Sorted(),
		CreatedAt:   ch.CreatedAt,
		Archived:    ch.Archived,
	}
}

type CreateChannelRequest struct {
	Name        string             `json:"name" binding:"required"`
	Description string             `json:"description"`
	Type        domain.ChannelType `json:"type" binding:"required"`
}
