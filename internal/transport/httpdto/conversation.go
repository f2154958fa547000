package httpdto

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"campuschat/internal/domain"
)

type ConversationPayload struct {
	ID            uuid.UUID               `json:"id"`
	Type          domain.ConversationType `json:"type"`
	Title         *string                 `json:"title,omitempty"`
	Participants  []uuid.UUID             `json:"participants"`
	CreatedBy     uuid.UUID               `json:"created_by"`
	CreatedAt     time.Time               `json:"created_at"`
	LastMessageAt *time.Time              `json:"last_message_at,omitempty"`
	Archived      bool                    `json:"archived"`
}

func FromConversation(c *domain.Conversation) ConversationPayload {
	return ConversationPayload{
		ID:            c.ID,
		Type:          c.Type,
		Title:         c.Title,
		Participants:  c.Participants.Sorted(),
		CreatedBy:     c.CreatedBy,
		CreatedAt:     c.CreatedAt,
		LastMessageAt: c.LastMessageAt,
		Archived:      c.Archived,
	}
}

type CreateDirectConversationRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type CreateGroupConversationRequest struct {
	Title          string      `json:"title" binding:"required"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

type AddParticipantRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

func sortUUIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
}
