package repository

import (
	"context"

	"github.com/google/uuid"

	"campuschat/internal/domain"
)

// ConversationRepository persists conversation aggregates. Mutations to
// one conversation are serialized by the service layer, so the store only
// needs safe concurrent access across disjoint conversations.
type ConversationRepository interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	Update(ctx context.Context, c *domain.Conversation) error
	GetDirectByPair(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
}

// MessageRepository persists message aggregates. Create assigns the
// per-conversation sequence id.
type MessageRepository interface {
	Create(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	Update(ctx context.Context, m *domain.Message) error
	ListBeforeSeq(ctx context.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]*domain.Message, error)
	ListAfterSeq(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]*domain.Message, error)
}

type ChannelRepository interface {
	Create(ctx context.Context, ch *domain.Channel) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error)
	Update(ctx context.Context, ch *domain.Channel) error
	ListPublic(ctx context.Context) ([]*domain.Channel, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Channel, error)
	IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error)
}
