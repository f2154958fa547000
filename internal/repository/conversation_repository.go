package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"campuschat/internal/domain"
	chat_errors "campuschat/pkg/errors"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	res := r.db.WithContext(ctx).Create(c)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return chat_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat_errors.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresConversationRepository) Update(ctx context.Context, c *domain.Conversation) error {
	res := r.db.WithContext(ctx).Save(c)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) GetDirectByPair(ctx context.Context, userA, userB uuid.UUID) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.WithContext(ctx).
		Where("pair_key = ?", domain.DirectPairKey(userA, userB)).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat_errors.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Conversation, error) {
	var conversations []*domain.Conversation
	err := r.db.WithContext(ctx).
		Where("participants @> ?", participantElement(userID)).
		Order("last_message_at DESC NULLS LAST").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND participants @> ?", conversationID, participantElement(userID)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// participantElement renders a single-element jsonb array for @>
// containment checks against the participants column.
func participantElement(userID uuid.UUID) string {
	return fmt.Sprintf("[%q]", userID.String())
}
