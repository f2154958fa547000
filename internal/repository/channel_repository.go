package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"campuschat/internal/domain"
	chat_errors "campuschat/pkg/errors"
)

type PostgresChannelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &PostgresChannelRepository{db: db}
}

func (r *PostgresChannelRepository) Create(ctx context.Context, ch *domain.Channel) error {
	res := r.db.WithContext(ctx).Create(ch)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return chat_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresChannelRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	var ch domain.Channel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat_errors.ErrNotFound
		}
		return nil, err
	}
	return &ch, nil
}

func (r *PostgresChannelRepository) Update(ctx context.Context, ch *domain.Channel) error {
	res := r.db.WithContext(ctx).Save(ch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresChannelRepository) ListPublic(ctx context.Context) ([]*domain.Channel, error) {
	var channels []*domain.Channel
	err := r.db.WithContext(ctx).
		Where("type = ? AND archived = false", domain.ChannelTypePublic).
		Order("created_at DESC").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *PostgresChannelRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*domain.Channel, error) {
	var channels []*domain.Channel
	err := r.db.WithContext(ctx).
		Where("members @> ?", participantElement(userID)).
		Order("created_at DESC").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *PostgresChannelRepository) IsMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Channel{}).
		Where("id = ? AND members @> ?", channelID, participantElement(userID)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
