package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campuschat/internal/domain"
	chat_errors "campuschat/pkg/errors"
)

// ConversationSequence tracks the last assigned message sequence per
// conversation.
type ConversationSequence struct {
	ConversationID uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastSequence   int64     `gorm:"not null;default:0"`
	UpdatedAt      time.Time
}

func (ConversationSequence) TableName() string {
	return "conversation_sequences"
}

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

// Create assigns the next per-conversation sequence id and inserts the
// message in one transaction. The sequence row is locked FOR UPDATE so
// concurrent writers to the same conversation cannot collide.
func (r *PostgresMessageRepository) Create(ctx context.Context, m *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq ConversationSequence
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("conversation_id = ?", m.ConversationID).
			First(&seq).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			seq = ConversationSequence{ConversationID: m.ConversationID}
		case err != nil:
			return err
		}

		seq.LastSequence++
		seq.UpdatedAt = time.Now()
		if err := tx.Save(&seq).Error; err != nil {
			return err
		}

		m.SeqID = seq.LastSequence
		if err := tx.Create(m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return chat_errors.ErrAlreadyExists
			}
			return err
		}
		return nil
	})
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var m domain.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat_errors.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *PostgresMessageRepository) Update(ctx context.Context, m *domain.Message) error {
	res := r.db.WithContext(ctx).Save(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) ListBeforeSeq(ctx context.Context, conversationID uuid.UUID, beforeSeq int64, limit int) ([]*domain.Message, error) {
	var messages []*domain.Message
	q := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if beforeSeq > 0 {
		q = q.Where("seq_id < ?", beforeSeq)
	}
	err := q.Order("seq_id DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) ListAfterSeq(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND seq_id > ?", conversationID, afterSeq).
		Order("seq_id ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
