package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/models"
)

const defaultMessagePage = 25

// MessageRepository persists channel messages, ordered by creation time.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (models.Message, error)
	ListByChannel(ctx context.Context, channelID, beforeID string, limit int) ([]models.Message, error)
	LatestByChannel(ctx context.Context, channelID string) (models.Message, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a message repository backed by GORM.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error
	if err != nil {
		return models.Message{}, err
	}
	return message, nil
}

// ListByChannel pages backwards from the beforeID cursor (exclusive) and
// returns messages in chronological order for clients.
func (r *messageRepository) ListByChannel(ctx context.Context, channelID, beforeID string, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultMessagePage
	}

	query := r.db.WithContext(ctx).Where("channel_id = ?", channelID)

	if beforeID != "" {
		var cursor models.Message
		if err := r.db.WithContext(ctx).First(&cursor, "id = ?", beforeID).Error; err != nil {
			return nil, err
		}
		query = query.Where("created_at < ?", cursor.CreatedAt)
	}

	var messages []models.Message
	if err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (r *messageRepository) LatestByChannel(ctx context.Context, channelID string) (models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("created_at DESC").
		First(&message).Error
	if err != nil {
		return models.Message{}, err
	}
	return message, nil
}
