package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/octave-im/octave-api/internal/models"
)

// ChannelRepository persists channels and per-user read watermarks.
type ChannelRepository interface {
	Create(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id string) (models.Channel, error)
	GetWithContext(ctx context.Context, id string) (models.Channel, error)
	UpdateName(ctx context.Context, id, name string) error
	DeleteWithDependents(ctx context.Context, channel *models.Channel) error
	ListIDsByCommunity(ctx context.Context, communityID string) ([]string, error)
	GetRead(ctx context.Context, channelID, userID string) (models.Read, error)
	UpsertRead(ctx context.Context, read *models.Read) error
}

type channelRepository struct {
	db *gorm.DB
}

// NewChannelRepository constructs a channel repository backed by GORM.
func NewChannelRepository(db *gorm.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) Create(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

func (r *channelRepository) GetByID(ctx context.Context, id string) (models.Channel, error) {
	var channel models.Channel
	err := r.db.WithContext(ctx).First(&channel, "id = ?", id).Error
	if err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

// GetWithContext loads a channel together with its owning conversation or
// community and any live voice room.
func (r *channelRepository) GetWithContext(ctx context.Context, id string) (models.Channel, error) {
	var channel models.Channel
	err := r.db.WithContext(ctx).
		Preload("Conversation").
		Preload("Community").
		Preload("VoiceRoom.Users").
		First(&channel, "id = ?", id).Error
	if err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

func (r *channelRepository) UpdateName(ctx context.Context, id, name string) error {
	return r.db.WithContext(ctx).Model(&models.Channel{}).
		Where("id = ?", id).Update("name", name).Error
}

// DeleteWithDependents removes the channel and, depending on its type, its
// messages or voice room in one transaction.
func (r *channelRepository) DeleteWithDependents(ctx context.Context, channel *models.Channel) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch channel.Type {
		case models.ChannelText:
			if err := tx.Where("channel_id = ?", channel.ID).Delete(&models.Message{}).Error; err != nil {
				return err
			}
			if err := tx.Where("channel_id = ?", channel.ID).Delete(&models.Read{}).Error; err != nil {
				return err
			}
		case models.ChannelVoice:
			if err := tx.Where("channel_id = ?", channel.ID).Delete(&models.VoiceRoom{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Channel{}, "id = ?", channel.ID).Error
	})
}

func (r *channelRepository) ListIDsByCommunity(ctx context.Context, communityID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Channel{}).
		Where("community_id = ?", communityID).
		Order("position ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *channelRepository) GetRead(ctx context.Context, channelID, userID string) (models.Read, error) {
	var read models.Read
	err := r.db.WithContext(ctx).
		First(&read, "channel_id = ? AND user_id = ?", channelID, userID).Error
	if err != nil {
		return models.Read{}, err
	}
	return read, nil
}

func (r *channelRepository) UpsertRead(ctx context.Context, read *models.Read) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read_message_id", "updated_at"}),
	}).Create(read).Error
}
