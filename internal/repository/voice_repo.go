package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/octave-im/octave-api/internal/models"
)

// VoiceRoomRepository persists live voice rooms and their connected users.
type VoiceRoomRepository interface {
	GetByID(ctx context.Context, id string) (models.VoiceRoom, error)
	GetByChannel(ctx context.Context, channelID string) (models.VoiceRoom, error)
	UpsertByChannel(ctx context.Context, room *models.VoiceRoom) (models.VoiceRoom, error)
	AddUser(ctx context.Context, roomID, userID string) (models.VoiceRoom, error)
	RemoveUser(ctx context.Context, roomID, userID string) (models.VoiceRoom, error)
	DeleteByServer(ctx context.Context, serverID string) error
}

type voiceRoomRepository struct {
	db *gorm.DB
}

// NewVoiceRoomRepository constructs a voice room repository backed by GORM.
func NewVoiceRoomRepository(db *gorm.DB) VoiceRoomRepository {
	return &voiceRoomRepository{db: db}
}

func (r *voiceRoomRepository) GetByID(ctx context.Context, id string) (models.VoiceRoom, error) {
	var room models.VoiceRoom
	err := r.db.WithContext(ctx).Preload("Users").First(&room, "id = ?", id).Error
	if err != nil {
		return models.VoiceRoom{}, err
	}
	return room, nil
}

func (r *voiceRoomRepository) GetByChannel(ctx context.Context, channelID string) (models.VoiceRoom, error) {
	var room models.VoiceRoom
	err := r.db.WithContext(ctx).Preload("Users").First(&room, "channel_id = ?", channelID).Error
	if err != nil {
		return models.VoiceRoom{}, err
	}
	return room, nil
}

// UpsertByChannel creates the room for a channel if missing; an existing room
// keeps its media server assignment.
func (r *voiceRoomRepository) UpsertByChannel(ctx context.Context, room *models.VoiceRoom) (models.VoiceRoom, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoNothing: true,
	}).Create(room).Error
	if err != nil {
		return models.VoiceRoom{}, err
	}

	return r.GetByChannel(ctx, room.ChannelID)
}

func (r *voiceRoomRepository) AddUser(ctx context.Context, roomID, userID string) (models.VoiceRoom, error) {
	room, err := r.GetByID(ctx, roomID)
	if err != nil {
		return models.VoiceRoom{}, err
	}

	err = r.db.WithContext(ctx).Model(&room).Association("Users").Append(&models.User{ID: userID})
	if err != nil {
		return models.VoiceRoom{}, err
	}
	return room, nil
}

func (r *voiceRoomRepository) RemoveUser(ctx context.Context, roomID, userID string) (models.VoiceRoom, error) {
	room, err := r.GetByID(ctx, roomID)
	if err != nil {
		return models.VoiceRoom{}, err
	}

	err = r.db.WithContext(ctx).Model(&room).Association("Users").Delete(&models.User{ID: userID})
	if err != nil {
		return models.VoiceRoom{}, err
	}
	return room, nil
}

// DeleteByServer clears every room assigned to a media server, used when the
// server restarts and all of its rooms are gone.
func (r *voiceRoomRepository) DeleteByServer(ctx context.Context, serverID string) error {
	return r.db.WithContext(ctx).Where("server_id = ?", serverID).Delete(&models.VoiceRoom{}).Error
}
