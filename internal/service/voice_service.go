package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/apperr"
	"github.com/octave-im/octave-api/internal/realtime"
	"github.com/octave-im/octave-api/internal/repository"
)

// VoiceService receives lifecycle callbacks from the media servers and keeps
// voice room occupancy consistent with reality.
type VoiceService interface {
	ServerStarted(ctx context.Context, serverID string) error
	UserJoined(ctx context.Context, roomID, userID string) error
	UserLeft(ctx context.Context, roomID, userID string) error
}

type voiceService struct {
	voiceRooms   repository.VoiceRoomRepository
	synchronizer *realtime.Synchronizer
	logger       zerolog.Logger
}

// NewVoiceService builds the voice callback service.
func NewVoiceService(voiceRooms repository.VoiceRoomRepository, synchronizer *realtime.Synchronizer, logger zerolog.Logger) VoiceService {
	return &voiceService{
		voiceRooms:   voiceRooms,
		synchronizer: synchronizer,
		logger:       logger.With().Str("component", "voice_service").Logger(),
	}
}

// ServerStarted clears every room assigned to the server. A media server
// announcing itself has lost all of its in-memory rooms.
func (s *voiceService) ServerStarted(ctx context.Context, serverID string) error {
	if err := s.voiceRooms.DeleteByServer(ctx, serverID); err != nil {
		return err
	}
	s.logger.Info().Str("server_id", serverID).Msg("voice server registered, stale rooms dropped")
	return nil
}

func (s *voiceService) UserJoined(ctx context.Context, roomID, userID string) error {
	room, err := s.voiceRooms.AddUser(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrRoomNotFound
		}
		return err
	}

	s.synchronizer.VoiceUserJoined(ctx, room.ChannelID, roomID, userID)
	return nil
}

func (s *voiceService) UserLeft(ctx context.Context, roomID, userID string) error {
	room, err := s.voiceRooms.RemoveUser(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrRoomNotFound
		}
		return err
	}

	s.synchronizer.VoiceUserLeft(ctx, room.ChannelID, roomID, userID)
	return nil
}
