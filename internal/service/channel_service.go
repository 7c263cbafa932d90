package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/access"
	"github.com/octave-im/octave-api/internal/apperr"
	"github.com/octave-im/octave-api/internal/config"
	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/observability"
	"github.com/octave-im/octave-api/internal/realtime"
	"github.com/octave-im/octave-api/internal/repository"
	"github.com/octave-im/octave-api/internal/token"
)

const messagePageSize = 25

// ChannelService covers channel reads, the message timeline, read watermarks
// and voice room grants.
type ChannelService interface {
	Get(ctx context.Context, channelID, userID string) (dto.ChannelResponse, error)
	Messages(ctx context.Context, channelID, userID, beforeID string) ([]dto.MessageResponse, error)
	GetMessage(ctx context.Context, messageID, userID string) (dto.MessageResponse, error)
	PostMessage(ctx context.Context, channelID, userID string, payload dto.CreateMessageRequest) (dto.MessageCreatedResponse, error)
	Ack(ctx context.Context, channelID, userID string, payload dto.AckRequest) error
	JoinVoice(ctx context.Context, channelID, userID string) (dto.VoiceJoinResponse, error)
	Rename(ctx context.Context, channelID, userID string, payload dto.PatchChannelRequest) error
	Delete(ctx context.Context, channelID, userID string) error
}

type channelService struct {
	channels     repository.ChannelRepository
	messages     repository.MessageRepository
	voiceRooms   repository.VoiceRoomRepository
	gate         *access.Gate
	synchronizer *realtime.Synchronizer
	tokens       *token.Manager
	voiceServers []config.VoiceServer
	voiceTTL     time.Duration
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	tracer       trace.Tracer
	randInt      func(n int) int
}

// NewChannelService builds the channel service.
func NewChannelService(
	channels repository.ChannelRepository,
	messages repository.MessageRepository,
	voiceRooms repository.VoiceRoomRepository,
	gate *access.Gate,
	synchronizer *realtime.Synchronizer,
	tokens *token.Manager,
	voiceServers []config.VoiceServer,
	voiceTTL time.Duration,
	validate *validator.Validate,
	logger zerolog.Logger,
) ChannelService {
	return &channelService{
		channels:     channels,
		messages:     messages,
		voiceRooms:   voiceRooms,
		gate:         gate,
		synchronizer: synchronizer,
		tokens:       tokens,
		voiceServers: voiceServers,
		voiceTTL:     voiceTTL,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "channel_service").Logger(),
		tracer:       otel.Tracer("github.com/octave-im/octave-api/internal/service/channel"),
		randInt:      rand.Intn,
	}
}

func (s *channelService) Get(ctx context.Context, channelID, userID string) (dto.ChannelResponse, error) {
	channel, err := s.gate.ChannelRead(ctx, channelID, userID)
	if err != nil {
		return dto.ChannelResponse{}, err
	}

	response := dto.NewChannelResponse(channel)

	switch channel.Type {
	case models.ChannelText:
		if read, err := s.channels.GetRead(ctx, channelID, userID); err == nil {
			response.LastReadMessageID = read.LastReadMessageID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChannelResponse{}, err
		}
		if latest, err := s.messages.LatestByChannel(ctx, channelID); err == nil {
			response.LastMessageID = latest.ID
			created := latest.CreatedAt
			response.LastMessageDate = &created
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChannelResponse{}, err
		}
	case models.ChannelVoice:
		if room, err := s.voiceRooms.GetByChannel(ctx, channelID); err == nil {
			users := make([]string, 0, len(room.Users))
			for _, user := range room.Users {
				users = append(users, user.ID)
			}
			response.VoiceUsers = users
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChannelResponse{}, err
		}
	}

	return response, nil
}

func (s *channelService) Messages(ctx context.Context, channelID, userID, beforeID string) ([]dto.MessageResponse, error) {
	channel, err := s.gate.ChannelRead(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}
	if channel.Type != models.ChannelText {
		return nil, apperr.ErrWrongChannelType
	}

	messages, err := s.messages.ListByChannel(ctx, channelID, beforeID, messagePageSize)
	if err != nil {
		if beforeID != "" && errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrMessageNotFound
		}
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

func (s *channelService) GetMessage(ctx context.Context, messageID, userID string) (dto.MessageResponse, error) {
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MessageResponse{}, apperr.ErrMessageNotFound
		}
		return dto.MessageResponse{}, err
	}

	// Readers outside the channel must not learn the message exists.
	if _, err := s.gate.ChannelRead(ctx, message.ChannelID, userID); err != nil {
		if errors.Is(err, apperr.ErrChannelNotFound) {
			return dto.MessageResponse{}, apperr.ErrMessageNotFound
		}
		return dto.MessageResponse{}, err
	}

	return dto.NewMessageResponse(message), nil
}

func (s *channelService) PostMessage(ctx context.Context, channelID, userID string, payload dto.CreateMessageRequest) (dto.MessageCreatedResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageCreatedResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "channel.post_message",
		trace.WithAttributes(attribute.String("channel.id", channelID)))
	defer span.End()

	channel, err := s.gate.MessagePost(ctx, channelID, userID)
	if err != nil {
		return dto.MessageCreatedResponse{}, err
	}

	body, encrypted, err := s.prepareMessagePayload(payload.Payload)
	if err != nil {
		return dto.MessageCreatedResponse{}, err
	}
	// Community channels hold plaintext only; there is no shared keychain
	// to decrypt against.
	if channel.CommunityID != nil && encrypted {
		return dto.MessageCreatedResponse{}, apperr.ErrWrongMessageType
	}

	message := models.Message{
		ChannelID: channelID,
		AuthorID:  userID,
		Payload:   datatypes.JSON(body),
	}
	if err := s.messages.Create(ctx, &message); err != nil {
		return dto.MessageCreatedResponse{}, err
	}

	messageType := "plaintext"
	if encrypted {
		messageType = "encrypted"
	}
	observability.MessagesStoredTotal().WithLabelValues(messageType).Inc()

	s.synchronizer.MessagePosted(ctx, channelID, dto.NewMessageResponse(message))
	return dto.MessageCreatedResponse{ID: message.ID}, nil
}

// prepareMessagePayload classifies the opaque payload union and sanitizes
// plaintext content. Encrypted envelopes carry an "iv" field and pass
// through untouched.
func (s *channelService) prepareMessagePayload(raw json.RawMessage) ([]byte, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false, apperr.ErrInvalidPayload
	}

	if _, ok := fields["iv"]; ok {
		return raw, true, nil
	}

	contentRaw, ok := fields["content"]
	if !ok {
		return nil, false, apperr.ErrInvalidPayload
	}
	var content string
	if err := json.Unmarshal(contentRaw, &content); err != nil {
		return nil, false, apperr.ErrInvalidPayload
	}
	content = strings.TrimSpace(s.sanitizer.Sanitize(content))
	if content == "" {
		return nil, false, apperr.ErrInvalidPayload
	}

	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, false, err
	}
	return body, false, nil
}

func (s *channelService) Ack(ctx context.Context, channelID, userID string, payload dto.AckRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	channel, err := s.gate.ChannelRead(ctx, channelID, userID)
	if err != nil {
		return err
	}
	if channel.Type != models.ChannelText {
		return apperr.ErrWrongChannelType
	}

	messageID := payload.MessageID
	if messageID == "" {
		latest, err := s.messages.LatestByChannel(ctx, channelID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Nothing to acknowledge in an empty channel.
				return nil
			}
			return err
		}
		messageID = latest.ID
	} else {
		message, err := s.messages.GetByID(ctx, messageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrMessageNotFound
			}
			return err
		}
		if message.ChannelID != channelID {
			return apperr.ErrMessageNotFound
		}
	}

	return s.channels.UpsertRead(ctx, &models.Read{
		ChannelID:         channelID,
		UserID:            userID,
		LastReadMessageID: messageID,
	})
}

func (s *channelService) JoinVoice(ctx context.Context, channelID, userID string) (dto.VoiceJoinResponse, error) {
	ctx, span := s.tracer.Start(ctx, "channel.join_voice",
		trace.WithAttributes(attribute.String("channel.id", channelID)))
	defer span.End()

	channel, err := s.gate.VoiceJoin(ctx, channelID, userID)
	if err != nil {
		return dto.VoiceJoinResponse{}, err
	}
	if len(s.voiceServers) == 0 {
		return dto.VoiceJoinResponse{}, errors.New("no voice servers configured")
	}

	ring := false
	room, err := s.voiceRooms.GetByChannel(ctx, channelID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		server := s.voiceServers[s.randInt(len(s.voiceServers))]
		room, err = s.voiceRooms.UpsertByChannel(ctx, &models.VoiceRoom{
			ChannelID: channelID,
			ServerID:  server.ID,
		})
		if err != nil {
			return dto.VoiceJoinResponse{}, err
		}
		ring = true
	case err != nil:
		return dto.VoiceJoinResponse{}, err
	default:
		ring = len(room.Users) == 0
	}

	server, ok := s.serverByID(room.ServerID)
	if !ok {
		return dto.VoiceJoinResponse{}, errors.New("voice room assigned to unknown server")
	}

	// Ring the conversation only when the room is fresh; joining an active
	// call stays silent.
	if ring && channel.ConversationID != nil {
		s.synchronizer.IncomingCall(ctx, *channel.ConversationID, channelID, userID)
	}

	grant, err := s.tokens.IssueVoice(userID, room.ID, s.voiceTTL)
	if err != nil {
		return dto.VoiceJoinResponse{}, err
	}
	return dto.VoiceJoinResponse{
		RoomID: room.ID,
		Socket: server.Socket,
		Token:  grant,
	}, nil
}

func (s *channelService) serverByID(id string) (config.VoiceServer, bool) {
	for _, server := range s.voiceServers {
		if server.ID == id {
			return server, true
		}
	}
	return config.VoiceServer{}, false
}

func (s *channelService) Rename(ctx context.Context, channelID, userID string, payload dto.PatchChannelRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}
	if _, err := s.gate.ChannelManage(ctx, channelID, userID); err != nil {
		return err
	}
	return s.channels.UpdateName(ctx, channelID, payload.Name)
}

func (s *channelService) Delete(ctx context.Context, channelID, userID string) error {
	ctx, span := s.tracer.Start(ctx, "channel.delete",
		trace.WithAttributes(attribute.String("channel.id", channelID)))
	defer span.End()

	channel, err := s.gate.ChannelManage(ctx, channelID, userID)
	if err != nil {
		return err
	}

	s.logger.Info().Str("channel_id", channel.ID).Str("type", string(channel.Type)).Msg("channel deleted")
	return s.channels.DeleteWithDependents(ctx, &channel)
}
