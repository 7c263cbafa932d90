package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/octave-im/octave-api/internal/access"
	"github.com/octave-im/octave-api/internal/apperr"
	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/repository"
)

// CommunityService covers community lifecycle plus channel and group
// creation inside a community.
type CommunityService interface {
	Create(ctx context.Context, userID string, payload dto.CreateCommunityRequest) (dto.CommunityCreatedResponse, error)
	Get(ctx context.Context, communityID, userID string) (dto.CommunityResponse, error)
	ChannelIDs(ctx context.Context, communityID, userID string) ([]string, error)
	GroupIDs(ctx context.Context, communityID, userID string) ([]string, error)
	CreateChannel(ctx context.Context, communityID, userID string, payload dto.CreateChannelRequest) (dto.ChannelCreatedResponse, error)
	CreateGroup(ctx context.Context, communityID, userID string, payload dto.CreateGroupRequest) (dto.GroupCreatedResponse, error)
}

type communityService struct {
	communities repository.CommunityRepository
	channels    repository.ChannelRepository
	groups      repository.GroupRepository
	gate        *access.Gate
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewCommunityService builds the community service.
func NewCommunityService(
	communities repository.CommunityRepository,
	channels repository.ChannelRepository,
	groups repository.GroupRepository,
	gate *access.Gate,
	validate *validator.Validate,
	logger zerolog.Logger,
) CommunityService {
	return &communityService{
		communities: communities,
		channels:    channels,
		groups:      groups,
		gate:        gate,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "community_service").Logger(),
		tracer:      otel.Tracer("github.com/octave-im/octave-api/internal/service/community"),
	}
}

func (s *communityService) Create(ctx context.Context, userID string, payload dto.CreateCommunityRequest) (dto.CommunityCreatedResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CommunityCreatedResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "community.create")
	defer span.End()

	community := models.Community{
		Name:            s.sanitizer.Sanitize(payload.Name),
		OwnerID:         userID,
		BasePermissions: datatypes.JSONSlice[models.Permission]{models.PermissionReadMessages, models.PermissionSendMessages},
	}
	if err := s.communities.Create(ctx, &community); err != nil {
		return dto.CommunityCreatedResponse{}, err
	}
	if err := s.communities.AddMember(ctx, &models.CommunityMember{
		CommunityID: community.ID,
		UserID:      userID,
	}); err != nil {
		return dto.CommunityCreatedResponse{}, err
	}

	span.SetAttributes(attribute.String("community.id", community.ID))
	s.logger.Info().Str("community_id", community.ID).Str("owner_id", userID).Msg("community created")
	return dto.CommunityCreatedResponse{ID: community.ID}, nil
}

func (s *communityService) Get(ctx context.Context, communityID, userID string) (dto.CommunityResponse, error) {
	community, err := s.gate.CommunityRead(ctx, communityID, userID)
	if err != nil {
		return dto.CommunityResponse{}, err
	}
	return dto.NewCommunityResponse(community), nil
}

func (s *communityService) ChannelIDs(ctx context.Context, communityID, userID string) ([]string, error) {
	if _, err := s.gate.CommunityRead(ctx, communityID, userID); err != nil {
		return nil, err
	}
	ids, err := s.channels.ListIDsByCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *communityService) GroupIDs(ctx context.Context, communityID, userID string) ([]string, error) {
	if _, err := s.gate.CommunityRead(ctx, communityID, userID); err != nil {
		return nil, err
	}
	ids, err := s.communities.ListGroupIDs(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *communityService) CreateChannel(ctx context.Context, communityID, userID string, payload dto.CreateChannelRequest) (dto.ChannelCreatedResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChannelCreatedResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "community.create_channel",
		trace.WithAttributes(attribute.String("community.id", communityID)))
	defer span.End()

	if _, err := s.gate.CommunityManage(ctx, communityID, userID, models.PermissionManageChannels); err != nil {
		return dto.ChannelCreatedResponse{}, err
	}

	channelType := payload.Type
	if channelType == "" {
		channelType = models.ChannelText
	}
	channel := models.NewCommunityChannel(communityID, s.sanitizer.Sanitize(payload.Name), channelType)
	if err := s.channels.Create(ctx, &channel); err != nil {
		return dto.ChannelCreatedResponse{}, err
	}
	return dto.ChannelCreatedResponse{ID: channel.ID}, nil
}

func (s *communityService) CreateGroup(ctx context.Context, communityID, userID string, payload dto.CreateGroupRequest) (dto.GroupCreatedResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GroupCreatedResponse{}, err
	}
	for _, permission := range payload.Permissions {
		if !validPermission(permission) {
			return dto.GroupCreatedResponse{}, apperr.ErrInvalidPayload
		}
	}

	ctx, span := s.tracer.Start(ctx, "community.create_group",
		trace.WithAttributes(attribute.String("community.id", communityID)))
	defer span.End()

	if _, err := s.gate.CommunityManage(ctx, communityID, userID, models.PermissionManageGroups); err != nil {
		return dto.GroupCreatedResponse{}, err
	}

	group := models.Group{
		CommunityID: communityID,
		Name:        s.sanitizer.Sanitize(payload.Name),
		Permissions: datatypes.JSONSlice[models.Permission](payload.Permissions),
	}
	if err := s.groups.Create(ctx, &group); err != nil {
		return dto.GroupCreatedResponse{}, err
	}
	return dto.GroupCreatedResponse{ID: group.ID}, nil
}

func validPermission(permission models.Permission) bool {
	for _, known := range models.AllPermissions {
		if permission == known {
			return true
		}
	}
	return false
}
