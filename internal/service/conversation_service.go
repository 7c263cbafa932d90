package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/access"
	"github.com/octave-im/octave-api/internal/apperr"
	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/realtime"
	"github.com/octave-im/octave-api/internal/repository"
)

// ConversationService covers DM and GROUP conversation lifecycle and member
// management. Every mutation is mirrored onto gateway rooms through the
// synchronizer.
type ConversationService interface {
	Create(ctx context.Context, userID string, payload dto.CreateConversationRequest) (dto.ConversationCreatedResponse, error)
	Get(ctx context.Context, conversationID, userID string) (dto.ConversationResponse, error)
	Rename(ctx context.Context, conversationID, userID string, payload dto.PatchConversationRequest) error
	Members(ctx context.Context, conversationID, userID string) ([]dto.ConversationMemberResponse, error)
	PutMember(ctx context.Context, conversationID, actorID, targetID string, payload dto.PutConversationMemberRequest) error
	RemoveMember(ctx context.Context, conversationID, actorID, targetID string) error
	Leave(ctx context.Context, conversationID, userID string) error
}

type conversationService struct {
	conversations repository.ConversationRepository
	users         repository.UserRepository
	relationships *access.RelationshipResolver
	gate          *access.Gate
	synchronizer  *realtime.Synchronizer
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
}

// NewConversationService builds the conversation service.
func NewConversationService(
	conversations repository.ConversationRepository,
	users repository.UserRepository,
	gate *access.Gate,
	synchronizer *realtime.Synchronizer,
	validate *validator.Validate,
	logger zerolog.Logger,
) ConversationService {
	return &conversationService{
		conversations: conversations,
		users:         users,
		relationships: gate.Relationships(),
		gate:          gate,
		synchronizer:  synchronizer,
		validator:     validate,
		logger:        logger.With().Str("component", "conversation_service").Logger(),
		tracer:        otel.Tracer("github.com/octave-im/octave-api/internal/service/conversation"),
	}
}

func (s *conversationService) Create(ctx context.Context, userID string, payload dto.CreateConversationRequest) (dto.ConversationCreatedResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ConversationCreatedResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "conversation.create",
		trace.WithAttributes(attribute.String("conversation.type", string(payload.Type))))
	defer span.End()

	var (
		conversation models.Conversation
		err          error
	)
	switch payload.Type {
	case models.ConversationDM:
		conversation, err = s.createDM(ctx, userID, payload.Recipient)
	case models.ConversationGroup:
		conversation, err = s.createGroup(ctx, userID, payload.Name, payload.Recipients)
	default:
		err = apperr.ErrInvalidConversationType
	}
	if err != nil {
		return dto.ConversationCreatedResponse{}, err
	}

	span.SetAttributes(attribute.String("conversation.id", conversation.ID))
	s.logger.Info().
		Str("conversation_id", conversation.ID).
		Str("type", string(conversation.Type)).
		Int("members", len(conversation.Members)).
		Msg("conversation created")

	s.synchronizer.ConversationCreated(ctx, &conversation)
	return dto.ConversationCreatedResponse{ID: conversation.ID}, nil
}

func (s *conversationService) createDM(ctx context.Context, userID, recipientID string) (models.Conversation, error) {
	if recipientID == userID {
		return models.Conversation{}, apperr.ErrInvalidUser
	}
	if _, err := s.users.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Conversation{}, apperr.ErrUserNotFound
		}
		return models.Conversation{}, err
	}

	blocked, err := s.relationships.IsBlocked(ctx, userID, recipientID)
	if err != nil {
		return models.Conversation{}, err
	}
	if blocked {
		return models.Conversation{}, apperr.ErrUserNotFound
	}
	friends, err := s.relationships.AreFriends(ctx, userID, recipientID)
	if err != nil {
		return models.Conversation{}, err
	}
	if !friends {
		return models.Conversation{}, apperr.ErrNotFriends
	}

	if _, err := s.conversations.FindDMBetween(ctx, userID, recipientID); err == nil {
		return models.Conversation{}, apperr.ErrAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Conversation{}, err
	}

	conversation := models.Conversation{
		Type: models.ConversationDM,
		Members: []models.ConversationMember{
			{UserID: userID, Permission: models.ConversationPermissionOwner},
			{UserID: recipientID, Permission: models.ConversationPermissionOwner},
		},
		Channels: []models.Channel{
			{Type: models.ChannelText},
			{Type: models.ChannelVoice},
		},
	}
	if err := s.conversations.Create(ctx, &conversation); err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (s *conversationService) createGroup(ctx context.Context, userID, name string, recipientIDs []string) (models.Conversation, error) {
	recipients := dedupe(recipientIDs, userID)
	if len(recipients) == 0 {
		return models.Conversation{}, apperr.ErrInvalidUser
	}

	allExist, err := s.users.ExistAll(ctx, recipients)
	if err != nil {
		return models.Conversation{}, err
	}
	if !allExist {
		return models.Conversation{}, apperr.ErrUserNotFound
	}

	blocked, err := s.relationships.AnyBlocks(ctx, userID, recipients)
	if err != nil {
		return models.Conversation{}, err
	}
	if blocked {
		return models.Conversation{}, apperr.ErrUserNotFound
	}

	for _, recipientID := range recipients {
		friends, err := s.relationships.AreFriends(ctx, userID, recipientID)
		if err != nil {
			return models.Conversation{}, err
		}
		if !friends {
			return models.Conversation{}, apperr.ErrNotFriends
		}
	}

	members := make([]models.ConversationMember, 0, len(recipients)+1)
	members = append(members, models.ConversationMember{UserID: userID, Permission: models.ConversationPermissionOwner})
	for _, recipientID := range recipients {
		members = append(members, models.ConversationMember{UserID: recipientID, Permission: models.ConversationPermissionMember})
	}

	conversation := models.Conversation{
		Type:    models.ConversationGroup,
		Name:    name,
		Members: members,
		Channels: []models.Channel{
			{Type: models.ChannelText},
			{Type: models.ChannelVoice},
		},
	}
	if err := s.conversations.Create(ctx, &conversation); err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func dedupe(ids []string, exclude string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// requireConversation loads a conversation the user belongs to. Outsiders see
// ConversationNotFound regardless of whether the conversation exists.
func (s *conversationService) requireConversation(ctx context.Context, conversationID, userID string) (models.Conversation, models.ConversationMember, error) {
	member, err := s.conversations.GetMember(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Conversation{}, models.ConversationMember{}, apperr.ErrConversationNotFound
		}
		return models.Conversation{}, models.ConversationMember{}, err
	}

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Conversation{}, models.ConversationMember{}, apperr.ErrConversationNotFound
		}
		return models.Conversation{}, models.ConversationMember{}, err
	}
	return conversation, member, nil
}

func (s *conversationService) Get(ctx context.Context, conversationID, userID string) (dto.ConversationResponse, error) {
	conversation, _, err := s.requireConversation(ctx, conversationID, userID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}
	return dto.NewConversationResponse(conversation), nil
}

func (s *conversationService) Rename(ctx context.Context, conversationID, userID string, payload dto.PatchConversationRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	conversation, member, err := s.requireConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if conversation.Type != models.ConversationGroup {
		return apperr.ErrInvalidConversationType
	}
	if member.Permission == models.ConversationPermissionMember {
		return apperr.ErrMemberPermissions
	}

	if err := s.conversations.UpdateName(ctx, conversationID, payload.Name); err != nil {
		return err
	}
	s.synchronizer.ConversationUpdated(ctx, conversationID, payload.Name, userID)
	return nil
}

func (s *conversationService) Members(ctx context.Context, conversationID, userID string) ([]dto.ConversationMemberResponse, error) {
	if _, _, err := s.requireConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	members, err := s.conversations.ListMembers(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return dto.NewConversationMemberResponseSlice(members), nil
}

func (s *conversationService) PutMember(ctx context.Context, conversationID, actorID, targetID string, payload dto.PutConversationMemberRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}
	permission := payload.Permission
	if permission == "" {
		permission = models.ConversationPermissionMember
	}

	ctx, span := s.tracer.Start(ctx, "conversation.put_member",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	conversation, actor, err := s.requireConversation(ctx, conversationID, actorID)
	if err != nil {
		return err
	}
	if conversation.Type != models.ConversationGroup {
		return apperr.ErrInvalidConversationType
	}
	if err := s.gate.MemberGrant(actor, permission); err != nil {
		return err
	}

	target, err := s.conversations.GetMember(ctx, conversationID, targetID)
	existing := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if existing {
		// Re-grading an owner, or anyone at or above the actor's own level,
		// is out of reach.
		if err := s.gate.MemberRemove(actor, target); err != nil {
			return err
		}
	} else {
		if _, err := s.users.GetByID(ctx, targetID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrRecipientNotFound
			}
			return err
		}
		if err := s.gate.NewMemberAdd(ctx, actorID, targetID); err != nil {
			return err
		}
	}

	member := models.ConversationMember{
		ConversationID: conversationID,
		UserID:         targetID,
		Permission:     permission,
	}
	if err := s.conversations.UpsertMember(ctx, &member); err != nil {
		return err
	}

	s.synchronizer.MemberAdded(ctx, &conversation, member, actorID, existing)
	return nil
}

func (s *conversationService) RemoveMember(ctx context.Context, conversationID, actorID, targetID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.remove_member",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	conversation, actor, err := s.requireConversation(ctx, conversationID, actorID)
	if err != nil {
		return err
	}
	if conversation.Type != models.ConversationGroup {
		return apperr.ErrInvalidConversationType
	}

	target, err := s.conversations.GetMember(ctx, conversationID, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrRecipientMemberNotFound
		}
		return err
	}
	if err := s.gate.MemberRemove(actor, target); err != nil {
		return err
	}

	if err := s.conversations.DeleteMember(ctx, conversationID, targetID); err != nil {
		return err
	}
	s.synchronizer.MemberRemoved(ctx, &conversation, targetID, actorID, false)
	return nil
}

func (s *conversationService) Leave(ctx context.Context, conversationID, userID string) error {
	conversation, member, err := s.requireConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if conversation.Type != models.ConversationGroup {
		return apperr.ErrInvalidConversationType
	}
	// The owner cannot abandon the conversation.
	if member.Permission == models.ConversationPermissionOwner {
		return apperr.ErrMemberPermissions
	}

	if err := s.conversations.DeleteMember(ctx, conversationID, userID); err != nil {
		return err
	}
	s.synchronizer.MemberRemoved(ctx, &conversation, userID, userID, true)
	return nil
}
