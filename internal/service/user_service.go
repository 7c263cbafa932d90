package service

import (
	"context"
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

	"github.com/octave-im/octave-api/internal/apperr"
	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/repository"
	"github.com/octave-im/octave-api/internal/token"
	"github.com/octave-im/octave-api/pkg/media"
	"github.com/octave-im/octave-api/pkg/signing"
)

const maxDiscriminator = 9999

// PresenceChecker reports whether a user currently holds a gateway session.
type PresenceChecker interface {
	IsOnline(userID string) bool
}

// UserService covers accounts, the challenge login flow, profiles and
// relationship edges.
type UserService interface {
	Register(ctx context.Context, payload dto.RegisterUserRequest) (dto.TokenResponse, error)
	Challenge(ctx context.Context, payload dto.ChallengeRequest) (dto.ChallengeResponse, error)
	Login(ctx context.Context, payload dto.LoginRequest) (dto.TokenResponse, error)
	Me(ctx context.Context, userID string) (dto.MeResponse, error)
	Get(ctx context.Context, id string) (dto.UserResponse, error)
	Find(ctx context.Context, query dto.FindUserQuery) (dto.UserResponse, error)
	Update(ctx context.Context, userID string, payload dto.PatchUserRequest) error
	UpdateAvatar(ctx context.Context, userID string, data []byte) (dto.AvatarResponse, error)
	Relationships(ctx context.Context, userID string) (dto.RelationshipsResponse, error)
	PutRelationship(ctx context.Context, userID, recipientID string, payload dto.PutRelationshipRequest) error
	DeleteRelationship(ctx context.Context, userID, recipientID string) error
	ConversationIDs(ctx context.Context, userID string) ([]string, error)
	CommunityIDs(ctx context.Context, userID string) ([]string, error)
}

type userService struct {
	users             repository.UserRepository
	relationships     repository.RelationshipRepository
	conversations     repository.ConversationRepository
	communities       repository.CommunityRepository
	tokens            *token.Manager
	presence          PresenceChecker
	uploader          media.Uploader
	validator         *validator.Validate
	sanitizer         *bluemonday.Policy
	logger            zerolog.Logger
	tracer            trace.Tracer
	userTokenTTL      time.Duration
	challengeTokenTTL time.Duration
	randInt           func(n int) int
}

// NewUserService builds the user service.
func NewUserService(
	users repository.UserRepository,
	relationships repository.RelationshipRepository,
	conversations repository.ConversationRepository,
	communities repository.CommunityRepository,
	tokens *token.Manager,
	presence PresenceChecker,
	uploader media.Uploader,
	validate *validator.Validate,
	logger zerolog.Logger,
	userTokenTTL, challengeTokenTTL time.Duration,
) UserService {
	return &userService{
		users:             users,
		relationships:     relationships,
		conversations:     conversations,
		communities:       communities,
		tokens:            tokens,
		presence:          presence,
		uploader:          uploader,
		validator:         validate,
		sanitizer:         bluemonday.StrictPolicy(),
		logger:            logger.With().Str("component", "user_service").Logger(),
		tracer:            otel.Tracer("github.com/octave-im/octave-api/internal/service/user"),
		userTokenTTL:      userTokenTTL,
		challengeTokenTTL: challengeTokenTTL,
		randInt:           rand.Intn,
	}
}

func (s *userService) Register(ctx context.Context, payload dto.RegisterUserRequest) (dto.TokenResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TokenResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "user.register")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	taken, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return dto.TokenResponse{}, err
	}
	if taken {
		return dto.TokenResponse{}, apperr.ErrEmailInUse
	}

	discriminator, err := s.pickDiscriminator(ctx, payload.Username)
	if err != nil {
		return dto.TokenResponse{}, err
	}

	user := models.User{
		Email:         email,
		Username:      payload.Username,
		Discriminator: discriminator,
		State:         models.UserStateOnline,
		Badges:        datatypes.JSONSlice[string]{},
		Keychain: &models.Keychain{
			EncryptedKeychain: datatypes.JSON(payload.EncryptedKeychain),
			PublicKeychain:    datatypes.JSON(payload.PublicKeychain),
			Salt:              datatypes.JSON(payload.Salt),
		},
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return dto.TokenResponse{}, err
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user registered")

	signed, err := s.tokens.Issue(token.TypeUser, user.ID, s.userTokenTTL)
	if err != nil {
		return dto.TokenResponse{}, err
	}
	return dto.TokenResponse{Token: signed}, nil
}

// pickDiscriminator draws a random free discriminator for the username. The
// namespace holds 9999 slots per username.
func (s *userService) pickDiscriminator(ctx context.Context, username string) (int, error) {
	taken, err := s.users.ListDiscriminators(ctx, username)
	if err != nil {
		return 0, err
	}
	if len(taken) >= maxDiscriminator {
		return 0, apperr.ErrUsernameTaken
	}

	used := make(map[int]struct{}, len(taken))
	for _, d := range taken {
		used[d] = struct{}{}
	}
	free := make([]int, 0, maxDiscriminator-len(taken))
	for d := 1; d <= maxDiscriminator; d++ {
		if _, ok := used[d]; !ok {
			free = append(free, d)
		}
	}
	return free[s.randInt(len(free))], nil
}

func (s *userService) Challenge(ctx context.Context, payload dto.ChallengeRequest) (dto.ChallengeResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ChallengeResponse{}, err
	}

	user, err := s.getByEmail(ctx, payload.Email)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}

	challenge, err := s.tokens.Issue(token.TypeChallenge, user.ID, s.challengeTokenTTL)
	if err != nil {
		return dto.ChallengeResponse{}, err
	}

	response := dto.ChallengeResponse{Challenge: challenge}
	if user.Keychain != nil {
		response.EncryptedKeychain = []byte(user.Keychain.EncryptedKeychain)
		response.Salt = []byte(user.Keychain.Salt)
	}
	return response, nil
}

func (s *userService) Login(ctx context.Context, payload dto.LoginRequest) (dto.TokenResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.TokenResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "user.login")
	defer span.End()

	user, err := s.getByEmail(ctx, payload.Email)
	if err != nil {
		return dto.TokenResponse{}, err
	}
	if user.Keychain == nil {
		return dto.TokenResponse{}, apperr.ErrInvalidSignature
	}

	signingKey, err := signing.SigningKeyFromKeychain([]byte(user.Keychain.PublicKeychain))
	if err != nil {
		return dto.TokenResponse{}, apperr.ErrInvalidSignature
	}
	challenge, err := signing.Verify(payload.SignedChallenge, signingKey)
	if err != nil {
		return dto.TokenResponse{}, apperr.ErrInvalidSignature
	}

	// The signed document must be the challenge we minted for this exact
	// account, still within its lifetime.
	claims, err := s.tokens.Verify(string(challenge))
	if err != nil || claims.Type != token.TypeChallenge || claims.Subject != user.ID {
		return dto.TokenResponse{}, apperr.ErrInvalidToken
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.logger.Info().Str("user_id", user.ID).Msg("user logged in")

	signed, err := s.tokens.Issue(token.TypeUser, user.ID, s.userTokenTTL)
	if err != nil {
		return dto.TokenResponse{}, err
	}
	return dto.TokenResponse{Token: signed}, nil
}

func (s *userService) getByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, apperr.ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *userService) Me(ctx context.Context, userID string) (dto.MeResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.MeResponse{}, apperr.ErrUserNotFound
		}
		return dto.MeResponse{}, err
	}
	return dto.NewMeResponse(user), nil
}

func (s *userService) Get(ctx context.Context, id string) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, apperr.ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user, s.liveState(user)), nil
}

func (s *userService) Find(ctx context.Context, query dto.FindUserQuery) (dto.UserResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByUsername(ctx, query.Username, query.Discriminator)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, apperr.ErrUserNotFound
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user, s.liveState(user)), nil
}

// liveState overrides the stored state with OFFLINE when no gateway session
// is connected.
func (s *userService) liveState(user models.User) models.UserState {
	if s.presence == nil || !s.presence.IsOnline(user.ID) {
		return models.UserStateOffline
	}
	if user.State == "" {
		return models.UserStateOnline
	}
	return user.State
}

func (s *userService) Update(ctx context.Context, userID string, payload dto.PatchUserRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if payload.Username != nil {
		updates["username"] = *payload.Username
	}
	if payload.State != nil {
		updates["state"] = *payload.State
	}
	if payload.Status != nil {
		updates["status"] = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Status))
	}
	return s.users.Update(ctx, userID, updates)
}

func (s *userService) UpdateAvatar(ctx context.Context, userID string, data []byte) (dto.AvatarResponse, error) {
	ctx, span := s.tracer.Start(ctx, "user.update_avatar")
	defer span.End()

	url, err := s.uploader.UploadAvatar(ctx, userID, data)
	if err != nil {
		return dto.AvatarResponse{}, err
	}
	if err := s.users.Update(ctx, userID, map[string]interface{}{"avatar": url}); err != nil {
		return dto.AvatarResponse{}, err
	}
	return dto.AvatarResponse{Avatar: url}, nil
}

func (s *userService) Relationships(ctx context.Context, userID string) (dto.RelationshipsResponse, error) {
	outgoing, err := s.relationships.ListOutgoing(ctx, userID)
	if err != nil {
		return dto.RelationshipsResponse{}, err
	}
	incoming, err := s.relationships.ListIncoming(ctx, userID)
	if err != nil {
		return dto.RelationshipsResponse{}, err
	}

	// A friendship is a reciprocal pair of OUTGOING edges.
	incomingRequests := make(map[string]struct{})
	for _, edge := range incoming {
		if edge.Type == models.RelationshipOutgoing {
			incomingRequests[edge.UserID] = struct{}{}
		}
	}

	response := dto.RelationshipsResponse{
		Friends:  []string{},
		Outgoing: []string{},
		Incoming: []string{},
		Blocked:  []string{},
	}
	mutual := make(map[string]struct{})
	for _, edge := range outgoing {
		switch edge.Type {
		case models.RelationshipBlocked:
			response.Blocked = append(response.Blocked, edge.RecipientID)
		case models.RelationshipOutgoing:
			if _, ok := incomingRequests[edge.RecipientID]; ok {
				response.Friends = append(response.Friends, edge.RecipientID)
				mutual[edge.RecipientID] = struct{}{}
			} else {
				response.Outgoing = append(response.Outgoing, edge.RecipientID)
			}
		}
	}
	for _, edge := range incoming {
		if edge.Type != models.RelationshipOutgoing {
			continue
		}
		if _, ok := mutual[edge.UserID]; !ok {
			response.Incoming = append(response.Incoming, edge.UserID)
		}
	}
	return response, nil
}

func (s *userService) PutRelationship(ctx context.Context, userID, recipientID string, payload dto.PutRelationshipRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}
	if recipientID == userID {
		return apperr.ErrInvalidUser
	}

	ctx, span := s.tracer.Start(ctx, "user.put_relationship",
		trace.WithAttributes(attribute.String("relationship.type", string(payload.Type))))
	defer span.End()

	if _, err := s.users.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrUserNotFound
		}
		return err
	}

	if payload.Type == models.RelationshipOutgoing {
		// A blocked requester cannot tell the block exists.
		if _, err := s.relationships.GetOfType(ctx, recipientID, userID, models.RelationshipBlocked); err == nil {
			return apperr.ErrUserNotFound
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	if payload.Type == models.RelationshipBlocked {
		// Blocking severs any friendship or pending request from the other
		// side; their own block, if any, stands.
		if err := s.relationships.DeleteNonBlocked(ctx, recipientID, userID); err != nil {
			return err
		}
	}

	return s.relationships.Upsert(ctx, &models.Relationship{
		UserID:      userID,
		RecipientID: recipientID,
		Type:        payload.Type,
	})
}

func (s *userService) DeleteRelationship(ctx context.Context, userID, recipientID string) error {
	if err := s.relationships.Delete(ctx, userID, recipientID); err != nil {
		return err
	}
	// Removing a friend also retracts their request edge, but never their
	// block.
	return s.relationships.DeleteOfType(ctx, recipientID, userID, models.RelationshipOutgoing)
}

func (s *userService) ConversationIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.conversations.ListIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *userService) CommunityIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.communities.ListIDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
