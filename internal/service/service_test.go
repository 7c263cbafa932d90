package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/access"
	"github.com/octave-im/octave-api/internal/config"
	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/realtime"
	"github.com/octave-im/octave-api/internal/repository"
	"github.com/octave-im/octave-api/internal/token"
)

// testEnv wires real repositories over an in-memory database with the gate
// and synchronizer, so service tests exercise the same paths production does.
type testEnv struct {
	db            *gorm.DB
	users         repository.UserRepository
	relationships repository.RelationshipRepository
	conversations repository.ConversationRepository
	channels      repository.ChannelRepository
	messages      repository.MessageRepository
	communities   repository.CommunityRepository
	groups        repository.GroupRepository
	voiceRooms    repository.VoiceRoomRepository
	gate          *access.Gate
	registry      *realtime.Registry
	synchronizer  *realtime.Synchronizer
	tokens        *token.Manager
	validate      *validator.Validate
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Keychain{}, &models.Relationship{},
		&models.Conversation{}, &models.ConversationMember{},
		&models.Community{}, &models.CommunityMember{},
		&models.Group{}, &models.GroupMember{},
		&models.Channel{}, &models.Message{}, &models.Read{}, &models.VoiceRoom{},
	))

	env := &testEnv{
		db:            db,
		users:         repository.NewUserRepository(db),
		relationships: repository.NewRelationshipRepository(db),
		conversations: repository.NewConversationRepository(db),
		channels:      repository.NewChannelRepository(db),
		messages:      repository.NewMessageRepository(db),
		communities:   repository.NewCommunityRepository(db),
		groups:        repository.NewGroupRepository(db),
		voiceRooms:    repository.NewVoiceRoomRepository(db),
		tokens:        token.NewManager("test-secret"),
		validate:      dto.NewValidator(),
	}
	env.gate = access.NewGate(
		env.channels, env.conversations, env.communities,
		access.NewRelationshipResolver(env.relationships),
		access.NewPermissionResolver(env.communities, env.groups),
		access.NewMembershipResolver(env.conversations, env.communities),
		zerolog.Nop(),
	)
	env.registry = realtime.NewRegistry(zerolog.Nop())
	broker := realtime.NewBroker(env.registry, nil, nil, "test", zerolog.Nop())
	env.synchronizer = realtime.NewSynchronizer(env.registry, broker, env.conversations, zerolog.Nop())
	return env
}

func (e *testEnv) createUser(t *testing.T, username, email string) models.User {
	t.Helper()
	user := models.User{
		Email:         email,
		Username:      username,
		Discriminator: 1,
		State:         models.UserStateOnline,
	}
	require.NoError(t, e.users.Create(context.Background(), &user))
	return user
}

// befriend writes the reciprocal OUTGOING pair.
func (e *testEnv) befriend(t *testing.T, a, b string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.relationships.Upsert(ctx, &models.Relationship{UserID: a, RecipientID: b, Type: models.RelationshipOutgoing}))
	require.NoError(t, e.relationships.Upsert(ctx, &models.Relationship{UserID: b, RecipientID: a, Type: models.RelationshipOutgoing}))
}

// connect registers a live gateway session for the user.
func (e *testEnv) connect(t *testing.T, userID string) *realtime.Session {
	t.Helper()
	session := realtime.NewSession(userID)
	e.registry.Register(session)
	return session
}

func (e *testEnv) userService() UserService {
	return NewUserService(
		e.users, e.relationships, e.conversations, e.communities,
		e.tokens, e.registry, nil, e.validate, zerolog.Nop(),
		7*24*time.Hour, 30*time.Second,
	)
}

func (e *testEnv) conversationService() ConversationService {
	return NewConversationService(e.conversations, e.users, e.gate, e.synchronizer, e.validate, zerolog.Nop())
}

func (e *testEnv) channelService() ChannelService {
	return NewChannelService(
		e.channels, e.messages, e.voiceRooms, e.gate, e.synchronizer, e.tokens,
		[]config.VoiceServer{{ID: "voice-1", Socket: "wss://voice-1.test"}},
		30*time.Second, e.validate, zerolog.Nop(),
	)
}

func (e *testEnv) communityService() CommunityService {
	return NewCommunityService(e.communities, e.channels, e.groups, e.gate, e.validate, zerolog.Nop())
}

func (e *testEnv) groupService() GroupService {
	return NewGroupService(e.groups, e.gate, zerolog.Nop())
}

func (e *testEnv) voiceService() VoiceService {
	return NewVoiceService(e.voiceRooms, e.synchronizer, zerolog.Nop())
}
