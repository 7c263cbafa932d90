package handler_test

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/access"
	"github.com/octave-im/octave-api/internal/config"
	"github.com/octave-im/octave-api/internal/database"
	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/handler"
	"github.com/octave-im/octave-api/internal/middleware"
	"github.com/octave-im/octave-api/internal/realtime"
	"github.com/octave-im/octave-api/internal/repository"
	"github.com/octave-im/octave-api/internal/router"
	"github.com/octave-im/octave-api/internal/service"
	"github.com/octave-im/octave-api/internal/token"
	"github.com/octave-im/octave-api/pkg/signing"
)

const gatewayToken = "gateway-secret"

type testApp struct {
	app    *fiber.App
	tokens *token.Manager
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := zerolog.Nop()
	validate := dto.NewValidator()
	tokens := token.NewManager("handler-test-secret")

	userRepo := repository.NewUserRepository(db)
	relationshipRepo := repository.NewRelationshipRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	voiceRoomRepo := repository.NewVoiceRoomRepository(db)

	registry := realtime.NewRegistry(logger)
	broker := realtime.NewBroker(registry, nil, nil, "test", logger)
	synchronizer := realtime.NewSynchronizer(registry, broker, conversationRepo, logger)
	gateway := realtime.NewGateway(synchronizer, logger)

	gate := access.NewGate(
		channelRepo,
		conversationRepo,
		communityRepo,
		access.NewRelationshipResolver(relationshipRepo),
		access.NewPermissionResolver(communityRepo, groupRepo),
		access.NewMembershipResolver(conversationRepo, communityRepo),
		logger,
	)

	userService := service.NewUserService(userRepo, relationshipRepo, conversationRepo, communityRepo, tokens, registry, nil, validate, logger, time.Hour, 30*time.Second)
	conversationService := service.NewConversationService(conversationRepo, userRepo, gate, synchronizer, validate, logger)
	channelService := service.NewChannelService(channelRepo, messageRepo, voiceRoomRepo, gate, synchronizer, tokens, []config.VoiceServer{{ID: "voice-1", Socket: "wss://voice-1.test"}}, 30*time.Second, validate, logger)
	communityService := service.NewCommunityService(communityRepo, channelRepo, groupRepo, gate, validate, logger)
	groupService := service.NewGroupService(groupRepo, gate, logger)
	voiceService := service.NewVoiceService(voiceRoomRepo, synchronizer, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(userService, logger),
		UserHandler:         handler.NewUserHandler(userService, logger),
		ConversationHandler: handler.NewConversationHandler(conversationService, logger),
		ChannelHandler:      handler.NewChannelHandler(channelService, logger),
		CommunityHandler:    handler.NewCommunityHandler(communityService, logger),
		GroupHandler:        handler.NewGroupHandler(groupService, logger),
		VoiceHandler:        handler.NewVoiceHandler(voiceService, logger),
		GatewayHandler:      handler.NewGatewayHandler(gateway, tokens, logger),
		AuthMiddleware:      middleware.RequireUser(tokens, userRepo),
		GatewayMiddleware:   middleware.RequireGateway(gatewayToken),
	})

	return &testApp{app: app, tokens: tokens}
}

type account struct {
	ID    string
	Email string
	Token string
	priv  ed25519.PrivateKey
}

// register creates an account over the API and resolves its id through /users/me.
func (ta *testApp) register(t *testing.T, username, email string) *account {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	publicKeychain, err := json.Marshal(map[string]any{"signing": signing.KeyToInts(pub)})
	require.NoError(t, err)

	resp := ta.request(t, "POST", "/auth/register", "", map[string]any{
		"username":          username,
		"email":             email,
		"salt":              json.RawMessage(`[1,2,3]`),
		"encryptedKeychain": json.RawMessage(`{"cipher":"aes"}`),
		"publicKeychain":    json.RawMessage(publicKeychain),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Data dto.TokenResponse `json:"data"`
	}
	decodeBody(t, resp, &created)
	require.NotEmpty(t, created.Data.Token)

	me := ta.request(t, "GET", "/users/me", created.Data.Token, nil)
	require.Equal(t, fiber.StatusOK, me.StatusCode)

	var profile struct {
		Data dto.MeResponse `json:"data"`
	}
	decodeBody(t, me, &profile)

	return &account{ID: profile.Data.ID, Email: email, Token: created.Data.Token, priv: priv}
}

// befriend completes the request/accept handshake between two accounts.
func (ta *testApp) befriend(t *testing.T, a, b *account) {
	t.Helper()
	for _, pair := range [][2]*account{{a, b}, {b, a}} {
		resp := ta.request(t, "PUT", "/users/me/relationships/"+pair[1].ID, pair[0].Token, map[string]string{"type": "OUTGOING"})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func (ta *testApp) request(t *testing.T, method, path, authToken string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	decodeBody(t, resp, &body)
	return body.Code
}
