package contract_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
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

type contractEnv struct {
	app          *fiber.App
	registry     *realtime.Registry
	synchronizer *realtime.Synchronizer
}

func setupEnv(t *testing.T) *contractEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := zerolog.Nop()
	validate := dto.NewValidator()
	tokens := token.NewManager("contract-test-secret")

	userRepo := repository.NewUserRepository(db)
	relationshipRepo := repository.NewRelationshipRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	voiceRoomRepo := repository.NewVoiceRoomRepository(db)

	registry := realtime.NewRegistry(logger)
	broker := realtime.NewBroker(registry, nil, nil, "contract", logger)
	synchronizer := realtime.NewSynchronizer(registry, broker, conversationRepo, logger)

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

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Contract"}, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(userService, logger),
		UserHandler:         handler.NewUserHandler(userService, logger),
		ConversationHandler: handler.NewConversationHandler(conversationService, logger),
		ChannelHandler:      handler.NewChannelHandler(channelService, logger),
		AuthMiddleware:      middleware.RequireUser(tokens, userRepo),
	})

	return &contractEnv{app: app, registry: registry, synchronizer: synchronizer}
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "contracts", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + path)
	require.NoError(t, err)
	return schema
}

func (e *contractEnv) call(t *testing.T, method, path, authToken string, body any) *http.Response {
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

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (e *contractEnv) register(t *testing.T, username, email string) (string, string) {
	t.Helper()

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	publicKeychain, err := json.Marshal(map[string]any{"signing": signing.KeyToInts(pub)})
	require.NoError(t, err)

	resp := e.call(t, "POST", "/auth/register", "", map[string]any{
		"username":          username,
		"email":             email,
		"salt":              json.RawMessage(`[1,2]`),
		"encryptedKeychain": json.RawMessage(`{"cipher":"aes"}`),
		"publicKeychain":    json.RawMessage(publicKeychain),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Data dto.TokenResponse `json:"data"`
	}
	decode(t, resp, &created)

	me := e.call(t, "GET", "/users/me", created.Data.Token, nil)
	var profile struct {
		Data dto.MeResponse `json:"data"`
	}
	decode(t, me, &profile)

	return profile.Data.ID, created.Data.Token
}

func decode(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func validateResponse(t *testing.T, schema *jsonschema.Schema, resp *http.Response) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestProfileResponseContract(t *testing.T) {
	env := setupEnv(t)
	schema := compileSchema(t, "profile.schema.json")

	_, aliceToken := env.register(t, "alice", "alice@example.com")

	resp := env.call(t, "GET", "/users/me", aliceToken, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	validateResponse(t, schema, resp)
}

func TestMessageListingContract(t *testing.T) {
	env := setupEnv(t)
	schema := compileSchema(t, "messages.schema.json")

	aliceID, aliceToken := env.register(t, "alice", "alice@example.com")
	bobID, bobToken := env.register(t, "bob", "bob@example.com")

	resp := env.call(t, "PUT", "/users/me/relationships/"+bobID, aliceToken, map[string]string{"type": "OUTGOING"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = env.call(t, "PUT", "/users/me/relationships/"+aliceID, bobToken, map[string]string{"type": "OUTGOING"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	created := env.call(t, "POST", "/conversations", aliceToken, map[string]any{"type": "DM", "recipient": bobID})
	require.Equal(t, fiber.StatusCreated, created.StatusCode)
	var conversation struct {
		Data dto.ConversationCreatedResponse `json:"data"`
	}
	decode(t, created, &conversation)

	detail := env.call(t, "GET", "/conversations/"+conversation.Data.ID, aliceToken, nil)
	var view struct {
		Data dto.ConversationResponse `json:"data"`
	}
	decode(t, detail, &view)

	post := env.call(t, "POST", "/channels/"+view.Data.ChannelID+"/messages", aliceToken, map[string]any{
		"payload": map[string]string{"content": "contract body"},
	})
	require.Equal(t, fiber.StatusCreated, post.StatusCode)

	listing := env.call(t, "GET", "/channels/"+view.Data.ChannelID+"/messages", bobToken, nil)
	require.Equal(t, fiber.StatusOK, listing.StatusCode)
	validateResponse(t, schema, listing)
}

func TestGatewayEventContract(t *testing.T) {
	env := setupEnv(t)
	schema := compileSchema(t, "gateway_event.schema.json")

	aliceID, aliceToken := env.register(t, "alice", "alice@example.com")
	bobID, bobToken := env.register(t, "bob", "bob@example.com")

	resp := env.call(t, "PUT", "/users/me/relationships/"+bobID, aliceToken, map[string]string{"type": "OUTGOING"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = env.call(t, "PUT", "/users/me/relationships/"+aliceID, bobToken, map[string]string{"type": "OUTGOING"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	session := realtime.NewSession(bobID)
	require.NoError(t, env.synchronizer.Connect(context.Background(), session))
	defer env.synchronizer.Disconnect(session)

	created := env.call(t, "POST", "/conversations", aliceToken, map[string]any{"type": "DM", "recipient": bobID})
	require.Equal(t, fiber.StatusCreated, created.StatusCode)

	select {
	case event := <-session.Send():
		raw, err := json.Marshal(event)
		require.NoError(t, err)

		var payload interface{}
		require.NoError(t, json.Unmarshal(raw, &payload))
		require.NoError(t, schema.Validate(payload))
		require.Equal(t, realtime.EventConversationCreate, event.Name)
	case <-time.After(time.Second):
		t.Fatal("expected a gateway event for the new conversation")
	}
}
