package integration_test

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
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

const gatewaySecret = "integration-gateway-secret"

func setupChatApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := zerolog.Nop()
	validate := dto.NewValidator()
	tokens := token.NewManager("integration-secret")

	userRepo := repository.NewUserRepository(db)
	relationshipRepo := repository.NewRelationshipRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	channelRepo := repository.NewChannelRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	communityRepo := repository.NewCommunityRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	voiceRoomRepo := repository.NewVoiceRoomRepository(db)

	registry := realtime.NewRegistry(logger)
	broker := realtime.NewBroker(registry, nil, nil, "integration", logger)
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
	voiceService := service.NewVoiceService(voiceRoomRepo, synchronizer, logger)

	app := fiber.New()
	app.Use(middleware.CorrelationID())
	router.Register(app, config.Config{AppName: "Integration"}, router.Dependencies{
		AuthHandler:         handler.NewAuthHandler(userService, logger),
		UserHandler:         handler.NewUserHandler(userService, logger),
		ConversationHandler: handler.NewConversationHandler(conversationService, logger),
		ChannelHandler:      handler.NewChannelHandler(channelService, logger),
		VoiceHandler:        handler.NewVoiceHandler(voiceService, logger),
		GatewayHandler:      handler.NewGatewayHandler(gateway, tokens, logger),
		AuthMiddleware:      middleware.RequireUser(tokens, userRepo),
		GatewayMiddleware:   middleware.RequireGateway(gatewaySecret),
	})

	return app
}

func startServer(t *testing.T, app *fiber.App) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(200 * time.Millisecond):
		}
	})

	return "http://" + listener.Addr().String()
}

type client struct {
	baseURL string
	ID      string
	Token   string
}

func registerClient(t *testing.T, baseURL, username, email string) *client {
	t.Helper()

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	publicKeychain, err := json.Marshal(map[string]any{"signing": signing.KeyToInts(pub)})
	require.NoError(t, err)

	c := &client{baseURL: baseURL}
	resp := c.do(t, "POST", "/auth/register", map[string]any{
		"username":          username,
		"email":             email,
		"salt":              json.RawMessage(`[7,7,7]`),
		"encryptedKeychain": json.RawMessage(`{"cipher":"aes"}`),
		"publicKeychain":    json.RawMessage(publicKeychain),
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created struct {
		Data dto.TokenResponse `json:"data"`
	}
	decodeJSON(t, resp, &created)
	c.Token = created.Data.Token

	me := c.do(t, "GET", "/users/me", nil)
	require.Equal(t, fiber.StatusOK, me.StatusCode)
	var profile struct {
		Data dto.MeResponse `json:"data"`
	}
	decodeJSON(t, me, &profile)
	c.ID = profile.Data.ID
	return c
}

func (c *client) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func dialGateway(t *testing.T, baseURL, userToken string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/gateway?token=" + userToken
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame struct {
			Event string         `json:"event"`
			Data  map[string]any `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Event == want {
			return frame.Data
		}
	}
}

func TestChatEndToEnd(t *testing.T) {
	app := setupChatApp(t)
	baseURL := startServer(t, app)

	alice := registerClient(t, baseURL, "alice", "alice@example.com")
	bob := registerClient(t, baseURL, "bob", "bob@example.com")

	resp := alice.do(t, "PUT", "/users/me/relationships/"+bob.ID, map[string]string{"type": "OUTGOING"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = bob.do(t, "PUT", "/users/me/relationships/"+alice.ID, map[string]string{"type": "OUTGOING"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	bobSocket := dialGateway(t, baseURL, bob.Token)

	created := alice.do(t, "POST", "/conversations", map[string]any{"type": "DM", "recipient": bob.ID})
	require.Equal(t, fiber.StatusCreated, created.StatusCode)
	var conversation struct {
		Data dto.ConversationCreatedResponse `json:"data"`
	}
	decodeJSON(t, created, &conversation)

	announcement := readEvent(t, bobSocket, realtime.EventConversationCreate)
	require.Equal(t, conversation.Data.ID, announcement["id"])

	detail := alice.do(t, "GET", "/conversations/"+conversation.Data.ID, nil)
	var view struct {
		Data dto.ConversationResponse `json:"data"`
	}
	decodeJSON(t, detail, &view)

	posted := alice.do(t, "POST", "/channels/"+view.Data.ChannelID+"/messages", map[string]any{
		"payload": map[string]string{"content": "hello bob"},
	})
	require.Equal(t, fiber.StatusCreated, posted.StatusCode)

	delivery := readEvent(t, bobSocket, realtime.EventNewMessage)
	require.Equal(t, view.Data.ChannelID, delivery["channel_id"])
	message, ok := delivery["message"].(map[string]any)
	require.True(t, ok)
	payload, ok := message["payload"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "hello bob", payload["content"])

	listing := bob.do(t, "GET", "/channels/"+view.Data.ChannelID+"/messages", nil)
	require.Equal(t, fiber.StatusOK, listing.StatusCode)
	var page struct {
		Data []dto.MessageResponse `json:"data"`
	}
	decodeJSON(t, listing, &page)
	require.Len(t, page.Data, 1)
	require.Equal(t, alice.ID, page.Data[0].AuthorID)
}

func TestVoiceCallRingsLiveConversation(t *testing.T) {
	app := setupChatApp(t)
	baseURL := startServer(t, app)

	alice := registerClient(t, baseURL, "alice", "alice@example.com")
	bob := registerClient(t, baseURL, "bob", "bob@example.com")

	resp := alice.do(t, "PUT", "/users/me/relationships/"+bob.ID, map[string]string{"type": "OUTGOING"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp = bob.do(t, "PUT", "/users/me/relationships/"+alice.ID, map[string]string{"type": "OUTGOING"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	created := alice.do(t, "POST", "/conversations", map[string]any{"type": "DM", "recipient": bob.ID})
	require.Equal(t, fiber.StatusCreated, created.StatusCode)
	var conversation struct {
		Data dto.ConversationCreatedResponse `json:"data"`
	}
	decodeJSON(t, created, &conversation)

	detail := alice.do(t, "GET", "/conversations/"+conversation.Data.ID, nil)
	var view struct {
		Data dto.ConversationResponse `json:"data"`
	}
	decodeJSON(t, detail, &view)

	bobSocket := dialGateway(t, baseURL, bob.Token)

	joined := alice.do(t, "POST", "/channels/"+view.Data.VoiceChannelID+"/join", nil)
	require.Equal(t, fiber.StatusOK, joined.StatusCode)
	var grant struct {
		Data dto.VoiceJoinResponse `json:"data"`
	}
	decodeJSON(t, joined, &grant)
	require.Equal(t, "wss://voice-1.test", grant.Data.Socket)

	ring := readEvent(t, bobSocket, realtime.EventIncomingCall)
	require.Equal(t, conversation.Data.ID, ring["id"])
	require.Equal(t, view.Data.VoiceChannelID, ring["channel_id"])
	require.Equal(t, alice.ID, ring["user_id"])
}

func TestGatewayRejectsInvalidToken(t *testing.T) {
	app := setupChatApp(t)
	baseURL := startServer(t, app)

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/gateway?token=not-a-token"
	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frame struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "error", frame.Event)
	require.Equal(t, "InvalidToken", frame.Data["error"])
}
