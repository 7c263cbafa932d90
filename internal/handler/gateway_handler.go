package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/apperr"
	"github.com/octave-im/octave-api/internal/middleware"
	"github.com/octave-im/octave-api/internal/realtime"
	"github.com/octave-im/octave-api/internal/token"
)

// GatewayHandler upgrades websocket connections for the realtime gateway.
// Auth rides on a ?token= query parameter since browsers cannot attach
// headers to websocket handshakes.
type GatewayHandler struct {
	gateway *realtime.Gateway
	tokens  *token.Manager
	logger  zerolog.Logger
}

// NewGatewayHandler constructs the gateway handler.
func NewGatewayHandler(gateway *realtime.Gateway, tokens *token.Manager, logger zerolog.Logger) *GatewayHandler {
	return &GatewayHandler{
		gateway: gateway,
		tokens:  tokens,
		logger:  logger.With().Str("component", "gateway_handler").Logger(),
	}
}

// Register wires the gateway route.
func (h *GatewayHandler) Register(router fiber.Router) {
	router.Use("", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
			c.Locals("request_ctx", ctx)
			c.Locals("correlation_id", middleware.GetCorrelationID(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("", websocket.New(h.handleConnection))
}

func (h *GatewayHandler) handleConnection(conn *websocket.Conn) {
	raw := conn.Query("token")
	if raw == "" {
		h.reject(conn, "AuthorizationRequired")
		return
	}
	claims, err := h.tokens.VerifyUser(raw)
	if err != nil {
		h.reject(conn, apperr.CodeOf(err))
		return
	}

	correlation, _ := conn.Locals("correlation_id").(string)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)

	h.gateway.ServeConnection(conn, realtime.ConnectionOptions{
		UserID:        claims.Subject,
		CorrelationID: correlation,
		Context:       baseCtx,
	})
}

func (h *GatewayHandler) reject(conn *websocket.Conn, code string) {
	_ = conn.WriteJSON(realtime.Event{Name: "error", Data: map[string]string{"error": code}})
	_ = conn.Close()
}
