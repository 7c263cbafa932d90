package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/octave-im/octave-api/internal/config"
	"github.com/octave-im/octave-api/internal/handler"
	"github.com/octave-im/octave-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	ConversationHandler *handler.ConversationHandler
	ChannelHandler      *handler.ChannelHandler
	CommunityHandler    *handler.CommunityHandler
	GroupHandler        *handler.GroupHandler
	VoiceHandler        *handler.VoiceHandler
	GatewayHandler      *handler.GatewayHandler
	AuthMiddleware      fiber.Handler
	GatewayMiddleware   fiber.Handler
	RateLimiter         fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	authMiddleware := deps.AuthMiddleware
	if authMiddleware == nil {
		authMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.AuthHandler != nil {
		auth := app.Group("/auth")
		if deps.RateLimiter != nil {
			auth.Use(deps.RateLimiter)
		}
		deps.AuthHandler.Register(auth)
	}

	if deps.UserHandler != nil {
		deps.UserHandler.Register(app.Group("/users", authMiddleware))
	}
	if deps.ConversationHandler != nil {
		deps.ConversationHandler.Register(app.Group("/conversations", authMiddleware))
	}
	if deps.ChannelHandler != nil {
		deps.ChannelHandler.Register(app.Group("/channels", authMiddleware))
		deps.ChannelHandler.RegisterMessages(app.Group("/messages", authMiddleware))
	}
	if deps.CommunityHandler != nil {
		deps.CommunityHandler.Register(app.Group("/communities", authMiddleware))
	}
	if deps.GroupHandler != nil {
		deps.GroupHandler.Register(app.Group("/groups", authMiddleware))
	}

	// Media servers authenticate with the shared gateway secret.
	if deps.VoiceHandler != nil && deps.GatewayMiddleware != nil {
		deps.VoiceHandler.Register(app.Group("/voice", deps.GatewayMiddleware))
	}

	// Websocket auth happens inside the handler via the token query param.
	if deps.GatewayHandler != nil {
		deps.GatewayHandler.Register(app.Group("/gateway"))
	}
}
