package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/service"
	"github.com/octave-im/octave-api/internal/utils"
)

// VoiceHandler receives media server lifecycle callbacks. All routes sit
// behind the shared gateway secret, never user tokens.
type VoiceHandler struct {
	voice  service.VoiceService
	logger zerolog.Logger
}

// NewVoiceHandler constructs a voice callback handler.
func NewVoiceHandler(voice service.VoiceService, logger zerolog.Logger) *VoiceHandler {
	return &VoiceHandler{
		voice:  voice,
		logger: logger.With().Str("component", "voice_handler").Logger(),
	}
}

// Register wires voice callback routes.
func (h *VoiceHandler) Register(router fiber.Router) {
	router.Post("/started/:id", h.started)
	router.Put("/:id/users/:userId", h.join)
	router.Delete("/:id/users/:userId", h.leave)
}

func (h *VoiceHandler) started(c *fiber.Ctx) error {
	if err := h.voice.ServerStarted(c.Context(), c.Params("id")); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "server registered", nil)
}

func (h *VoiceHandler) join(c *fiber.Ctx) error {
	if err := h.voice.UserJoined(c.Context(), c.Params("id"), c.Params("userId")); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "user joined", nil)
}

func (h *VoiceHandler) leave(c *fiber.Ctx) error {
	if err := h.voice.UserLeft(c.Context(), c.Params("id"), c.Params("userId")); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "user left", nil)
}
