package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/service"
	"github.com/octave-im/octave-api/internal/utils"
)

// ChannelHandler exposes channel, message timeline and voice join endpoints.
type ChannelHandler struct {
	channels service.ChannelService
	logger   zerolog.Logger
}

// NewChannelHandler constructs a channel handler.
func NewChannelHandler(channels service.ChannelService, logger zerolog.Logger) *ChannelHandler {
	return &ChannelHandler{
		channels: channels,
		logger:   logger.With().Str("component", "channel_handler").Logger(),
	}
}

// Register wires channel routes.
func (h *ChannelHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
	router.Patch("/:id", h.rename)
	router.Delete("/:id", h.remove)
	router.Get("/:id/messages", h.messages)
	router.Post("/:id/messages", h.postMessage)
	router.Post("/:id/ack", h.ack)
	router.Post("/:id/join", h.joinVoice)
}

// RegisterMessages wires the single-message lookup under its own prefix.
func (h *ChannelHandler) RegisterMessages(router fiber.Router) {
	router.Get("/:id", h.getMessage)
}

func (h *ChannelHandler) get(c *fiber.Ctx) error {
	response, err := h.channels.Get(c.Context(), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "channel retrieved", response)
}

func (h *ChannelHandler) rename(c *fiber.Ctx) error {
	var payload dto.PatchChannelRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	if err := h.channels.Rename(c.Context(), c.Params("id"), userIDFromContext(c), payload); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "channel updated", nil)
}

func (h *ChannelHandler) remove(c *fiber.Ctx) error {
	if err := h.channels.Delete(c.Context(), c.Params("id"), userIDFromContext(c)); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "channel deleted", nil)
}

func (h *ChannelHandler) getMessage(c *fiber.Ctx) error {
	response, err := h.channels.GetMessage(c.Context(), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "message retrieved", response)
}

func (h *ChannelHandler) messages(c *fiber.Ctx) error {
	before := strings.TrimSpace(c.Query("before"))
	response, err := h.channels.Messages(c.Context(), c.Params("id"), userIDFromContext(c), before)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "messages retrieved", response)
}

func (h *ChannelHandler) postMessage(c *fiber.Ctx) error {
	var payload dto.CreateMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	response, err := h.channels.PostMessage(c.Context(), c.Params("id"), userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message stored", response)
}

func (h *ChannelHandler) ack(c *fiber.Ctx) error {
	var payload dto.AckRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
		}
	}

	if err := h.channels.Ack(c.Context(), c.Params("id"), userIDFromContext(c), payload); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "acknowledged", nil)
}

func (h *ChannelHandler) joinVoice(c *fiber.Ctx) error {
	response, err := h.channels.JoinVoice(c.Context(), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "voice grant issued", response)
}
