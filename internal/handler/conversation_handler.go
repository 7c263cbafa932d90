package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/service"
	"github.com/octave-im/octave-api/internal/utils"
)

// ConversationHandler exposes conversation and member management endpoints.
type ConversationHandler struct {
	conversations service.ConversationService
	logger        zerolog.Logger
}

// NewConversationHandler constructs a conversation handler.
func NewConversationHandler(conversations service.ConversationService, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		logger:        logger.With().Str("component", "conversation_handler").Logger(),
	}
}

// Register wires conversation routes.
func (h *ConversationHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.rename)
	router.Get("/:id/members", h.members)
	router.Delete("/:id/members/me", h.leave)
	router.Put("/:id/members/:userId", h.putMember)
	router.Delete("/:id/members/:userId", h.removeMember)
}

func (h *ConversationHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateConversationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	response, err := h.conversations.Create(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "conversation created", response)
}

func (h *ConversationHandler) get(c *fiber.Ctx) error {
	response, err := h.conversations.Get(c.Context(), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "conversation retrieved", response)
}

func (h *ConversationHandler) rename(c *fiber.Ctx) error {
	var payload dto.PatchConversationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	if err := h.conversations.Rename(c.Context(), c.Params("id"), userIDFromContext(c), payload); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "conversation updated", nil)
}

func (h *ConversationHandler) members(c *fiber.Ctx) error {
	response, err := h.conversations.Members(c.Context(), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "members retrieved", response)
}

func (h *ConversationHandler) putMember(c *fiber.Ctx) error {
	var payload dto.PutConversationMemberRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	err := h.conversations.PutMember(c.Context(), c.Params("id"), userIDFromContext(c), c.Params("userId"), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "member saved", nil)
}

func (h *ConversationHandler) removeMember(c *fiber.Ctx) error {
	err := h.conversations.RemoveMember(c.Context(), c.Params("id"), userIDFromContext(c), c.Params("userId"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "member removed", nil)
}

func (h *ConversationHandler) leave(c *fiber.Ctx) error {
	if err := h.conversations.Leave(c.Context(), c.Params("id"), userIDFromContext(c)); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "conversation left", nil)
}
