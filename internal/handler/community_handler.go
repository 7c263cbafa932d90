package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/service"
	"github.com/octave-im/octave-api/internal/utils"
)

// CommunityHandler exposes community endpoints.
type CommunityHandler struct {
	communities service.CommunityService
	logger      zerolog.Logger
}

// NewCommunityHandler constructs a community handler.
func NewCommunityHandler(communities service.CommunityService, logger zerolog.Logger) *CommunityHandler {
	return &CommunityHandler{
		communities: communities,
		logger:      logger.With().Str("component", "community_handler").Logger(),
	}
}

// Register wires community routes.
func (h *CommunityHandler) Register(router fiber.Router) {
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Get("/:id/channels", h.channels)
	router.Post("/:id/channels", h.createChannel)
	router.Get("/:id/groups", h.groups)
	router.Post("/:id/groups", h.createGroup)
}

func (h *CommunityHandler) create(c *fiber.Ctx) error {
	var payload dto.CreateCommunityRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	response, err := h.communities.Create(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "community created", response)
}

func (h *CommunityHandler) get(c *fiber.Ctx) error {
	response, err := h.communities.Get(c.Context(), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "community retrieved", response)
}

func (h *CommunityHandler) channels(c *fiber.Ctx) error {
	ids, err := h.communities.ChannelIDs(c.Context(), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "channels retrieved", ids)
}

func (h *CommunityHandler) createChannel(c *fiber.Ctx) error {
	var payload dto.CreateChannelRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	response, err := h.communities.CreateChannel(c.Context(), c.Params("id"), userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "channel created", response)
}

func (h *CommunityHandler) groups(c *fiber.Ctx) error {
	ids, err := h.communities.GroupIDs(c.Context(), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "groups retrieved", ids)
}

func (h *CommunityHandler) createGroup(c *fiber.Ctx) error {
	var payload dto.CreateGroupRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	response, err := h.communities.CreateGroup(c.Context(), c.Params("id"), userIDFromContext(c), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "group created", response)
}
