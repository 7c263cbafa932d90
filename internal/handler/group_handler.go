package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/service"
	"github.com/octave-im/octave-api/internal/utils"
)

// GroupHandler exposes permission group endpoints.
type GroupHandler struct {
	groups service.GroupService
	logger zerolog.Logger
}

// NewGroupHandler constructs a group handler.
func NewGroupHandler(groups service.GroupService, logger zerolog.Logger) *GroupHandler {
	return &GroupHandler{
		groups: groups,
		logger: logger.With().Str("component", "group_handler").Logger(),
	}
}

// Register wires group routes.
func (h *GroupHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
	router.Delete("/:id", h.remove)
	router.Put("/:id/members/:userId", h.assignMember)
}

func (h *GroupHandler) get(c *fiber.Ctx) error {
	response, err := h.groups.Get(c.Context(), c.Params("id"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "group retrieved", response)
}

func (h *GroupHandler) assignMember(c *fiber.Ctx) error {
	err := h.groups.AssignMember(c.Context(), c.Params("id"), userIDFromContext(c), c.Params("userId"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "group member assigned", nil)
}

func (h *GroupHandler) remove(c *fiber.Ctx) error {
	if err := h.groups.Delete(c.Context(), c.Params("id"), userIDFromContext(c)); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "group deleted", nil)
}
