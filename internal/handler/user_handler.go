package handler

import (
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/service"
	"github.com/octave-im/octave-api/internal/utils"
)

// UserHandler exposes profile, relationship and lookup endpoints.
type UserHandler struct {
	users  service.UserService
	logger zerolog.Logger
}

// NewUserHandler constructs a user handler.
func NewUserHandler(users service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register wires user routes. Order matters: the literal segments must come
// before the ":id" wildcard.
func (h *UserHandler) Register(router fiber.Router) {
	router.Get("/me", h.me)
	router.Patch("/me", h.update)
	router.Post("/me/avatar", h.uploadAvatar)
	router.Get("/me/relationships", h.relationships)
	router.Put("/me/relationships/:id", h.putRelationship)
	router.Delete("/me/relationships/:id", h.deleteRelationship)
	router.Get("/me/conversations", h.conversations)
	router.Get("/me/communities", h.communities)
	router.Get("/find", h.find)
	router.Get("/:id", h.get)
}

func (h *UserHandler) me(c *fiber.Ctx) error {
	response, err := h.users.Me(c.Context(), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "profile retrieved", response)
}

func (h *UserHandler) update(c *fiber.Ctx) error {
	var payload dto.PatchUserRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	if err := h.users.Update(c.Context(), userIDFromContext(c), payload); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "profile updated", nil)
}

func (h *UserHandler) uploadAvatar(c *fiber.Ctx) error {
	file, err := c.FormFile("avatar")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}
	opened, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}
	defer opened.Close()

	data, err := io.ReadAll(opened)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	response, err := h.users.UpdateAvatar(c.Context(), userIDFromContext(c), data)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "avatar updated", response)
}

func (h *UserHandler) relationships(c *fiber.Ctx) error {
	response, err := h.users.Relationships(c.Context(), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "relationships retrieved", response)
}

func (h *UserHandler) putRelationship(c *fiber.Ctx) error {
	var payload dto.PutRelationshipRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	if err := h.users.PutRelationship(c.Context(), userIDFromContext(c), c.Params("id"), payload); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "relationship saved", nil)
}

func (h *UserHandler) deleteRelationship(c *fiber.Ctx) error {
	if err := h.users.DeleteRelationship(c.Context(), userIDFromContext(c), c.Params("id")); err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "relationship removed", nil)
}

func (h *UserHandler) conversations(c *fiber.Ctx) error {
	ids, err := h.users.ConversationIDs(c.Context(), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "conversations retrieved", ids)
}

func (h *UserHandler) communities(c *fiber.Ctx) error {
	ids, err := h.users.CommunityIDs(c.Context(), userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "communities retrieved", ids)
}

func (h *UserHandler) find(c *fiber.Ctx) error {
	discriminator, err := strconv.Atoi(strings.TrimSpace(c.Query("discriminator")))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	response, err := h.users.Find(c.Context(), dto.FindUserQuery{
		Username:      strings.TrimSpace(c.Query("username")),
		Discriminator: discriminator,
	})
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "user found", response)
}

func (h *UserHandler) get(c *fiber.Ctx) error {
	response, err := h.users.Get(c.Context(), c.Params("id"))
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "user retrieved", response)
}
