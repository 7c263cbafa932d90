package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/dto"
	"github.com/octave-im/octave-api/internal/service"
	"github.com/octave-im/octave-api/internal/utils"
)

// AuthHandler exposes registration and the challenge login flow. These are
// the only unauthenticated routes besides health and metrics.
type AuthHandler struct {
	users  service.UserService
	logger zerolog.Logger
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(users service.UserService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		logger: logger.With().Str("component", "auth_handler").Logger(),
	}
}

// Register wires auth routes.
func (h *AuthHandler) Register(router fiber.Router) {
	router.Post("/register", h.register)
	router.Post("/challenge", h.challenge)
	router.Post("/login", h.login)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterUserRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	response, err := h.users.Register(c.Context(), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "account created", response)
}

func (h *AuthHandler) challenge(c *fiber.Ctx) error {
	var payload dto.ChallengeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	response, err := h.users.Challenge(c.Context(), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "challenge issued", response)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "InvalidPayload")
	}

	response, err := h.users.Login(c.Context(), payload)
	if err != nil {
		return sendServiceError(c, requestLogger(h.logger, c), err)
	}
	return utils.SendSuccess(c, "logged in", response)
}
