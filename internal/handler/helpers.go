package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/apperr"
	"github.com/octave-im/octave-api/internal/middleware"
	"github.com/octave-im/octave-api/internal/utils"
)

func userIDFromContext(c *fiber.Ctx) string {
	if v, ok := c.Locals("user_id").(string); ok {
		return v
	}
	return ""
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// sendServiceError translates a service failure to the wire. Validation
// failures become coded 400s; coded domain errors keep their code and
// status; everything else is logged and collapsed to a 500.
func sendServiceError(c *fiber.Ctx, logger *zerolog.Logger, err error) error {
	if isValidationError(err) {
		return utils.SendError(c, fiber.StatusBadRequest, apperr.ErrInvalidPayload.Code)
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return utils.SendAppError(c, err)
	}
	logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return utils.SendAppError(c, err)
}
