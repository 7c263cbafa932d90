package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/octave-im/octave-api/internal/apperr"
	"github.com/octave-im/octave-api/internal/models"
	"github.com/octave-im/octave-api/internal/repository"
	"github.com/octave-im/octave-api/internal/token"
	"github.com/octave-im/octave-api/internal/utils"
)

const userLocalKey = "user"

// RequireUser validates the request's user token and loads the subject into
// the request locals. The raw token is accepted with or without a Bearer
// prefix.
func RequireUser(tokens *token.Manager, users repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := ExtractToken(c.Get("Authorization"))
		if raw == "" {
			return utils.SendAppError(c, apperr.ErrAuthorizationRequired)
		}

		claims, err := tokens.VerifyUser(raw)
		if err != nil {
			return utils.SendAppError(c, err)
		}

		user, err := users.GetByID(c.UserContext(), claims.Subject)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.SendAppError(c, apperr.ErrUserNotFound)
			}
			return utils.SendAppError(c, err)
		}

		c.Locals(userLocalKey, &user)
		c.Locals("user_id", user.ID)
		return c.Next()
	}
}

// RequireGateway guards the media-server callback routes with the shared
// gateway token.
func RequireGateway(gatewayToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := ExtractToken(c.Get("Authorization"))
		if raw == "" {
			return utils.SendAppError(c, apperr.ErrAuthorizationRequired)
		}
		if gatewayToken == "" || raw != gatewayToken {
			return utils.SendAppError(c, apperr.ErrInvalidToken)
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated user loaded by RequireUser.
func CurrentUser(c *fiber.Ctx) *models.User {
	if user, ok := c.Locals(userLocalKey).(*models.User); ok {
		return user
	}
	return nil
}

// ExtractToken normalizes an Authorization header value to the bare token.
func ExtractToken(header string) string {
	header = strings.TrimSpace(header)
	const bearer = "bearer "
	if len(header) > len(bearer) && strings.EqualFold(header[:len(bearer)], bearer) {
		return strings.TrimSpace(header[len(bearer):])
	}
	return header
}
