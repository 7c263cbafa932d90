package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/octave-im/octave-api/internal/utils"
)

// RateLimit builds a per-route limiter. Authenticated requests count against
// the user id so one abusive account cannot exhaust a shared NAT's budget;
// the auth endpoints, which run before any token check, fall back to the
// client IP. Exhausted budgets answer with the standard error envelope.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			subject := fmt.Sprintf("%v", c.Locals("user_id"))
			if subject == "" || subject == "<nil>" {
				subject = c.IP()
			}
			return fmt.Sprintf("octave:%s:%s", identifier, subject)
		},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.SendError(c, fiber.StatusTooManyRequests, "RateLimited")
		},
	})
}
