package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type correlationKeyType struct{}

var correlationKey correlationKeyType

const correlationLocal = "correlation_id"

// CorrelationID tags every request with an identifier so a REST call, the
// gateway session it ends up fanning out to, and the broker publish in
// between can be stitched together in the logs. Clients may supply their own
// via X-Correlation-ID; gateway upgrades keep the id for the socket's
// lifetime.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get("X-Correlation-ID"))
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(correlationLocal, id)
		c.Set("X-Correlation-ID", id)
		c.SetUserContext(context.WithValue(c.UserContext(), correlationKey, id))

		return c.Next()
	}
}

// GetCorrelationID returns the identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(correlationLocal).(string); ok {
		return id
	}
	if id, ok := c.UserContext().Value(correlationKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithCorrelation carries the identifier into detached contexts, such
// as synchronizer publishes that outlive the originating request.
func ContextWithCorrelation(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	correlationID = strings.TrimSpace(correlationID)
	if correlationID == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey, correlationID)
}
