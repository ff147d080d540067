package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tair/colporter/pkg/auth"
	"github.com/tair/colporter/pkg/logger"
)

// StructuredLoggingMiddleware writes one access line per request. Count
// submissions are logged at info even when they succeed so the audit trail
// shows who reconciled what.
func StructuredLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		ctx := c.UserContext()
		status := c.Response().StatusCode()
		event := logger.Debug(ctx)
		switch {
		case err != nil || status >= fiber.StatusInternalServerError:
			event = logger.Error(ctx).Err(err)
		case status >= fiber.StatusBadRequest:
			event = logger.Warn(ctx)
		case c.Method() == fiber.MethodPost:
			event = logger.Info(ctx)
		}

		if username, ok := c.Locals("username").(string); ok {
			event = event.Str("username", username)
		}
		if role, ok := c.Locals("role").(auth.Role); ok {
			event = event.Str("role", string(role))
		}
		event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("cache", c.GetRespHeader("X-Cache")).
			Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Msg("Gateway request")
		return err
	}
}
