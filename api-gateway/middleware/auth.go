package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/tair/colporter/pkg/auth"
	"github.com/tair/colporter/pkg/logger"
)

// AuthMiddleware validates bearer tokens and forwards the operator identity
func AuthMiddleware(tokens *auth.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.BearerToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Authorization header required",
			})
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			logger.Warn(c.UserContext()).Err(err).Str("path", c.Path()).Msg("Rejected token at gateway")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Invalid token",
			})
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("username", claims.Username)
		c.Locals("role", claims.Role)

		c.Request().Header.Set("X-User-ID", fmt.Sprintf("%d", claims.UserID))
		c.Request().Header.Set("X-Username", claims.Username)
		c.Request().Header.Set("X-User-Role", string(claims.Role))

		return c.Next()
	}
}

// ReconcilerMiddleware lets reads through and requires an admin or
// supervisor for every other method. Must run after AuthMiddleware.
func ReconcilerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		role, _ := c.Locals("role").(auth.Role)
		if !role.CanReconcile() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "Admin or supervisor role required",
			})
		}
		return c.Next()
	}
}
