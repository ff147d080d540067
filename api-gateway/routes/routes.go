package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tair/colporter/api-gateway/health"
	"github.com/tair/colporter/api-gateway/middleware"
	"github.com/tair/colporter/api-gateway/proxy"
	"github.com/tair/colporter/pkg/auth"
)

// RouteDefinition defines a route mapping
type RouteDefinition struct {
	Prefix      string `json:"prefix"`
	ServiceName string `json:"service"`
	Description string `json:"description"`
	RequireAuth bool   `json:"require_auth"`
	// WriteRole requires an admin or supervisor for non-read methods
	WriteRole bool `json:"write_role"`
}

// Routes holds all route definitions
var Routes = []RouteDefinition{
	{
		Prefix:      "/api/books",
		ServiceName: "inventory",
		Description: "Books and inventory counts",
		RequireAuth: true,
		WriteRole:   true,
	},
	{
		Prefix:      "/api/transactions",
		ServiceName: "inventory",
		Description: "Sales transactions (read only)",
		RequireAuth: true,
	},
	{
		Prefix:      "/swagger",
		ServiceName: "inventory",
		Description: "Inventory API documentation",
	},
}

// Dependencies are the shared components routes are built from
type Dependencies struct {
	Proxy    *proxy.ReverseProxy
	Health   *health.HealthChecker
	Tokens   *auth.Manager
	Breakers *middleware.CircuitBreakerManager
}

// SetupRoutes configures all routes in the gateway
func SetupRoutes(app *fiber.App, deps Dependencies) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(deps.Health.QuickCheck())
	})

	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive"})
	})

	// Readiness probe (checks downstream services)
	app.Get("/health/ready", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		status := deps.Health.CheckAllServices(ctx)
		code := fiber.StatusOK
		if status.Status == health.StatusUnhealthy {
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(status)
	})

	app.Get("/health/services", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
		defer cancel()
		return c.JSON(fiber.Map{
			"health":   deps.Health.CheckAllServices(ctx),
			"breakers": deps.Breakers.AllStats(),
		})
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Colporter API Gateway",
			"version": "1.0.0",
			"routes":  Routes,
		})
	})

	for _, route := range Routes {
		registerServiceRoutes(app, route, deps)
	}
}

// registerServiceRoutes registers all HTTP methods for a service prefix
func registerServiceRoutes(app *fiber.App, route RouteDefinition, deps Dependencies) {
	handlers := []fiber.Handler{}
	if route.RequireAuth {
		handlers = append(handlers, middleware.AuthMiddleware(deps.Tokens))
	}
	if route.WriteRole {
		handlers = append(handlers, middleware.ReconcilerMiddleware())
	}
	handlers = append(handlers,
		deps.Breakers.Middleware(route.ServiceName),
		func(c *fiber.Ctx) error {
			return deps.Proxy.ProxyRequest(c, route.ServiceName)
		},
	)

	app.All(route.Prefix, handlers...)
	app.All(route.Prefix+"/*", handlers...)
}
