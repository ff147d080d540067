package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"github.com/tair/colporter/api-gateway/config"
	"github.com/tair/colporter/api-gateway/health"
	"github.com/tair/colporter/api-gateway/middleware"
	"github.com/tair/colporter/api-gateway/proxy"
	"github.com/tair/colporter/api-gateway/routes"
	"github.com/tair/colporter/pkg/auth"
	"github.com/tair/colporter/pkg/logger"
	"github.com/tair/colporter/pkg/tracing"
)

func main() {
	cfg := config.LoadConfig()

	// Initialize logger
	logger.Init(logger.Options{
		Service:     getEnv("OTEL_SERVICE_NAME", "api-gateway"),
		Development: cfg.Environment == "development",
		Level:       cfg.LogLevel,
	})

	logger.Logger.Info().
		Str("environment", cfg.Environment).
		Str("port", cfg.Port).
		Msg("Starting API Gateway")

	if cfg.TracingEnabled {
		tp, err := tracing.Init(context.Background(), tracing.Options{
			ServiceName:    "api-gateway",
			Environment:    cfg.Environment,
			JaegerEndpoint: cfg.JaegerEndpoint,
		})
		if err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
			}
		}()
	}

	redisClient := connectRedis(cfg)
	healthChecker := health.NewHealthChecker(cfg)
	defer healthChecker.Close()

	app := newApp(cfg, redisClient, routes.Dependencies{
		Proxy:    proxy.NewReverseProxy(cfg),
		Health:   healthChecker,
		Tokens:   auth.NewManager(cfg.JWTSecret, 0),
		Breakers: middleware.NewCircuitBreakerManager(5, 30*time.Second),
	})

	go func() {
		for name, svc := range cfg.Services {
			logger.Logger.Info().
				Str("service", name).
				Strs("instances", svc.Instances).
				Str("grpc", svc.GRPCAddr).
				Msg("Routing to service")
		}
		if err := app.Listen(fmt.Sprintf(":%s", cfg.Port)); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down API Gateway...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	logger.Logger.Info().Msg("API Gateway stopped")
}

// connectRedis returns nil when Redis is unreachable, which disables
// caching and rate limiting
func connectRedis(cfg *config.GatewayConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Logger.Warn().
			Err(err).
			Str("redis_addr", cfg.RedisAddr).
			Msg("Failed to connect to Redis - caching and rate limiting disabled")
		client.Close()
		return nil
	}
	logger.Logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("Connected to Redis")
	return client
}

func newApp(cfg *config.GatewayConfig, redisClient *redis.Client, deps routes.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Colporter API Gateway",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  30 * time.Second,
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.StructuredLoggingMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.AllowOrigins,
		AllowMethods:  "GET,POST,OPTIONS,HEAD",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-Id, traceparent, tracestate",
		ExposeHeaders: "X-Request-Id, X-Trace-Id, X-Cache, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After",
		MaxAge:        86400,
	}))

	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	if redisClient != nil {
		limiter := middleware.NewRateLimiter(redisClient, middleware.RateLimitConfig{
			Requests: cfg.RateLimit,
			Writes:   cfg.WriteRateLimit,
			Window:   time.Minute,
		})
		app.Use(limiter.Middleware())
		app.Use(middleware.CacheMiddleware(redisClient, middleware.DefaultCacheConfig(cfg.CacheTTL)))
		logger.Logger.Info().
			Int("rate_limit_per_minute", cfg.RateLimit).
			Int("write_limit_per_minute", cfg.WriteRateLimit).
			Dur("cache_ttl", cfg.CacheTTL).
			Msg("Rate limiting and response caching enabled")
	}

	routes.SetupRoutes(app, deps)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"success":   false,
		"error":     err.Error(),
		"path":      c.Path(),
		"requestId": c.GetRespHeader(fiber.HeaderXRequestID),
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
