package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tair/colporter/pkg/auth"
	"github.com/tair/colporter/pkg/logger"
)

// RateLimitConfig sets per-window budgets. Writes (count submissions) draw
// from both budgets.
type RateLimitConfig struct {
	Requests int
	Writes   int
	Window   time.Duration
}

// RateLimiter counts requests per caller in fixed Redis windows
type RateLimiter struct {
	redis *redis.Client
	cfg   RateLimitConfig
	now   func() time.Time
}

// NewRateLimiter creates a limiter backed by client
func NewRateLimiter(client *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &RateLimiter{redis: client, cfg: cfg, now: time.Now}
}

// Middleware enforces the budgets. It runs before authentication, so the
// caller is identified by the unverified token subject when one is present
// and by IP otherwise. Redis failures let the request through.
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		caller := callerIdentity(c)
		window := rl.now().Truncate(rl.cfg.Window)
		reset := window.Add(rl.cfg.Window)

		used, err := rl.hit(ctx, bucketKey("all", caller, window))
		if err != nil {
			logger.Error(ctx).Err(err).Str("caller", caller).Msg("Rate limiter unavailable")
			return c.Next()
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.Requests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(max(rl.cfg.Requests-used, 0)))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if used > rl.cfg.Requests {
			return rl.reject(c, caller, "requests", reset)
		}

		if c.Method() == fiber.MethodPost && rl.cfg.Writes > 0 {
			writes, err := rl.hit(ctx, bucketKey("write", caller, window))
			if err != nil {
				logger.Error(ctx).Err(err).Str("caller", caller).Msg("Rate limiter unavailable")
				return c.Next()
			}
			if writes > rl.cfg.Writes {
				return rl.reject(c, caller, "writes", reset)
			}
		}
		return c.Next()
	}
}

func (rl *RateLimiter) hit(ctx context.Context, key string) (int, error) {
	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.cfg.Window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(incr.Val()), nil
}

func (rl *RateLimiter) reject(c *fiber.Ctx, caller, budget string, reset time.Time) error {
	logger.Warn(c.UserContext()).
		Str("caller", caller).
		Str("budget", budget).
		Msg("Rate limit exceeded")

	c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(time.Until(reset).Seconds())+1))
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"success": false,
		"error":   "Rate limit exceeded",
	})
}

func callerIdentity(c *fiber.Ctx) string {
	if token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization)); err == nil {
		if claims, err := auth.ParseUnverified(token); err == nil && claims.UserID != 0 {
			return "user:" + strconv.FormatUint(uint64(claims.UserID), 10)
		}
	}
	return "ip:" + c.IP()
}

func bucketKey(budget, caller string, window time.Time) string {
	return "ratelimit:" + budget + ":" + caller + ":" + strconv.FormatInt(window.Unix(), 10)
}
