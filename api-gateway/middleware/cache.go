package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tair/colporter/pkg/logger"
)

const cachePrefix = "cache:"

// CacheConfig holds cache configuration
type CacheConfig struct {
	DefaultTTL time.Duration
	// Prefixes are the only paths whose GET responses are cached. Entries
	// below a prefix are dropped after a successful write under it.
	Prefixes []string
}

// DefaultCacheConfig caches the API documentation only. Books and
// transactions change through Kafka events the gateway never sees.
func DefaultCacheConfig(ttl time.Duration) CacheConfig {
	return CacheConfig{
		DefaultTTL: ttl,
		Prefixes:   []string{"/swagger"},
	}
}

// CacheMiddleware caches successful uncompressed GET responses in Redis and
// drops the affected entries after a successful write. Register it after
// compress so it sees plain bodies.
func CacheMiddleware(redisClient *redis.Client, config CacheConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if redisClient == nil || !underPrefix(c.Path(), config.Prefixes) {
			return c.Next()
		}
		ctx := c.UserContext()

		if c.Method() != fiber.MethodGet {
			err := c.Next()
			if status := c.Response().StatusCode(); status < 300 {
				for _, pattern := range invalidationPatterns(c.Path(), config.Prefixes) {
					if err := InvalidateCache(ctx, redisClient, pattern); err != nil {
						logger.Warn(ctx).Err(err).Str("pattern", pattern).Msg("Failed to invalidate cache")
					}
				}
			}
			return err
		}

		cacheKey := generateCacheKey(c.Path(), string(c.Request().URI().QueryString()), c.Get("Authorization"))

		cached, err := redisClient.HGetAll(ctx, cacheKey).Result()
		if err == nil && len(cached["body"]) > 0 {
			logger.Debug(ctx).Str("path", c.Path()).Str("cache_key", cacheKey).Msg("Cache hit")
			c.Set("X-Cache", "HIT")
			c.Set(fiber.HeaderContentType, cached["type"])
			return c.SendString(cached["body"])
		}

		err = c.Next()

		resp := c.Response()
		if resp.StatusCode() != fiber.StatusOK || len(resp.Header.Peek(fiber.HeaderContentEncoding)) > 0 {
			return err
		}
		pipe := redisClient.TxPipeline()
		pipe.HSet(ctx, cacheKey, "type", string(resp.Header.ContentType()), "body", string(resp.Body()))
		pipe.Expire(ctx, cacheKey, config.DefaultTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn(ctx).Err(err).Str("cache_key", cacheKey).Msg("Failed to cache response")
		}
		c.Set("X-Cache", "MISS")
		return err
	}
}

func underPrefix(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// generateCacheKey keeps the path readable so entries can be dropped by
// prefix. Query and token are hashed so each operator has their own entry.
func generateCacheKey(path, query, authorization string) string {
	hash := sha256.Sum256([]byte(query + "|" + authorization))
	return fmt.Sprintf("%s%s:%s", cachePrefix, path, hex.EncodeToString(hash[:12]))
}

// invalidationPatterns returns the SCAN patterns to drop after a write to path
func invalidationPatterns(path string, prefixes []string) []string {
	var patterns []string
	for _, prefix := range prefixes {
		if underPrefix(path, []string{prefix}) {
			patterns = append(patterns, cachePrefix+prefix+"*")
		}
	}
	return patterns
}

// InvalidateCache deletes every key matching pattern
func InvalidateCache(ctx context.Context, redisClient *redis.Client, pattern string) error {
	iter := redisClient.Scan(ctx, 0, pattern, 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		if err := redisClient.Del(ctx, keys...).Err(); err != nil {
			return err
		}
		logger.Info(ctx).
			Int("count", len(keys)).
			Str("pattern", pattern).
			Msg("Cache invalidated")
	}
	return nil
}
