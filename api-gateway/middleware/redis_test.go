package middleware

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type docsPayload struct {
	Paths []string `json:"paths"`
}

func docsHandler(calls *atomic.Int32) fiber.Handler {
	paths := make([]string, 64)
	for i := range paths {
		paths[i] = "/api/books/{id}/counts"
	}
	return func(c *fiber.Ctx) error {
		calls.Add(1)
		return c.JSON(docsPayload{Paths: paths})
	}
}

func decodeBody(t *testing.T, resp *http.Response) docsPayload {
	t.Helper()
	var r io.Reader = resp.Body
	if resp.Header.Get(fiber.HeaderContentEncoding) == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		require.NoError(t, err)
		defer gz.Close()
		r = gz
	}
	var out docsPayload
	require.NoError(t, json.NewDecoder(r).Decode(&out))
	return out
}

func TestCacheReplaysCompressedClientsCorrectly(t *testing.T) {
	_, client := newRedis(t)
	var calls atomic.Int32

	app := fiber.New()
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(CacheMiddleware(client, CacheConfig{DefaultTTL: time.Minute, Prefixes: []string{"/swagger"}}))
	app.Get("/swagger/doc.json", docsHandler(&calls))

	var headers []string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
		req.Header.Set(fiber.HeaderAcceptEncoding, "gzip")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, decodeBody(t, resp).Paths, 64)
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "application/json")
		headers = append(headers, resp.Header.Get("X-Cache"))
	}

	assert.Equal(t, []string{"MISS", "HIT"}, headers)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheSkipsEncodedBodies(t *testing.T) {
	mr, client := newRedis(t)
	var calls atomic.Int32

	app := fiber.New()
	app.Use(CacheMiddleware(client, CacheConfig{DefaultTTL: time.Minute, Prefixes: []string{"/swagger"}}))
	app.Get("/swagger/doc.json", func(c *fiber.Ctx) error {
		calls.Add(1)
		c.Set(fiber.HeaderContentEncoding, "gzip")
		return c.Send([]byte{0x1f, 0x8b, 0x08})
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil), -1)
		require.NoError(t, err)
		assert.Empty(t, resp.Header.Get("X-Cache"))
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Empty(t, mr.Keys())
}

func TestCacheLeavesInventoryDataUncached(t *testing.T) {
	mr, client := newRedis(t)
	var calls atomic.Int32

	app := fiber.New()
	app.Use(CacheMiddleware(client, DefaultCacheConfig(time.Minute)))
	app.Get("/api/transactions", docsHandler(&calls))
	app.Get("/api/books", docsHandler(&calls))

	for _, path := range []string{"/api/transactions", "/api/transactions", "/api/books", "/api/books"} {
		req := httptest.NewRequest(http.MethodGet, path+"?programId=7", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer token")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Empty(t, resp.Header.Get("X-Cache"), path)
	}
	assert.Equal(t, int32(4), calls.Load(), "every read reaches the inventory service")
	assert.Empty(t, mr.Keys())
}

func TestCacheDroppedAfterWrite(t *testing.T) {
	_, client := newRedis(t)
	var calls atomic.Int32

	app := fiber.New()
	app.Use(CacheMiddleware(client, CacheConfig{DefaultTTL: time.Minute, Prefixes: []string{"/docs"}}))
	app.Get("/docs/notes", docsHandler(&calls))
	app.Post("/docs/notes", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })

	get := func() string {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/docs/notes", nil), -1)
		require.NoError(t, err)
		return resp.Header.Get("X-Cache")
	}

	assert.Equal(t, "MISS", get())
	assert.Equal(t, "HIT", get())

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/docs/notes", strings.NewReader("{}")), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, "MISS", get())
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimiterBudgets(t *testing.T) {
	_, client := newRedis(t)
	rl := NewRateLimiter(client, RateLimitConfig{Requests: 3, Writes: 1, Window: time.Minute})
	rl.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC) }

	app := fiber.New()
	app.Use(rl.Middleware())
	app.All("/api/books", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	do := func(method string) *http.Response {
		resp, err := app.Test(httptest.NewRequest(method, "/api/books", nil), -1)
		require.NoError(t, err)
		return resp
	}

	assert.Equal(t, http.StatusOK, do(http.MethodPost).StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, do(http.MethodPost).StatusCode, "write budget spent")

	resp := do(http.MethodGet)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "3", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp = do(http.MethodGet)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
}

func TestRateLimiterFailsOpen(t *testing.T) {
	mr, client := newRedis(t)
	rl := NewRateLimiter(client, RateLimitConfig{Requests: 1, Window: time.Minute})
	mr.Close()

	app := fiber.New()
	app.Use(rl.Middleware())
	app.Get("/api/books", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/books", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}
