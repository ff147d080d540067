package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tair/colporter/internal/inventory/domain"
	"github.com/tair/colporter/pkg/logger"
)

// releaseScript deletes the lock only if it is still held by the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker is a RowLocker backed by Redis SET NX with a TTL
type RedisLocker struct {
	client   *redis.Client
	ttl      time.Duration
	attempts int
	backoff  time.Duration
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client:   client,
		ttl:      5 * time.Second,
		attempts: 3,
		backoff:  100 * time.Millisecond,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	key = "lock:" + key
	token := uuid.New().String()

	for i := 0; i < l.attempts; i++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			logger.Logger.Error().Err(err).Str("key", key).Msg("Failed to acquire lock")
		}
		if ok {
			return func() {
				// the caller's context may already be cancelled
				err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
				if err != nil {
					logger.Logger.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.backoff):
		}
	}

	return nil, fmt.Errorf("%w: %s is being updated, try again", domain.ErrConflict, key)
}

// LocalLocker is an in-process RowLocker used when Redis is not configured
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	for {
		l.mu.Lock()
		held, busy := l.locks[key]
		if !busy {
			done := make(chan struct{})
			l.locks[key] = done
			l.mu.Unlock()
			return func() {
				l.mu.Lock()
				delete(l.locks, key)
				l.mu.Unlock()
				close(done)
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-held:
		}
	}
}
