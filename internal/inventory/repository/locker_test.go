package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/colporter/internal/inventory/domain"
)

func newTestRedisLocker(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLocker(client)
	l.backoff = time.Millisecond
	return mr, l
}

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	mr, l := newTestRedisLocker(t)

	unlock, err := l.Lock(context.Background(), "count:7:1:2026-03-01")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:count:7:1:2026-03-01"))
	assert.Equal(t, 5*time.Second, mr.TTL("lock:count:7:1:2026-03-01"))

	unlock()
	assert.False(t, mr.Exists("lock:count:7:1:2026-03-01"))
}

func TestRedisLockerContention(t *testing.T) {
	_, l := newTestRedisLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "count:7:1:2026-03-01")
	require.NoError(t, err)

	_, err = l.Lock(ctx, "count:7:1:2026-03-01")
	assert.ErrorIs(t, err, domain.ErrConflict)

	other, err := l.Lock(ctx, "count:7:2:2026-03-01")
	require.NoError(t, err, "other rows are independent")
	other()

	unlock()
	again, err := l.Lock(ctx, "count:7:1:2026-03-01")
	require.NoError(t, err)
	again()
}

func TestRedisLockerKeepsForeignLock(t *testing.T) {
	mr, l := newTestRedisLocker(t)

	unlock, err := l.Lock(context.Background(), "row")
	require.NoError(t, err)

	// the lock expired and another writer took it
	mr.FastForward(6 * time.Second)
	require.NoError(t, mr.Set("lock:row", "someone-else"))

	unlock()
	got, err := mr.Get("lock:row")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerCancelledWhileWaiting(t *testing.T) {
	_, l := newTestRedisLocker(t)
	l.backoff = time.Second

	unlock, err := l.Lock(context.Background(), "row")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "row")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalLockerHandsOver(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "row")
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, "row")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan func(), 1)
	go func() {
		next, err := l.Lock(ctx, "row")
		if err == nil {
			acquired <- next
		}
	}()
	unlock()

	select {
	case next := <-acquired:
		next()
	case <-time.After(time.Second):
		t.Fatal("waiting writer never acquired the lock")
	}
}
