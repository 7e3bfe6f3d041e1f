package api

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T, limit int) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRateLimiter(client, limit, time.Minute), mr
}

func TestRedisRateLimiterFixedWindow(t *testing.T) {
	limiter, _ := newRedisLimiter(t, 2)
	now := time.Date(2025, 3, 7, 10, 0, 15, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 45*time.Second, retryAfter)

	allowed, _, err = limiter.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, allowed, "keys are counted separately")

	now = now.Add(time.Minute)
	allowed, _, err = limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, allowed, "a new window starts from zero")
}

func TestRedisRateLimiterSetsExpiry(t *testing.T) {
	limiter, mr := newRedisLimiter(t, 5)
	_, _, err := limiter.Allow(context.Background(), "user:7")
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, time.Minute, mr.TTL(keys[0]))
}

func TestRedisRateLimiterReportsBackendErrors(t *testing.T) {
	limiter, mr := newRedisLimiter(t, 1)
	mr.SetError("ERR injected failure")

	_, _, err := limiter.Allow(context.Background(), "user:1")
	assert.Error(t, err)
}

func TestLocalRateLimiter(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		calls   int
		allowed int
	}{
		{name: "限制内", limit: 3, calls: 3, allowed: 3},
		{name: "超出限制", limit: 2, calls: 5, allowed: 2},
		{name: "不限流", limit: 0, calls: 10, allowed: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := NewLocalRateLimiter(tt.limit, time.Hour)
			got := 0
			for i := 0; i < tt.calls; i++ {
				ok, retryAfter, err := limiter.Allow(context.Background(), "user:1")
				require.NoError(t, err)
				if ok {
					got++
				} else {
					assert.Positive(t, retryAfter)
				}
			}
			assert.Equal(t, tt.allowed, got)
		})
	}
}

func TestLocalRateLimiterEvictsIdleKeys(t *testing.T) {
	limiter := NewLocalRateLimiter(1, time.Minute)
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for _, key := range []string{"user:1", "user:2", "ip:10.0.0.1"} {
		allowed, _, err := limiter.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
	assert.Equal(t, 3, limiter.Len())

	now = now.Add(30 * time.Second)
	allowed, _, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, allowed, "an active key keeps its exhausted bucket")

	now = now.Add(45 * time.Second)
	allowed, _, err = limiter.Allow(ctx, "user:3")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2, limiter.Len(), "keys idle for a full window are dropped")

	now = now.Add(2 * time.Minute)
	allowed, _, err = limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, limiter.Len())
}
