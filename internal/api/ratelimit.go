package api

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimiter decides whether the caller identified by key may proceed.
// retryAfter is only meaningful when allowed is false.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RedisRateLimiter is a fixed window counter shared by every server instance.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisRateLimiter allows limit requests per window and key.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "artsheets:ratelimit:",
		now:    time.Now,
	}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l.limit <= 0 {
		return true, 0, nil
	}
	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	redisKey := l.prefix + key + ":" + strconv.FormatInt(slot, 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("rate limit counter: %w", err)
	}
	if incr.Val() <= int64(l.limit) {
		return true, 0, nil
	}
	windowEnd := time.Unix(0, (slot+1)*int64(l.window))
	return false, windowEnd.Sub(now), nil
}

// LocalRateLimiter keeps one token bucket per key in process memory.
// Buckets idle for a whole window are full again and get dropped.
type LocalRateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*localBucket
	rate      rate.Limit
	burst     int
	idleAfter time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalRateLimiter refills limit tokens per window, with a burst of limit.
func NewLocalRateLimiter(limit int, window time.Duration) *LocalRateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	l := &LocalRateLimiter{
		buckets:   make(map[string]*localBucket),
		burst:     limit,
		idleAfter: window,
		now:       time.Now,
	}
	if limit > 0 {
		l.rate = rate.Limit(float64(limit) / window.Seconds())
	}
	return l
}

func (l *LocalRateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	if l.burst <= 0 {
		return true, 0, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.idleAfter {
		l.evictIdle(now)
		l.lastSweep = now
	}
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &localBucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = bucket
	}
	bucket.lastSeen = now

	if bucket.limiter.AllowN(now, 1) {
		return true, 0, nil
	}
	return false, time.Duration(float64(time.Second) / float64(l.rate)), nil
}

func (l *LocalRateLimiter) evictIdle(now time.Time) {
	for key, bucket := range l.buckets {
		if now.Sub(bucket.lastSeen) >= l.idleAfter {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of keys currently tracked.
func (l *LocalRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit 按用户限制请求频率，需在 AuthMiddleware 之后使用
func (h *HTTPHandler) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if user := CurrentUser(c); user != nil {
			key = "user:" + strconv.FormatUint(uint64(user.ID), 10)
		}

		allowed, retryAfter, err := h.limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// 限流后端不可用时放行
			logrus.WithError(err).WithField("key", key).Warn("rate_limit_check_failed")
			c.Next()
			return
		}
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, APIError{
				Code:    ErrCodeRateLimited,
				Message: "too many generation requests, slow down",
				Details: gin.H{"retry_after_seconds": seconds},
			})
			return
		}
		c.Next()
	}
}
