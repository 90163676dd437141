package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows burst then blocks", func(t *testing.T) {
		limiter := NewIPRateLimiter(1, 3)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		limiter.now = func() time.Time { return now }

		for i := 0; i < 3; i++ {
			allowed, _ := limiter.Allow(ctx, "ip-1")
			assert.True(t, allowed, "request %d", i+1)
		}

		allowed, retry := limiter.Allow(ctx, "ip-1")
		assert.False(t, allowed)
		assert.Greater(t, retry, time.Duration(0))

		now = now.Add(time.Second)
		allowed, _ = limiter.Allow(ctx, "ip-1")
		assert.True(t, allowed)
	})

	t.Run("tracks keys separately", func(t *testing.T) {
		limiter := NewIPRateLimiter(1, 1)

		allowed, _ := limiter.Allow(ctx, "ip-a")
		assert.True(t, allowed)
		allowed, _ = limiter.Allow(ctx, "ip-b")
		assert.True(t, allowed)
	})

	t.Run("evicts idle entries", func(t *testing.T) {
		limiter := NewIPRateLimiter(1, 1)
		now := time.Now()
		limiter.now = func() time.Time { return now }
		limiter.Allow(ctx, "ip-old")

		now = now.Add(entryTTL + cleanupInterval + time.Second)
		limiter.Allow(ctx, "ip-new")

		assert.Len(t, limiter.entries, 1)
	})
}

func TestIPRateLimitMiddleware(t *testing.T) {
	m := NewIPRateLimitMiddleware(NewIPRateLimiter(0.001, 1), "api")
	handler := m.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.RemoteAddr = "192.0.2.1:6666"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRedisRateLimiter(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}

	key := "test:" + time.Now().Format(time.RFC3339Nano)
	defer client.Del(ctx, rateLimitKeyPrefix+key)

	limiter := NewRedisRateLimiter(client, 2.0/60.0)
	for i := 0; i < 2; i++ {
		allowed, _ := limiter.Allow(ctx, key)
		assert.True(t, allowed, "request %d", i+1)
	}
	allowed, retry := limiter.Allow(ctx, key)
	assert.False(t, allowed)
	assert.GreaterOrEqual(t, retry, time.Second)
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	allowed, _ := NewRedisRateLimiter(client, 1).Allow(context.Background(), "k")
	assert.True(t, allowed)
}
