package middleware

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisclient "github.com/fingerprintdoorbell/doorbell-server-go/internal/redis"
)

const rateLimitWindow = 60 * time.Second

var rateLimitKeyPrefix = redisclient.Key("ratelimit") + ":"

var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

return {1, now + window}
`)

// RedisRateLimiter is a sliding window shared by every server instance
// using the same redis.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	now    func() time.Time
}

// NewRedisRateLimiter allows perSecond requests on average over a one
// minute window.
func NewRedisRateLimiter(client *redis.Client, perSecond float64) *RedisRateLimiter {
	limit := int(math.Ceil(perSecond * rateLimitWindow.Seconds()))
	if limit < 1 {
		limit = 1
	}
	return &RedisRateLimiter{client: client, limit: limit, now: time.Now}
}

// Allow fails open when redis is unreachable; the doorbell UI must stay
// usable without it.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	now := l.now()
	result, err := rateLimitScript.Run(ctx, l.client, []string{rateLimitKeyPrefix + key},
		now.Unix(), int64(rateLimitWindow.Seconds()), l.limit).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis rate limit check failed, allowing request")
		return true, 0
	}
	if len(result) != 2 {
		log.Warn().Str("key", key).Msg("unexpected redis rate limit result")
		return true, 0
	}
	if result[0] == 1 {
		return true, 0
	}
	retry := time.Unix(result[1], 0).Sub(now)
	if retry < time.Second {
		retry = time.Second
	}
	return false, retry
}
