package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a sliding-window limiter over a Redis sorted set. Each
// member is one request scored by its timestamp; a Lua script trims,
// counts and inserts atomically so concurrent instances share one budget.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	window      time.Duration
	now         func() time.Time
}

// KEYS[1] = window key
// ARGV = now (ms), window (ms), limit, member
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
    return 0
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window + 1000)
return 1
`)

// NewRateLimiter creates a limiter counting requests over window.
func NewRateLimiter(redisClient *redis.Client, window time.Duration, logger *slog.Logger) *RateLimiter {
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		window:      window,
		now:         time.Now,
	}
}

func rlKey(key string) string {
	return fmt.Sprintf("rl:%s", key)
}

// Allow reports whether one more request for key fits in the current
// window. A limit of zero or less disables limiting; Redis errors fail open.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int) bool {
	if limit <= 0 {
		return true
	}

	result, err := rl.script.Run(ctx, rl.redisClient, []string{rlKey(key)},
		rl.now().UnixMilli(), rl.window.Milliseconds(), limit, uuid.NewString(),
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err, "key", key)
		return true
	}

	if result == 0 {
		rl.logger.Debug("rate limited", "key", key, "limit", limit, "window", rl.window)
		return false
	}
	return true
}
