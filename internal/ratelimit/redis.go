package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// KEYS[1] counter key, ARGV[1] limit, ARGV[2] window in ms.
// Returns {allowed, count, ttl_ms}.
var fixedWindowScript = goredis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  redis.call('SET', KEYS[1], 1, 'PX', ARGV[2])
  return {1, 1, tonumber(ARGV[2])}
end
local count = tonumber(current)
local ttl = redis.call('PTTL', KEYS[1])
if count >= tonumber(ARGV[1]) then
  return {0, count, ttl}
end
count = redis.call('INCR', KEYS[1])
return {1, count, ttl}
`)

// RedisLimiter shares counters between replicas through Redis. The check
// and increment run as one script so concurrent callers cannot overshoot.
type RedisLimiter struct {
	rdb    goredis.Scripter
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a limiter storing keys under prefix
func NewRedisLimiter(rdb goredis.Scripter, prefix string) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, now: time.Now}
}

// Allow implements Limiter
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1
	}

	vals, err := fixedWindowScript.Run(ctx, l.rdb, []string{l.prefix + key}, limit, ms).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit script failed: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("rate limit script returned %d values", len(vals))
	}

	allowed, count, ttl := vals[0] == 1, int(vals[1]), vals[2]
	resetAt := l.now().Add(time.Duration(max(ttl, 0)) * time.Millisecond)

	if !allowed {
		return Result{Success: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	return Result{Success: true, Remaining: max(limit-count, 0), ResetAt: resetAt}, nil
}
