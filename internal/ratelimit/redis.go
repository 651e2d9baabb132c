package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultKeyPrefix namespaces limiter keys when no prefix is configured,
// so several deployments can share one Redis instance.
const defaultKeyPrefix = "lumagen"

// Window keys expire two seconds after creation, so idle codes leave no
// keys behind.
const redisWindowTTLSeconds = 2

var incrWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter implements a fixed-window rate limiter backed by Redis,
// counting requests per authorization code across all server instances.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Allow checks whether the request should be allowed in the current second.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" || l == nil || l.client == nil {
		return Result{Allowed: true}, nil
	}
	sec := now.Unix()
	reset := time.Unix(sec+1, 0).UTC()

	res, errEval := incrWindowScript.Run(ctx, l.client, []string{l.windowKey(key, sec)}, redisWindowTTLSeconds).Result()
	if errEval != nil {
		return Result{}, errEval
	}
	count, ok := res.(int64)
	if !ok {
		return Result{}, fmt.Errorf("ratelimit: unexpected redis reply %T", res)
	}

	if count > int64(limit) {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	return Result{Allowed: true, Remaining: limit - int(count), Reset: reset}, nil
}

// windowKey builds the per-second counter key for one limiter key.
func (l *RedisLimiter) windowKey(key string, sec int64) string {
	prefix := l.prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return prefix + ":ratelimit:" + key + ":" + strconv.FormatInt(sec, 10)
}
