package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter counts calls in fixed windows stored in Redis.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a limiter using keys under prefix.
func NewRedisLimiter(client redis.Cmdable, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// CheckLimit increments the counter of the current window and compares it to the budget.
func (l *RedisLimiter) CheckLimit(ctx context.Context, operation string, maxCalls int, window time.Duration) (bool, error) {
	if maxCalls <= 0 || window <= 0 {
		return true, nil
	}

	// Buckets are counted in whole milliseconds.
	window = max(window, time.Millisecond)

	bucket := l.now().UnixMilli() / window.Milliseconds()
	key := l.prefix + operation + ":" + strconv.FormatInt(bucket, 10)

	var incr *redis.IntCmd

	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.PExpire(ctx, key, window)

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis rate limit %s: %w", operation, err)
	}

	return incr.Val() <= int64(maxCalls), nil
}
