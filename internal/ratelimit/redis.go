package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCounter keeps hit counts in Redis so every instance shares them.
type redisCounter struct {
	client *redis.Client
	prefix string
}

// Hit records one hit. The key is created with the window as TTL and only incremented afterwards.
func (r *redisCounter) Hit(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	full := r.prefix + ":" + key
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, errExec := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, full, 0, window)
		incr = pipe.Incr(ctx, full)
		ttl = pipe.PTTL(ctx, full)
		return nil
	})
	if errExec != nil {
		return 0, time.Time{}, fmt.Errorf("ratelimit: redis hit %s: %w", full, errExec)
	}
	left := ttl.Val()
	if left <= 0 {
		left = window
	}
	return int(incr.Val()), now.Add(left), nil
}
