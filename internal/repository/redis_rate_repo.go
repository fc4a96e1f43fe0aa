package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter throttles the sensitive unauthenticated endpoints
// (forgot-password, magic-link, resend-verification) with a fixed window
// counter per key. The key pattern is "ratelimit:<scope>:<client>".
type RedisRateLimiter struct {
	client *redis.Client
}

// NewRedisRateLimiter creates a new limiter instance.
func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

// Allow records one request for the key and reports whether it is still
// within limit for the window. When the limit is exceeded it also returns
// the seconds until the window resets.
func (r *RedisRateLimiter) Allow(ctx context.Context, scope, client string, limit int, window time.Duration) (bool, int, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", scope, client)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit incr: %w", err)
	}

	// The window starts at the first request in it.
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, fmt.Errorf("ratelimit expire: %w", err)
		}
	}

	if count <= int64(limit) {
		return true, 0, nil
	}

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return false, int(ttl.Seconds()), nil
}
