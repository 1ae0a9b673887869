package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter: the first hit of a window sets its
// expiry, later hits only increment.
type RateLimiter struct {
	kv KV
}

func NewRateLimiter(kv KV) *RateLimiter {
	return &RateLimiter{kv: kv}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.kv.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.kv.Expire(ctx, key, window); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

// ClientKey is the per-minute bucket of a gateway client.
func ClientKey(subject, route string) string {
	return "rate_limit:" + subject + ":" + route
}
