package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
	"github.com/redis/go-redis/v9"
)

// waitPollInterval is how often Acquire re-checks after a denied attempt.
const waitPollInterval = 50 * time.Millisecond

// RateLimiter implements domain.RateLimiter across scanner instances using a
// per-source token key: SET NX PX grants the slot to exactly one caller per
// minInterval window.
type RateLimiter struct {
	rdb         *redis.Client
	minInterval time.Duration
}

// NewRateLimiter creates a RateLimiter backed by the given Client, granting
// at most one call per minInterval per source across all instances.
func NewRateLimiter(c *Client, minInterval time.Duration) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying(), minInterval: minInterval}
}

func rateLimitKey(source string) string {
	return "ratelimit:" + source
}

// Acquire blocks until the per-source slot is free, claims it, and returns.
// It polls at a fixed interval, returning an error if the context is
// cancelled first.
func (rl *RateLimiter) Acquire(ctx context.Context, source string) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis: rate limit acquire %s: %w", source, ctx.Err())
		default:
		}

		ok, err := rl.rdb.SetNX(ctx, rateLimitKey(source), 1, rl.minInterval).Result()
		if err != nil {
			return fmt.Errorf("redis: rate limit acquire %s: %w", source, err)
		}
		if ok {
			return nil
		}

		// Sleep before retrying, but honour the context.
		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit acquire %s: %w", source, ctx.Err())
		case <-timer.C:
		}
	}
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
