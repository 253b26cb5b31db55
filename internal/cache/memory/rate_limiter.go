package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// RateLimiter enforces a minimum interval between consecutive calls to the
// same upstream source. The per-source last-grant timestamps are shared
// mutable state; the mutex makes Acquire safe under preemptive scheduling.
type RateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastGrant   map[string]time.Time
	now         func() time.Time                           // test override
	sleep       func(context.Context, time.Duration) error // test override
}

// NewRateLimiter creates a limiter granting at most one call per minInterval
// per source.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		minInterval: minInterval,
		lastGrant:   make(map[string]time.Time),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Acquire blocks until at least minInterval has elapsed since the last
// granted acquisition for source, then records the grant. It returns early
// with ctx.Err() if the context is done while waiting.
func (rl *RateLimiter) Acquire(ctx context.Context, source string) error {
	for {
		rl.mu.Lock()
		now := rl.now()
		last, seen := rl.lastGrant[source]
		wait := rl.minInterval - now.Sub(last)
		if !seen || wait <= 0 {
			rl.lastGrant[source] = now
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		if err := rl.sleep(ctx, wait); err != nil {
			return err
		}
		// Re-check: another caller may have taken the slot while we slept.
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
