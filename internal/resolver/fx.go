package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// FXResolver walks an ordered list of FX sources, serving from cache when a
// fresh rate exists and calling upstream through the rate limiter otherwise.
// It never serves an expired rate: a wrong FX rate poisons every theoretical
// price downstream, so exhaustion is surfaced instead.
type FXResolver struct {
	sources []domain.FXRateSource
	cache   domain.FXRateCache
	limiter domain.RateLimiter
	ttl     time.Duration
	logger  *slog.Logger
}

// NewFXResolver creates a resolver over sources in priority order.
func NewFXResolver(
	sources []domain.FXRateSource,
	cache domain.FXRateCache,
	limiter domain.RateLimiter,
	ttl time.Duration,
	logger *slog.Logger,
) *FXResolver {
	return &FXResolver{
		sources: sources,
		cache:   cache,
		limiter: limiter,
		ttl:     ttl,
		logger:  logger.With("component", "fx_resolver"),
	}
}

// Resolve returns the first rate the cascade can produce. FallbackUsed marks
// any rate that did not come from the first configured source. When every
// source fails the error wraps ErrAllSourcesExhausted.
func (r *FXResolver) Resolve(ctx context.Context, access domain.Access) (domain.FXRate, error) {
	attempts := make([]attempt, 0, len(r.sources))

	for i, source := range r.sources {
		name := source.Name()

		if rate, err := r.cache.Get(ctx, name); err == nil {
			rate.FallbackUsed = i > 0
			attempts = append(attempts, attempt{source: name, cached: true})
			r.logger.Debug("fx rate resolved",
				"source", name, "rate", rate.Rate, "cascade", summarize(attempts))
			return rate, nil
		}

		if skipUnauthenticated(source, access) {
			attempts = append(attempts, attempt{source: name, err: domain.ErrUnauthenticated})
			continue
		}

		if err := r.limiter.Acquire(ctx, name); err != nil {
			return domain.FXRate{}, fmt.Errorf("resolver: fx rate limiter: %w", err)
		}

		rate, err := source.GetRate(ctx, access)
		if err != nil {
			attempts = append(attempts, attempt{source: name, err: err})
			if ctx.Err() != nil {
				return domain.FXRate{}, fmt.Errorf("resolver: fx: %w", ctx.Err())
			}
			continue
		}

		rate.FallbackUsed = i > 0
		attempts = append(attempts, attempt{source: name})
		if err := r.cache.Put(ctx, name, rate, r.ttl); err != nil {
			r.logger.Warn("fx cache write failed", "source", name, "error", err)
		}
		r.logger.Debug("fx rate resolved",
			"source", name, "rate", rate.Rate, "fallback", rate.FallbackUsed, "cascade", summarize(attempts))
		return rate, nil
	}

	r.logger.Warn("fx cascade exhausted", "cascade", summarize(attempts))
	return domain.FXRate{}, fmt.Errorf("resolver: fx: %s: %w", summarize(attempts), domain.ErrAllSourcesExhausted)
}
