package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// UnderlyingResolver resolves the underlying security's price from a single
// international source, backed by a cache whose retention stretches well past
// the freshness window so closed foreign markets (weekends, holidays) do not
// stall scanning.
type UnderlyingResolver struct {
	source  domain.InternationalQuoteSource
	cache   domain.QuoteCache
	limiter domain.RateLimiter
	ttl     time.Duration
	logger  *slog.Logger
}

// NewUnderlyingResolver creates the resolver. ttl is the freshness window for
// newly fetched quotes; retention is a property of the cache itself.
func NewUnderlyingResolver(
	source domain.InternationalQuoteSource,
	cache domain.QuoteCache,
	limiter domain.RateLimiter,
	ttl time.Duration,
	logger *slog.Logger,
) *UnderlyingResolver {
	return &UnderlyingResolver{
		source:  source,
		cache:   cache,
		limiter: limiter,
		ttl:     ttl,
		logger:  logger.With("component", "underlying_resolver"),
	}
}

func underlyingKey(symbol string) string { return "underlying:" + symbol }

// Resolve returns a fresh quote when it can, falling back to the newest
// retained cache entry when the upstream fails. A fallback quote is marked
// Stale but not theoretical: it was observed on a real market, just earlier.
func (r *UnderlyingResolver) Resolve(ctx context.Context, symbol string) (domain.PriceQuote, error) {
	key := underlyingKey(symbol)

	if quote, err := r.cache.Get(ctx, key); err == nil {
		return quote, nil
	}

	if err := r.limiter.Acquire(ctx, r.source.Name()); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("resolver: underlying rate limiter: %w", err)
	}

	quote, fetchErr := r.source.GetQuote(ctx, symbol)
	if fetchErr == nil {
		if err := r.cache.Put(ctx, key, quote, r.ttl); err != nil {
			r.logger.Warn("underlying cache write failed", "symbol", symbol, "error", err)
		}
		return quote, nil
	}
	if ctx.Err() != nil {
		return domain.PriceQuote{}, fmt.Errorf("resolver: underlying %s: %w", symbol, ctx.Err())
	}

	stale, age, staleErr := r.cache.GetStale(ctx, key)
	if staleErr == nil {
		stale.Stale = true
		r.logger.Warn("underlying source failed, serving retained quote",
			"source", r.source.Name(), "symbol", symbol, "age", age, "reason", fetchErr)
		return stale, nil
	}

	r.logger.Warn("underlying resolution failed",
		"source", r.source.Name(), "symbol", symbol, "reason", fetchErr)
	return domain.PriceQuote{}, fmt.Errorf("resolver: underlying %s: %v: %w",
		symbol, fetchErr, domain.ErrSourceUnavailable)
}
