package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// LocalResolver resolves the local receipt price. Direct market sources are
// tried in order (authenticated broker first, delayed public feed after);
// when none can serve, the theoretical price derived from the underlying
// quote and FX rate is the guaranteed last resort, so resolution never fails
// once those two inputs exist.
type LocalResolver struct {
	sources []domain.LocalMarketQuoteSource
	cache   domain.QuoteCache
	limiter domain.RateLimiter
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewLocalResolver creates a resolver over sources in priority order.
func NewLocalResolver(
	sources []domain.LocalMarketQuoteSource,
	cache domain.QuoteCache,
	limiter domain.RateLimiter,
	ttl time.Duration,
	logger *slog.Logger,
) *LocalResolver {
	return &LocalResolver{
		sources: sources,
		cache:   cache,
		limiter: limiter,
		ttl:     ttl,
		logger:  logger.With("component", "local_resolver"),
		now:     time.Now,
	}
}

func localKey(symbol string) string { return "local:" + symbol }

// Resolve returns a direct local quote when any source can serve one, and the
// theoretical price otherwise. An unauthenticated broker source is an
// expected miss, not an error; it just shortens the cascade.
func (r *LocalResolver) Resolve(
	ctx context.Context,
	instrument domain.Instrument,
	underlying domain.PriceQuote,
	fx domain.FXRate,
	access domain.Access,
) (domain.PriceQuote, error) {
	key := localKey(instrument.Symbol)

	if quote, err := r.cache.Get(ctx, key); err == nil {
		return quote, nil
	}

	attempts := make([]attempt, 0, len(r.sources))
	for _, source := range r.sources {
		name := source.Name()

		if skipUnauthenticated(source, access) {
			attempts = append(attempts, attempt{source: name, err: domain.ErrUnauthenticated})
			continue
		}

		if needsGrant(source) {
			if err := r.limiter.Acquire(ctx, name); err != nil {
				return domain.PriceQuote{}, fmt.Errorf("resolver: local rate limiter: %w", err)
			}
		}

		quote, err := source.GetQuote(ctx, instrument.Symbol, access)
		if err != nil {
			attempts = append(attempts, attempt{source: name, err: err})
			if ctx.Err() != nil {
				return domain.PriceQuote{}, fmt.Errorf("resolver: local %s: %w", instrument.Symbol, ctx.Err())
			}
			continue
		}

		attempts = append(attempts, attempt{source: name})
		if err := r.cache.Put(ctx, key, quote, r.ttl); err != nil {
			r.logger.Warn("local cache write failed", "symbol", instrument.Symbol, "error", err)
		}
		r.logger.Debug("local price resolved",
			"source", name, "symbol", instrument.Symbol, "price", quote.Price, "cascade", summarize(attempts))
		return quote, nil
	}

	if len(attempts) > 0 {
		r.logger.Info("no direct local quote, using theoretical price",
			"symbol", instrument.Symbol, "cascade", summarize(attempts))
	}

	return domain.PriceQuote{
		Symbol:        instrument.Symbol,
		Price:         domain.TheoreticalLocalPrice(underlying.Price, fx.Rate, instrument.ConversionRatio),
		Currency:      "ARS",
		Source:        "theoretical",
		Timestamp:     r.now(),
		IsTheoretical: true,
	}, nil
}
