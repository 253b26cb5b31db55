package domain

import "context"

// FXRateSource produces the FX proxy rate from one upstream. Implementations
// return ErrSourceUnavailable (or ErrUnauthenticated for sources that need a
// broker session) when they cannot serve; the resolver moves on to the next
// source in its priority order.
type FXRateSource interface {
	// Name identifies the source in logs, cache keys, and FXRate.Source.
	Name() string

	GetRate(ctx context.Context, access Access) (FXRate, error)
}

// InternationalQuoteSource quotes the underlying security in its home
// currency. Fails with ErrQuoteUnavailable or ErrRateLimited.
type InternationalQuoteSource interface {
	Name() string

	GetQuote(ctx context.Context, symbol string) (PriceQuote, error)
}

// LocalMarketQuoteSource quotes the local receipt in domestic currency.
// Fails with ErrUnauthenticated when the source needs a session that access
// does not carry, or ErrQuoteUnavailable.
type LocalMarketQuoteSource interface {
	Name() string

	GetQuote(ctx context.Context, symbol string, access Access) (PriceQuote, error)
}

// SessionGated marks a source that can only serve authenticated access.
// Resolvers skip gated sources when no valid session is in hand instead of
// spending a rate-limit grant on a call that fails before the network.
type SessionGated interface {
	RequiresSession() bool
}

// SelfThrottled marks a source that limits its own upstream traffic, for
// example by answering lookups from an in-process snapshot and throttling
// only the refresh. Resolvers leave rate limiting to such sources.
type SelfThrottled interface {
	ThrottlesOwnRequests() bool
}
