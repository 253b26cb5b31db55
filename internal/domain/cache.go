package domain

import (
	"context"
	"time"
)

// QuoteCache stores price quotes with a per-entry freshness window.
type QuoteCache interface {
	// Get returns a fresh quote or ErrNotFound when the key is missing or
	// past its freshness window.
	Get(ctx context.Context, key string) (PriceQuote, error)

	// GetStale returns the most recent quote for key even past its freshness
	// window, together with the entry's age, as long as the cache still
	// retains it. Used only by outage fallbacks.
	GetStale(ctx context.Context, key string) (PriceQuote, time.Duration, error)

	// Put stores a quote with the given freshness window, overwriting any
	// previous entry.
	Put(ctx context.Context, key string, q PriceQuote, ttl time.Duration) error

	// Invalidate removes the entry for key if present.
	Invalidate(ctx context.Context, key string) error
}

// FXRateCache stores FX rates keyed by source name.
type FXRateCache interface {
	Get(ctx context.Context, source string) (FXRate, error)
	Put(ctx context.Context, source string, r FXRate, ttl time.Duration) error
}

// RateLimiter throttles calls to upstream sources. Acquire blocks until at
// least the configured minimum interval has elapsed since the last granted
// acquisition for the same source, or until ctx is done.
type RateLimiter interface {
	Acquire(ctx context.Context, source string) error
}

// SignalBus is the in-process/out-of-process event fan-out used to stream
// detected opportunities to the API server and other listeners.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
