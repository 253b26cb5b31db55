// Package memory implements the quote cache and rate limiter interfaces with
// in-process data structures. This is the default backend; the redis package
// provides the distributed equivalents.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
)

// entry is a cached value with its freshness window.
type entry[T any] struct {
	value    T
	cachedAt time.Time
	ttl      time.Duration
}

func (e entry[T]) fresh(now time.Time) bool {
	return now.Sub(e.cachedAt) <= e.ttl
}

// cache is a mutex-guarded key→value store with per-entry TTL. Expired
// entries are invalidated lazily on read, never proactively swept. When
// retention is positive, an expired entry is kept around (and reachable via
// getStale) until it is older than retention; with zero retention expired
// reads evict immediately.
type cache[T any] struct {
	mu        sync.Mutex
	entries   map[string]entry[T]
	retention time.Duration
	now       func() time.Time // test override
}

func newCache[T any](retention time.Duration) *cache[T] {
	return &cache[T]{
		entries:   make(map[string]entry[T]),
		retention: retention,
		now:       time.Now,
	}
}

// get returns a fresh value. An expired entry counts as a miss; it is evicted
// on that read unless retention still covers it.
func (c *cache[T]) get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}

	now := c.now()
	if e.fresh(now) {
		return e.value, true
	}

	if now.Sub(e.cachedAt) > c.retention {
		delete(c.entries, key)
	}
	return zero, false
}

// getStale returns the entry regardless of freshness, with its age, as long
// as it is still retained.
func (c *cache[T]) getStale(key string) (T, time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, 0, false
	}

	age := c.now().Sub(e.cachedAt)
	if age > e.ttl && age > c.retention {
		delete(c.entries, key)
		return zero, 0, false
	}
	return e.value, age, true
}

func (c *cache[T]) put(key string, value T, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry[T]{value: value, cachedAt: c.now(), ttl: ttl}
}

func (c *cache[T]) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// QuoteCache implements domain.QuoteCache in process.
type QuoteCache struct {
	c *cache[domain.PriceQuote]
}

// NewQuoteCache creates a quote cache. retention controls how long expired
// entries stay reachable through GetStale; pass 0 for strict TTL behavior.
func NewQuoteCache(retention time.Duration) *QuoteCache {
	return &QuoteCache{c: newCache[domain.PriceQuote](retention)}
}

func (q *QuoteCache) Get(ctx context.Context, key string) (domain.PriceQuote, error) {
	quote, ok := q.c.get(key)
	if !ok {
		return domain.PriceQuote{}, domain.ErrNotFound
	}
	return quote, nil
}

func (q *QuoteCache) GetStale(ctx context.Context, key string) (domain.PriceQuote, time.Duration, error) {
	quote, age, ok := q.c.getStale(key)
	if !ok {
		return domain.PriceQuote{}, 0, domain.ErrNotFound
	}
	return quote, age, nil
}

func (q *QuoteCache) Put(ctx context.Context, key string, quote domain.PriceQuote, ttl time.Duration) error {
	q.c.put(key, quote, ttl)
	return nil
}

func (q *QuoteCache) Invalidate(ctx context.Context, key string) error {
	q.c.invalidate(key)
	return nil
}

// FXRateCache implements domain.FXRateCache in process. FX rates are never
// served stale, so there is no retention window.
type FXRateCache struct {
	c *cache[domain.FXRate]
}

// NewFXRateCache creates an FX rate cache with strict TTL behavior.
func NewFXRateCache() *FXRateCache {
	return &FXRateCache{c: newCache[domain.FXRate](0)}
}

func (f *FXRateCache) Get(ctx context.Context, source string) (domain.FXRate, error) {
	rate, ok := f.c.get(source)
	if !ok {
		return domain.FXRate{}, domain.ErrNotFound
	}
	return rate, nil
}

func (f *FXRateCache) Put(ctx context.Context, source string, rate domain.FXRate, ttl time.Duration) error {
	f.c.put(source, rate, ttl)
	return nil
}

// Compile-time interface checks.
var (
	_ domain.QuoteCache  = (*QuoteCache)(nil)
	_ domain.FXRateCache = (*FXRateCache)(nil)
)
