package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agustinrios/cedearscan/internal/domain"
	"github.com/redis/go-redis/v9"
)

// QuoteCache implements domain.QuoteCache on Redis string keys. The freshness
// window is embedded in the stored payload rather than delegated to Redis key
// expiry, so that an entry past its window can still be served through
// GetStale during upstream outages; the Redis TTL is set to the retention
// ceiling instead.
type QuoteCache struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

// quoteEntry is the JSON payload stored per key.
type quoteEntry struct {
	Quote      domain.PriceQuote `json:"quote"`
	CachedAt   time.Time         `json:"cached_at"`
	FreshUntil time.Time         `json:"fresh_until"`
}

// NewQuoteCache creates a QuoteCache backed by the given Client. prefix
// namespaces the keys ("local", "underlying"). retention controls how long
// expired entries stay readable via GetStale; pass 0 for strict TTL behavior.
func NewQuoteCache(c *Client, prefix string, retention time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), prefix: prefix, retention: retention}
}

func (qc *QuoteCache) key(k string) string {
	return "quote:" + qc.prefix + ":" + k
}

// Get returns a fresh quote or domain.ErrNotFound.
func (qc *QuoteCache) Get(ctx context.Context, key string) (domain.PriceQuote, error) {
	e, err := qc.load(ctx, key)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	if time.Now().After(e.FreshUntil) {
		if qc.retention == 0 {
			// Strict mode: expired read evicts.
			_ = qc.rdb.Del(ctx, qc.key(key)).Err()
		}
		return domain.PriceQuote{}, domain.ErrNotFound
	}
	return e.Quote, nil
}

// GetStale returns the most recent quote for key regardless of freshness,
// with its age. Entries older than the retention ceiling have already been
// expired by Redis.
func (qc *QuoteCache) GetStale(ctx context.Context, key string) (domain.PriceQuote, time.Duration, error) {
	e, err := qc.load(ctx, key)
	if err != nil {
		return domain.PriceQuote{}, 0, err
	}
	return e.Quote, time.Since(e.CachedAt), nil
}

// Put stores a quote with the given freshness window.
func (qc *QuoteCache) Put(ctx context.Context, key string, quote domain.PriceQuote, ttl time.Duration) error {
	now := time.Now()
	payload, err := json.Marshal(quoteEntry{
		Quote:      quote,
		CachedAt:   now,
		FreshUntil: now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("redis: marshal quote %s: %w", key, err)
	}

	expiry := qc.retention
	if expiry < ttl {
		expiry = ttl
	}
	if err := qc.rdb.Set(ctx, qc.key(key), payload, expiry).Err(); err != nil {
		return fmt.Errorf("redis: put quote %s: %w", key, err)
	}
	return nil
}

// Invalidate removes the entry for key.
func (qc *QuoteCache) Invalidate(ctx context.Context, key string) error {
	if err := qc.rdb.Del(ctx, qc.key(key)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate quote %s: %w", key, err)
	}
	return nil
}

func (qc *QuoteCache) load(ctx context.Context, key string) (quoteEntry, error) {
	raw, err := qc.rdb.Get(ctx, qc.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return quoteEntry{}, domain.ErrNotFound
	}
	if err != nil {
		return quoteEntry{}, fmt.Errorf("redis: get quote %s: %w", key, err)
	}

	var e quoteEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return quoteEntry{}, fmt.Errorf("redis: unmarshal quote %s: %w", key, err)
	}
	return e, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
