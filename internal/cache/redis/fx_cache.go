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

// FXRateCache implements domain.FXRateCache on Redis string keys. FX rates
// are never served stale, so plain key expiry carries the TTL.
type FXRateCache struct {
	rdb *redis.Client
}

// NewFXRateCache creates an FXRateCache backed by the given Client.
func NewFXRateCache(c *Client) *FXRateCache {
	return &FXRateCache{rdb: c.Underlying()}
}

func fxKey(source string) string {
	return "fx:" + source
}

// Get returns the cached rate for source or domain.ErrNotFound.
func (fc *FXRateCache) Get(ctx context.Context, source string) (domain.FXRate, error) {
	raw, err := fc.rdb.Get(ctx, fxKey(source)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.FXRate{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.FXRate{}, fmt.Errorf("redis: get fx rate %s: %w", source, err)
	}

	var rate domain.FXRate
	if err := json.Unmarshal(raw, &rate); err != nil {
		return domain.FXRate{}, fmt.Errorf("redis: unmarshal fx rate %s: %w", source, err)
	}
	return rate, nil
}

// Put stores the rate with the given TTL.
func (fc *FXRateCache) Put(ctx context.Context, source string, rate domain.FXRate, ttl time.Duration) error {
	payload, err := json.Marshal(rate)
	if err != nil {
		return fmt.Errorf("redis: marshal fx rate %s: %w", source, err)
	}
	if err := fc.rdb.Set(ctx, fxKey(source), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis: put fx rate %s: %w", source, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.FXRateCache = (*FXRateCache)(nil)
