package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// QuoteCache implements domain.QuoteCache, the tier shared by every process
// scanning the same universe. Values are JSON in the "data" field of a hash
// that expires with the TTL given at write time.
//
// Key schema:
//
//	quote:underlying:{symbol}
//	quote:expirations:{symbol}
//	quote:chain:{symbol}:{yyyy-mm-dd}
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func underlyingKey(symbol string) string  { return "quote:underlying:" + symbol }
func expirationsKey(symbol string) string { return "quote:expirations:" + symbol }
func chainKey(symbol string, exp time.Time) string {
	return "quote:chain:" + symbol + ":" + exp.UTC().Format("2006-01-02")
}

// GetUnderlying returns the cached price snapshot for symbol.
func (qc *QuoteCache) GetUnderlying(ctx context.Context, symbol string) (domain.Underlying, error) {
	var u domain.Underlying
	if err := qc.get(ctx, underlyingKey(symbol), &u); err != nil {
		return domain.Underlying{}, err
	}
	return u, nil
}

// SetUnderlying caches a price snapshot.
func (qc *QuoteCache) SetUnderlying(ctx context.Context, u domain.Underlying, ttl time.Duration) error {
	return qc.set(ctx, underlyingKey(u.Symbol), u, ttl)
}

// GetExpirations returns the cached listed expirations for symbol.
func (qc *QuoteCache) GetExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	var exps []time.Time
	if err := qc.get(ctx, expirationsKey(symbol), &exps); err != nil {
		return nil, err
	}
	return exps, nil
}

// SetExpirations caches the listed expirations for symbol.
func (qc *QuoteCache) SetExpirations(ctx context.Context, symbol string, exps []time.Time, ttl time.Duration) error {
	return qc.set(ctx, expirationsKey(symbol), exps, ttl)
}

// GetChain returns the cached chain for symbol and expiration.
func (qc *QuoteCache) GetChain(ctx context.Context, symbol string, expiration time.Time) ([]domain.OptionContract, error) {
	var chain []domain.OptionContract
	if err := qc.get(ctx, chainKey(symbol, expiration), &chain); err != nil {
		return nil, err
	}
	return chain, nil
}

// SetChain caches a chain.
func (qc *QuoteCache) SetChain(ctx context.Context, symbol string, expiration time.Time, chain []domain.OptionContract, ttl time.Duration) error {
	return qc.set(ctx, chainKey(symbol, expiration), chain, ttl)
}

func (qc *QuoteCache) get(ctx context.Context, key string, dst any) error {
	data, err := qc.rdb.HGet(ctx, key, "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("redis: unmarshal %s: %w", key, err)
	}
	return nil
}

func (qc *QuoteCache) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", key, err)
	}

	pipe := qc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
