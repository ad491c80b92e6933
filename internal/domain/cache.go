package domain

import (
	"context"
	"time"
)

// QuoteCache is the shared tier of the quote cache. Entries expire after the
// TTL they were written with. Misses return ErrNotFound.
type QuoteCache interface {
	GetUnderlying(ctx context.Context, symbol string) (Underlying, error)
	SetUnderlying(ctx context.Context, u Underlying, ttl time.Duration) error
	GetExpirations(ctx context.Context, symbol string) ([]time.Time, error)
	SetExpirations(ctx context.Context, symbol string, exps []time.Time, ttl time.Duration) error
	GetChain(ctx context.Context, symbol string, expiration time.Time) ([]OptionContract, error)
	SetChain(ctx context.Context, symbol string, expiration time.Time, chain []OptionContract, ttl time.Duration) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking. Acquire returns ErrLockHeld when
// another holder owns the key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
