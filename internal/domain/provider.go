package domain

import (
	"context"
	"time"
)

// QuoteProvider is the uniform interface the pipeline fetches market data
// through. Implementations translate upstream failures into the error
// sentinels in this package.
type QuoteProvider interface {
	GetUnderlying(ctx context.Context, symbol string) (Underlying, error)
	GetExpirations(ctx context.Context, symbol string) ([]time.Time, error)
	GetChain(ctx context.Context, symbol string, expiration time.Time) ([]OptionContract, error)
}

// PriceSource is a single named upstream data provider.
type PriceSource interface {
	QuoteProvider
	Name() string
}
