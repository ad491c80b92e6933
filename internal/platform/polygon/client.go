// Package polygon is a PriceSource backed by the Polygon.io REST API.
package polygon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	polygonrest "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// Config holds connection parameters for the Polygon client.
type Config struct {
	APIKey string
	// ChainPageSize bounds each snapshot page. Zero uses 250.
	ChainPageSize int
}

// Client implements domain.PriceSource.
type Client struct {
	rest     *polygonrest.Client
	pageSize int
}

// New creates a Polygon client with an already-provisioned API key.
func New(cfg Config) *Client {
	size := cfg.ChainPageSize
	if size <= 0 {
		size = 250
	}
	return &Client{rest: polygonrest.New(cfg.APIKey), pageSize: size}
}

// Name identifies the provider in logs, metrics and breaker state.
func (c *Client) Name() string { return "polygon" }

// GetUnderlying returns the last trade price of symbol.
func (c *Client) GetUnderlying(ctx context.Context, symbol string) (domain.Underlying, error) {
	res, err := c.rest.GetLastTrade(ctx, &models.GetLastTradeParams{Ticker: symbol})
	if err != nil {
		return domain.Underlying{}, fmt.Errorf("polygon: last trade %s: %w", symbol, mapError(ctx, err))
	}
	if res.Results.Price <= 0 {
		return domain.Underlying{}, fmt.Errorf("polygon: last trade %s: %w", symbol, domain.ErrNotFound)
	}
	return domain.Underlying{Symbol: symbol, LastPrice: res.Results.Price, AsOf: time.Now().UTC()}, nil
}

// GetExpirations returns the distinct expirations of unexpired contracts on
// symbol.
func (c *Client) GetExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	params := models.ListOptionsContractsParams{}.
		WithUnderlyingTicker(models.EQ, symbol).
		WithExpired(false).
		WithLimit(1000)

	seen := make(map[time.Time]bool)
	var out []time.Time
	iter := c.rest.ListOptionsContracts(ctx, params)
	for iter.Next() {
		exp := domain.DateOnly(time.Time(iter.Item().ExpirationDate))
		if seen[exp] {
			continue
		}
		seen[exp] = true
		out = append(out, exp)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("polygon: list contracts %s: %w", symbol, mapError(ctx, err))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("polygon: list contracts %s: %w", symbol, domain.ErrNoOptions)
	}
	return out, nil
}

// GetChain returns the snapshot chain of symbol for one expiration.
func (c *Client) GetChain(ctx context.Context, symbol string, expiration time.Time) ([]domain.OptionContract, error) {
	params := models.ListOptionsChainParams{UnderlyingAsset: symbol}.
		WithExpirationDate(models.EQ, models.Date(domain.DateOnly(expiration))).
		WithLimit(c.pageSize)

	var out []domain.OptionContract
	iter := c.rest.ListOptionsChainSnapshot(ctx, params)
	for iter.Next() {
		if oc, ok := toContract(symbol, iter.Item()); ok {
			out = append(out, oc)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("polygon: chain %s %s: %w", symbol, expiration.Format("2006-01-02"), mapError(ctx, err))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("polygon: chain %s %s: %w", symbol, expiration.Format("2006-01-02"), domain.ErrNoOptions)
	}
	return out, nil
}

func toContract(symbol string, s models.OptionContractSnapshot) (domain.OptionContract, bool) {
	typ, err := domain.ParseOptionType(string(s.Details.ContractType))
	if err != nil {
		return domain.OptionContract{}, false
	}
	oc := domain.OptionContract{
		Symbol:            symbol,
		Expiration:        domain.DateOnly(time.Time(s.Details.ExpirationDate)),
		Strike:            s.Details.StrikePrice,
		OptionType:        typ,
		Bid:               s.LastQuote.Bid,
		Ask:               s.LastQuote.Ask,
		Volume:            int64(s.Day.Volume),
		OpenInterest:      int64(s.OpenInterest),
		ImpliedVolatility: s.ImpliedVolatility,
	}
	if g := s.Greeks; g.Delta != 0 {
		delta, gamma, theta, vega := g.Delta, g.Gamma, g.Theta, g.Vega
		oc.Delta, oc.Gamma, oc.Theta, oc.Vega = &delta, &gamma, &theta, &vega
	}
	return oc, true
}

// mapError translates client-go errors into domain sentinels.
func mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *models.ErrorResponse
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %w", domain.ErrNotFound, err)
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
		case apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
		}
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstream, err)
}

// Compile-time interface check.
var _ domain.PriceSource = (*Client)(nil)
