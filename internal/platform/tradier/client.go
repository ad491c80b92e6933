// Package tradier is a PriceSource backed by the Tradier brokerage market
// data REST API. The bearer token is supplied already provisioned.
package tradier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

const dateLayout = "2006-01-02"

// Config holds connection parameters for the Tradier client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client implements domain.PriceSource.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Tradier client.
//
// baseURL is the API root, e.g. "https://api.tradier.com".
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies the provider in logs, metrics and breaker state.
func (c *Client) Name() string { return "tradier" }

// GetUnderlying returns the last trade price of symbol.
func (c *Client) GetUnderlying(ctx context.Context, symbol string) (domain.Underlying, error) {
	params := url.Values{}
	params.Set("symbols", symbol)

	var resp quotesResponse
	if err := c.doGet(ctx, "/v1/markets/quotes?"+params.Encode(), &resp); err != nil {
		return domain.Underlying{}, fmt.Errorf("tradier: get quote %s: %w", symbol, err)
	}
	if resp.Quotes == nil || len(resp.Quotes.Quote) == 0 {
		return domain.Underlying{}, fmt.Errorf("tradier: get quote %s: %w", symbol, domain.ErrNotFound)
	}

	q := resp.Quotes.Quote[0]
	price := q.Last
	if price <= 0 && q.Bid > 0 && q.Ask > 0 {
		price = (q.Bid + q.Ask) / 2
	}
	if price <= 0 {
		return domain.Underlying{}, fmt.Errorf("tradier: get quote %s: no last price: %w", symbol, domain.ErrBadQuote)
	}

	asOf := time.Now().UTC()
	if q.TradeDate > 0 {
		asOf = time.UnixMilli(q.TradeDate).UTC()
	}
	return domain.Underlying{Symbol: symbol, LastPrice: price, AsOf: asOf}, nil
}

// GetExpirations returns the listed expirations of symbol.
func (c *Client) GetExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("includeAllRoots", "true")

	var resp expirationsResponse
	if err := c.doGet(ctx, "/v1/markets/options/expirations?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("tradier: get expirations %s: %w", symbol, err)
	}
	if resp.Expirations == nil || len(resp.Expirations.Date) == 0 {
		return nil, fmt.Errorf("tradier: get expirations %s: %w", symbol, domain.ErrNoOptions)
	}

	out := make([]time.Time, 0, len(resp.Expirations.Date))
	for _, d := range resp.Expirations.Date {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("tradier: get expirations %s: no parseable dates in %q: %w",
			symbol, resp.Expirations.Date, domain.ErrUpstream)
	}
	return out, nil
}

// GetChain returns the chain of symbol for expiration, with provider Greeks
// requested.
func (c *Client) GetChain(ctx context.Context, symbol string, expiration time.Time) ([]domain.OptionContract, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", expiration.UTC().Format(dateLayout))
	params.Set("greeks", "true")

	var resp chainResponse
	if err := c.doGet(ctx, "/v1/markets/options/chains?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("tradier: get chain %s %s: %w", symbol, expiration.Format(dateLayout), err)
	}
	if resp.Options == nil || len(resp.Options.Option) == 0 {
		return nil, fmt.Errorf("tradier: get chain %s %s: %w", symbol, expiration.Format(dateLayout), domain.ErrNoOptions)
	}

	out := make([]domain.OptionContract, 0, len(resp.Options.Option))
	for _, o := range resp.Options.Option {
		oc, ok := o.toDomain(symbol, expiration)
		if !ok {
			continue
		}
		out = append(out, oc)
	}
	return out, nil
}

func (o apiOption) toDomain(symbol string, expiration time.Time) (domain.OptionContract, bool) {
	typ, err := domain.ParseOptionType(o.OptionType)
	if err != nil {
		return domain.OptionContract{}, false
	}
	exp := domain.DateOnly(expiration)
	if t, err := time.Parse(dateLayout, o.ExpirationDate); err == nil {
		exp = t
	}

	oc := domain.OptionContract{
		Symbol:       symbol,
		Expiration:   exp,
		Strike:       o.Strike,
		OptionType:   typ,
		Bid:          o.Bid,
		Ask:          o.Ask,
		Volume:       o.Volume,
		OpenInterest: o.OpenInterest,
	}
	if g := o.Greeks; g != nil {
		oc.ImpliedVolatility = g.MidIV
		if oc.ImpliedVolatility <= 0 {
			oc.ImpliedVolatility = g.SmvVol
		}
		if g.Delta != 0 {
			delta, gamma, theta, vega := g.Delta, g.Gamma, g.Theta, g.Vega
			oc.Delta, oc.Gamma, oc.Theta, oc.Vega = &delta, &gamma, &theta, &vega
		}
	}
	return oc, true
}

// doGet sends an authenticated GET and decodes the JSON body into dst.
func (c *Client) doGet(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: http request: %w", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", domain.ErrUpstream, err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return fmt.Errorf("%w: decode response: %w", domain.ErrUpstream, err)
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	if len(bodyStr) > 256 {
		bodyStr = bodyStr[:256]
	}
	switch {
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case statusCode >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", domain.ErrUpstream, statusCode, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// Compile-time interface check.
var _ domain.PriceSource = (*Client)(nil)
