// Package quote implements the provider adapter the scan pipeline fetches
// market data through: an ordered fallback chain of upstream sources, each
// guarded by its own circuit breaker and call-rate limiter, fronted by the
// run-scoped and shared cache tiers.
package quote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/optionscan/internal/domain"
	"github.com/alanyoungcy/optionscan/internal/metrics"
)

// BreakerSettings configure the per-provider circuit breaker.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// Window is the rolling period after which closed-state counts reset.
	Window time.Duration
	// Cooldown is how long an open breaker skips its provider.
	Cooldown time.Duration
	// HalfOpenRequests is the number of probes allowed after the cooldown.
	HalfOpenRequests uint32
}

// ProviderSettings hold the tuning for one upstream source.
type ProviderSettings struct {
	Breaker BreakerSettings
	// RatePerSecond <= 0 disables rate limiting.
	RatePerSecond float64
	Burst         int
	CallTimeout   time.Duration
}

type provider struct {
	source      domain.PriceSource
	breaker     *gobreaker.CircuitBreaker
	limiter     *rate.Limiter
	callTimeout time.Duration
}

// Adapter implements domain.QuoteProvider over an ordered list of sources.
// The breaker and limiter of each source are shared by every caller and are
// internally synchronized.
type Adapter struct {
	providers []*provider
	logger    *slog.Logger
	metrics   *metrics.Registry
}

// NewAdapter creates an Adapter. sources are tried in order. settings is
// looked up by source name, falling back to the "default" entry.
func NewAdapter(sources []domain.PriceSource, settings map[string]ProviderSettings, logger *slog.Logger, m *metrics.Registry) *Adapter {
	a := &Adapter{
		logger:  logger.With(slog.String("component", "quote_adapter")),
		metrics: m,
	}
	for _, src := range sources {
		ps, ok := settings[src.Name()]
		if !ok {
			ps = settings["default"]
		}
		a.providers = append(a.providers, a.newProvider(src, ps))
	}
	return a
}

func (a *Adapter) newProvider(src domain.PriceSource, ps ProviderSettings) *provider {
	name := src.Name()
	trip := ps.Breaker.ConsecutiveFailures
	if trip == 0 {
		trip = 5
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if ps.RatePerSecond > 0 {
		burst := ps.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ps.RatePerSecond), burst)
	}

	a.metrics.SetBreakerState(name, int(gobreaker.StateClosed))

	return &provider{
		source: src,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: ps.Breaker.HalfOpenRequests,
			Interval:    ps.Breaker.Window,
			Timeout:     ps.Breaker.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= trip
			},
			// A symbol without options says nothing about provider health.
			IsSuccessful: func(err error) bool {
				return err == nil ||
					errors.Is(err, domain.ErrNotFound) ||
					errors.Is(err, domain.ErrNoOptions) ||
					errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				a.logger.Warn("circuit breaker state change",
					slog.String("provider", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
				a.metrics.SetBreakerState(name, int(to))
			},
		}),
		limiter:     limiter,
		callTimeout: ps.CallTimeout,
	}
}

// GetUnderlying returns the latest price of symbol.
func (a *Adapter) GetUnderlying(ctx context.Context, symbol string) (domain.Underlying, error) {
	return call(ctx, a, "underlying", symbol, func(ctx context.Context, src domain.PriceSource) (domain.Underlying, error) {
		return src.GetUnderlying(ctx, symbol)
	})
}

// GetExpirations returns the listed expirations of symbol.
func (a *Adapter) GetExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	return call(ctx, a, "expirations", symbol, func(ctx context.Context, src domain.PriceSource) ([]time.Time, error) {
		return src.GetExpirations(ctx, symbol)
	})
}

// GetChain returns the option chain of symbol for one expiration.
func (a *Adapter) GetChain(ctx context.Context, symbol string, expiration time.Time) ([]domain.OptionContract, error) {
	return call(ctx, a, "chain", symbol, func(ctx context.Context, src domain.PriceSource) ([]domain.OptionContract, error) {
		return src.GetChain(ctx, symbol, expiration)
	})
}

// BreakerStates reports the current breaker state of every provider.
func (a *Adapter) BreakerStates() map[string]string {
	out := make(map[string]string, len(a.providers))
	for _, p := range a.providers {
		out[p.source.Name()] = p.breaker.State().String()
	}
	return out
}

// call walks the fallback chain. Rate-limited, upstream, open-circuit and
// credential failures fall through to the next provider; permanent failures
// such as not-found are returned immediately.
func call[T any](ctx context.Context, a *Adapter, op, symbol string, fn func(context.Context, domain.PriceSource) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	if len(a.providers) == 0 {
		return zero, fmt.Errorf("quote: %s %s: no providers configured: %w", op, symbol, domain.ErrUpstream)
	}

	for _, p := range a.providers {
		name := p.source.Name()

		if p.breaker.State() == gobreaker.StateOpen {
			a.record(ctx, name, op, symbol, 0, domain.ErrCircuitOpen)
			lastErr = fmt.Errorf("quote: %s %s via %s: %w", op, symbol, name, domain.ErrCircuitOpen)
			continue
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("quote: %s %s via %s: rate limit wait: %w", op, symbol, name, err)
		}

		start := time.Now()
		v, err := p.execute(ctx, func(callCtx context.Context) (any, error) {
			return fn(callCtx, p.source)
		})
		if err != nil && ctx.Err() != nil {
			a.record(ctx, name, op, symbol, time.Since(start), ctx.Err())
			return zero, fmt.Errorf("quote: %s %s via %s: %w", op, symbol, name, ctx.Err())
		}
		a.record(ctx, name, op, symbol, time.Since(start), err)

		if err == nil {
			return v.(T), nil
		}
		lastErr = fmt.Errorf("quote: %s %s via %s: %w", op, symbol, name, err)
		if !domain.FallsThrough(err) {
			return zero, lastErr
		}
	}
	return zero, lastErr
}

func (p *provider) execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	callCtx := ctx
	if p.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
	}

	v, err := p.breaker.Execute(func() (any, error) {
		v, err := fn(callCtx)
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			// Per-call timeout with the caller still waiting: a slow
			// upstream, not an abandoned unit.
			return nil, fmt.Errorf("call timeout after %s: %w", p.callTimeout, domain.ErrUpstream)
		}
		return v, err
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, domain.ErrCircuitOpen
	case err != nil:
		return nil, err
	}
	return v, nil
}

func (a *Adapter) record(ctx context.Context, provider, op, symbol string, latency time.Duration, err error) {
	outcome := Outcome(err)
	level := slog.LevelDebug
	if err != nil && outcome != "not_found" {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("provider", provider),
		slog.String("op", op),
		slog.String("symbol", symbol),
		slog.Int64("latency_ms", latency.Milliseconds()),
		slog.String("outcome", outcome),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	a.logger.LogAttrs(ctx, level, "provider call", attrs...)
	a.metrics.ObserveProviderCall(provider, op, outcome, latency)
}

// Outcome names the result of one provider call for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNoOptions):
		return "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream"
	default:
		return "error"
	}
}

// Compile-time interface check.
var _ domain.QuoteProvider = (*Adapter)(nil)
