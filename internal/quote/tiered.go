package quote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/optionscan/internal/cache/memory"
	"github.com/alanyoungcy/optionscan/internal/domain"
	"github.com/alanyoungcy/optionscan/internal/metrics"
)

// TTLs are the lifetimes of each tier.
type TTLs struct {
	// Run bounds the in-process tier of one scan run.
	Run time.Duration
	// Underlying, Expirations and Chain bound the shared tier.
	Underlying  time.Duration
	Expirations time.Duration
	Chain       time.Duration
}

// Tiered layers the shared cache over an upstream provider. Each scan run
// calls ForRun to get a view with its own in-process tier.
type Tiered struct {
	upstream domain.QuoteProvider
	shared   domain.QuoteCache
	ttl      TTLs
	logger   *slog.Logger
	metrics  *metrics.Registry
}

// NewTiered creates a Tiered provider. shared may be nil.
func NewTiered(upstream domain.QuoteProvider, shared domain.QuoteCache, ttl TTLs, logger *slog.Logger, m *metrics.Registry) *Tiered {
	return &Tiered{
		upstream: upstream,
		shared:   shared,
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "quote_cache")),
		metrics:  m,
	}
}

// RunView is the provider one scan run fetches through. Concurrent requests
// for the same key within the run reach upstream at most once.
type RunView struct {
	t           *Tiered
	underlying  *memory.Cache[domain.Underlying]
	expirations *memory.Cache[[]time.Time]
	chains      *memory.Cache[[]domain.OptionContract]
}

// ForRun returns a fresh run-scoped view.
func (t *Tiered) ForRun() *RunView {
	ttl := t.ttl.Run
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RunView{
		t:           t,
		underlying:  memory.New[domain.Underlying](ttl),
		expirations: memory.New[[]time.Time](ttl),
		chains:      memory.New[[]domain.OptionContract](ttl),
	}
}

// GetUnderlying returns the price snapshot of symbol.
func (v *RunView) GetUnderlying(ctx context.Context, symbol string) (domain.Underlying, error) {
	u, hit, err := v.underlying.GetOrLoad(ctx, symbol, func(ctx context.Context) (domain.Underlying, error) {
		return loadShared(ctx, v.t, "underlying",
			func(ctx context.Context) (domain.Underlying, error) { return v.t.shared.GetUnderlying(ctx, symbol) },
			func(ctx context.Context) (domain.Underlying, error) { return v.t.upstream.GetUnderlying(ctx, symbol) },
			func(ctx context.Context, u domain.Underlying) error {
				return v.t.shared.SetUnderlying(ctx, u, v.t.ttl.Underlying)
			},
		)
	})
	v.t.metrics.CacheLookup("memory", hit)
	return u, err
}

// GetExpirations returns the listed expirations of symbol.
func (v *RunView) GetExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	exps, hit, err := v.expirations.GetOrLoad(ctx, symbol, func(ctx context.Context) ([]time.Time, error) {
		return loadShared(ctx, v.t, "expirations",
			func(ctx context.Context) ([]time.Time, error) { return v.t.shared.GetExpirations(ctx, symbol) },
			func(ctx context.Context) ([]time.Time, error) { return v.t.upstream.GetExpirations(ctx, symbol) },
			func(ctx context.Context, exps []time.Time) error {
				return v.t.shared.SetExpirations(ctx, symbol, exps, v.t.ttl.Expirations)
			},
		)
	})
	v.t.metrics.CacheLookup("memory", hit)
	return exps, err
}

// GetChain returns the chain of symbol for expiration.
func (v *RunView) GetChain(ctx context.Context, symbol string, expiration time.Time) ([]domain.OptionContract, error) {
	key := symbol + ":" + expiration.UTC().Format("2006-01-02")
	chain, hit, err := v.chains.GetOrLoad(ctx, key, func(ctx context.Context) ([]domain.OptionContract, error) {
		return loadShared(ctx, v.t, "chain",
			func(ctx context.Context) ([]domain.OptionContract, error) {
				return v.t.shared.GetChain(ctx, symbol, expiration)
			},
			func(ctx context.Context) ([]domain.OptionContract, error) {
				return v.t.upstream.GetChain(ctx, symbol, expiration)
			},
			func(ctx context.Context, chain []domain.OptionContract) error {
				return v.t.shared.SetChain(ctx, symbol, expiration, chain, v.t.ttl.Chain)
			},
		)
	})
	v.t.metrics.CacheLookup("memory", hit)
	return chain, err
}

// loadShared consults the shared tier, then upstream, writing successful
// upstream results back. Shared-tier errors degrade to an upstream call.
func loadShared[T any](
	ctx context.Context,
	t *Tiered,
	kind string,
	get func(context.Context) (T, error),
	fetch func(context.Context) (T, error),
	put func(context.Context, T) error,
) (T, error) {
	if t.shared == nil {
		return fetch(ctx)
	}

	v, err := get(ctx)
	switch {
	case err == nil:
		t.metrics.CacheLookup("shared", true)
		return v, nil
	case errors.Is(err, domain.ErrNotFound):
		t.metrics.CacheLookup("shared", false)
	default:
		t.metrics.CacheLookup("shared", false)
		t.logger.Warn("shared cache read failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}

	v, err = fetch(ctx)
	if err != nil {
		return v, err
	}
	if err := put(ctx, v); err != nil {
		t.logger.Warn("shared cache write failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
	return v, nil
}

// Compile-time interface check.
var _ domain.QuoteProvider = (*RunView)(nil)
