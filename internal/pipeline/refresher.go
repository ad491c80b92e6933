package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// WatchlistRefresher refreshes one watchlist end to end.
type WatchlistRefresher interface {
	RefreshWatchlist(ctx context.Context, watchlistID string) (domain.RefreshSummary, error)
}

// ExpiredPruner removes opportunities whose contracts have expired.
type ExpiredPruner interface {
	DeleteExpired(ctx context.Context, asOf time.Time) (int64, error)
}

// Refresher periodically refreshes a fixed set of watchlists and prunes
// expired opportunities.
type Refresher struct {
	svc        WatchlistRefresher
	pruner     ExpiredPruner
	watchlists []string
	logger     *slog.Logger
	now        func() time.Time
}

// NewRefresher creates a Refresher. pruner may be nil.
func NewRefresher(svc WatchlistRefresher, pruner ExpiredPruner, watchlists []string, logger *slog.Logger) *Refresher {
	return &Refresher{
		svc:        svc,
		pruner:     pruner,
		watchlists: watchlists,
		logger:     logger.With(slog.String("component", "refresher")),
		now:        time.Now,
	}
}

// Run refreshes every watchlist once, sequentially. Units within a refresh
// still fan out across the shared worker pool.
func (r *Refresher) Run(ctx context.Context) {
	for _, id := range r.watchlists {
		if ctx.Err() != nil {
			return
		}
		sum, err := r.svc.RefreshWatchlist(ctx, id)
		if err != nil {
			r.logger.Error("watchlist refresh failed",
				slog.String("watchlist", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		if sum.InProgress {
			r.logger.Info("watchlist refresh already in progress", slog.String("watchlist", id))
			continue
		}
		r.logger.Info("watchlist refreshed",
			slog.String("watchlist", id),
			slog.Int("succeeded", sum.Succeeded),
			slog.Int("failed", sum.Failed),
			slog.Int("skipped", sum.Skipped),
			slog.Int("stored", sum.Stored),
			slog.Int64("duration_ms", sum.DurationMs),
		)
	}

	if r.pruner != nil {
		n, err := r.pruner.DeleteExpired(ctx, r.now())
		if err != nil {
			r.logger.Error("prune expired opportunities failed", slog.String("error", err.Error()))
		} else if n > 0 {
			r.logger.Info("pruned expired opportunities", slog.Int64("count", n))
		}
	}
}

// RunLoop runs the refresher on a repeating interval until the context is
// cancelled.
func (r *Refresher) RunLoop(ctx context.Context, interval time.Duration) error {
	// Run immediately on start.
	r.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Run(ctx)
		}
	}
}
