package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/optionscan/internal/pipeline"
	"github.com/alanyoungcy/optionscan/internal/server"
	"github.com/alanyoungcy/optionscan/internal/server/handler"
)

// ServerMode serves the HTTP API. Refreshes run only when requested.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

// RefreshMode runs the periodic watchlist refresh without an HTTP API.
func (a *App) RefreshMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting refresh mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startRefresher(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

// FullMode serves the HTTP API and runs the periodic refresh, both through
// the same engine and worker pool.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	if a.cfg.RunsRefresher() {
		a.startRefresher(ctx, g, deps)
	} else {
		a.logger.InfoContext(ctx, "refresh.enabled is false; watchlists refresh only on request")
	}
	return ignoreCanceled(g.Wait())
}

func (a *App) startRefresher(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	r := pipeline.NewRefresher(deps.Sync, deps.Opportunities, a.cfg.Refresh.Watchlists, a.logger)
	interval := a.cfg.Refresh.Interval.Duration
	g.Go(func() error {
		return r.RunLoop(ctx, interval)
	})
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	sc := a.cfg.Server
	srv := server.NewServer(server.Config{
		Port:         sc.Port,
		CORSOrigins:  sc.CORSOrigins,
		APIKey:       sc.APIKey,
		RateLimit:    sc.RateLimit,
		RateWindow:   sc.RateWindow.Duration,
		WriteTimeout: sc.WriteTimeout.Duration,
	}, server.Handlers{
		Health:     handler.NewHealthHandler(deps.HealthChecks, deps.Adapter.BreakerStates, a.logger),
		Status:     handler.NewStatusHandler(a.cfg.Mode, a.cfg.Providers.Order, deps.Defaults, time.Now()),
		Scans:      handler.NewScanHandler(deps.Scans, a.logger),
		Watchlists: handler.NewWatchlistHandler(deps.Sync, a.logger),
		Metrics:    deps.Metrics.Handler(),
	}, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown failed", slog.String("error", err.Error()))
			return err
		}
		return nil
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
