package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/optionscan/internal/analysis"
	s3blob "github.com/alanyoungcy/optionscan/internal/blob/s3"
	cachemem "github.com/alanyoungcy/optionscan/internal/cache/memory"
	"github.com/alanyoungcy/optionscan/internal/cache/redis"
	"github.com/alanyoungcy/optionscan/internal/config"
	"github.com/alanyoungcy/optionscan/internal/domain"
	"github.com/alanyoungcy/optionscan/internal/metrics"
	"github.com/alanyoungcy/optionscan/internal/notify"
	"github.com/alanyoungcy/optionscan/internal/pipeline"
	"github.com/alanyoungcy/optionscan/internal/platform/polygon"
	"github.com/alanyoungcy/optionscan/internal/platform/tradier"
	"github.com/alanyoungcy/optionscan/internal/quote"
	"github.com/alanyoungcy/optionscan/internal/server/handler"
	"github.com/alanyoungcy/optionscan/internal/service"
	memstore "github.com/alanyoungcy/optionscan/internal/store/memory"
	"github.com/alanyoungcy/optionscan/internal/store/postgres"
)

// Dependencies bundles every dependency the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Metrics *metrics.Registry

	// Quotes
	Adapter *quote.Adapter
	Quotes  *quote.Tiered

	// Stores
	Opportunities domain.OpportunityStore
	Watchlists    domain.WatchlistStore
	Runs          domain.RefreshRunStore

	// Coordination
	Locks       domain.LockManager
	RateLimiter domain.RateLimiter // nil without redis

	// Blob storage, nil when s3 is disabled.
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader

	Notifier *notify.Notifier

	Orchestrator *pipeline.Orchestrator
	Defaults     domain.ScanRequest

	Scans *service.ScanService
	Sync  *service.SyncService

	// HealthChecks probe each external dependency.
	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Metrics:      metrics.New(),
		HealthChecks: map[string]handler.HealthCheck{},
	}
	storeTTL := cfg.Cache.StoreTTL.Duration

	// --- PostgreSQL, or in-process stores ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.Opportunities = postgres.NewOpportunityStore(pool, storeTTL)
		deps.Watchlists = postgres.NewWatchlistStore(pool)
		deps.Runs = postgres.NewRefreshRunStore(pool)
		deps.HealthChecks["postgres"] = pgClient.Ping
	} else {
		logger.Warn("wire: postgres disabled, using in-process stores")
		deps.Opportunities = memstore.NewOpportunityStore(storeTTL)
		deps.Watchlists = memstore.NewWatchlistStore()
		deps.Runs = memstore.NewRefreshRunStore()
	}

	// --- Redis ---
	var shared domain.QuoteCache
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		shared = redis.NewQuoteCache(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	} else {
		logger.Warn("wire: redis disabled, refresh locks are process-local")
		deps.Locks = cachemem.NewLocks()
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Quote providers ---
	sources, err := buildSources(cfg)
	if err != nil {
		return fail(err)
	}
	deps.Adapter = quote.NewAdapter(sources, providerSettings(cfg.Providers), logger, deps.Metrics)
	deps.Quotes = quote.NewTiered(deps.Adapter, shared, quote.TTLs{
		Run:         cfg.Cache.RunTTL.Duration,
		Underlying:  cfg.Cache.UnderlyingTTL.Duration,
		Expirations: cfg.Cache.ExpirationsTTL.Duration,
		Chain:       cfg.Cache.ChainTTL.Duration,
	}, logger, deps.Metrics)

	// --- Engine ---
	scorer := analysis.NewScorer(cfg.Scoring.Weights, cfg.Scoring.Params)
	deps.Orchestrator = pipeline.NewOrchestrator(
		func() domain.QuoteProvider { return deps.Quotes.ForRun() },
		deps.Opportunities,
		scorer,
		pipelineConfig(cfg.Scan),
		logger,
		deps.Metrics,
	)
	deps.Defaults = scanDefaults(cfg.Scan.Defaults)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	deps.Scans = service.NewScanService(
		deps.Orchestrator, deps.Opportunities,
		deps.BlobWriter, deps.BlobReader, cfg.S3.ExportPrefix,
		deps.Defaults, logger,
	)
	deps.Sync = service.NewSyncService(
		deps.Orchestrator, deps.Watchlists, deps.Runs, deps.Opportunities,
		deps.Locks, deps.Notifier, deps.Defaults,
		service.SyncConfig{
			LockTTL:        cfg.Refresh.LockTTL.Duration,
			NotifyMinScore: cfg.Notify.MinScore,
			NotifyTop:      cfg.Notify.Top,
		},
		logger,
	)

	if err := seedWatchlists(ctx, deps.Watchlists, cfg.Refresh.Seed, logger); err != nil {
		return fail(err)
	}

	return deps, cleanup, nil
}

// buildSources returns the enabled price sources in the configured order.
func buildSources(cfg *config.Config) ([]domain.PriceSource, error) {
	var sources []domain.PriceSource
	for _, name := range cfg.Providers.Order {
		switch name {
		case "tradier":
			if cfg.Tradier.Enabled {
				sources = append(sources, tradier.New(tradier.Config{
					BaseURL: cfg.Tradier.BaseURL,
					Token:   cfg.Tradier.Token,
					Timeout: cfg.Tradier.Timeout.Duration,
				}))
			}
		case "polygon":
			if cfg.Polygon.Enabled {
				sources = append(sources, polygon.New(polygon.Config{
					APIKey:        cfg.Polygon.APIKey,
					ChainPageSize: cfg.Polygon.ChainPageSize,
				}))
			}
		default:
			return nil, fmt.Errorf("wire: unknown provider %q", name)
		}
	}
	if len(sources) == 0 {
		return nil, errors.New("wire: no quote provider enabled")
	}
	return sources, nil
}

func providerSettings(pc config.ProvidersConfig) map[string]quote.ProviderSettings {
	out := map[string]quote.ProviderSettings{"default": tuning(pc.Default)}
	for name, t := range pc.Tuning {
		out[name] = tuning(t)
	}
	return out
}

func tuning(t config.ProviderTuning) quote.ProviderSettings {
	return quote.ProviderSettings{
		Breaker: quote.BreakerSettings{
			ConsecutiveFailures: t.FailureThreshold,
			Window:              t.Window.Duration,
			Cooldown:            t.Cooldown.Duration,
			HalfOpenRequests:    t.HalfOpenRequests,
		},
		RatePerSecond: t.RatePerSecond,
		Burst:         t.Burst,
		CallTimeout:   t.CallTimeout.Duration,
	}
}

func pipelineConfig(sc config.ScanConfig) pipeline.Config {
	return pipeline.Config{
		Workers:         sc.Workers,
		UnitTimeout:     sc.UnitTimeout.Duration,
		RiskFreeRate:    sc.RiskFreeRate,
		Tolerances:      analysis.Tolerances(sc.Tolerances),
		LiquidityPolicy: analysis.LiquidityPolicy(sc.LiquidityPolicy),
		Retry:           retryPolicy(sc.Retry),
		StoreRetry:      retryPolicy(sc.StoreRetry),
	}
}

func retryPolicy(rc config.RetryConfig) pipeline.RetryPolicy {
	return pipeline.RetryPolicy{
		MaxAttempts:     rc.MaxAttempts,
		InitialInterval: rc.InitialInterval.Duration,
		MaxInterval:     rc.MaxInterval.Duration,
		Multiplier:      rc.Multiplier,
	}
}

// scanDefaults converts configured defaults into the request template merged
// into every scan. Zero optional thresholds stay unset.
func scanDefaults(d config.ScanDefaults) domain.ScanRequest {
	req := domain.ScanRequest{
		TargetDTEs:         append([]int(nil), d.TargetDTEs...),
		OptionType:         domain.OptionType(d.OptionType),
		DeltaRange:         domain.DeltaRange{Min: d.DeltaMin, Max: d.DeltaMax},
		MinVolume:          d.MinVolume,
		MinOpenInterest:    d.MinOpenInterest,
		MaxBidAskSpreadPct: d.MaxBidAskSpreadPct,
		Limit:              d.Limit,
	}
	if d.MaxStockPrice > 0 {
		v := d.MaxStockPrice
		req.MaxStockPrice = &v
	}
	if d.MinPremiumPct > 0 {
		v := d.MinPremiumPct
		req.MinPremiumPct = &v
	}
	return req
}

// seedWatchlists creates configured watchlists that do not exist yet.
// Existing watchlists are left alone so API edits survive restarts.
func seedWatchlists(ctx context.Context, store domain.WatchlistStore, seed map[string][]string, logger *slog.Logger) error {
	for id, symbols := range seed {
		_, err := store.Get(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("wire: seed watchlist %s: %w", id, err)
		}
		if _, err := store.SetSymbols(ctx, id, symbols); err != nil {
			return fmt.Errorf("wire: seed watchlist %s: %w", id, err)
		}
		logger.Info("wire: seeded watchlist",
			slog.String("watchlist", id),
			slog.Int("symbols", len(symbols)),
		)
	}
	return nil
}
