package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/alanyoungcy/optionscan/internal/analysis"
	"github.com/alanyoungcy/optionscan/internal/domain"
	"github.com/alanyoungcy/optionscan/internal/metrics"
)

// Trigger identifies who started a run.
type Trigger string

const (
	TriggerUser      Trigger = "user"
	TriggerScheduler Trigger = "scheduler"
)

// Sink selects what a run hands back besides the store write.
type Sink int

const (
	// SinkStoreAndReturn stores opportunities and returns them ranked.
	SinkStoreAndReturn Sink = iota
	// SinkStoreOnly stores opportunities and returns counts only.
	SinkStoreOnly
)

// Job describes one submission to the worker pool.
type Job struct {
	Trigger Trigger
	Sink    Sink
}

// Config tunes the orchestrator.
type Config struct {
	// Workers bounds concurrent units across every run sharing the pool.
	Workers         int
	UnitTimeout     time.Duration
	RiskFreeRate    float64
	Tolerances      analysis.Tolerances
	LiquidityPolicy analysis.LiquidityPolicy
	Retry           RetryPolicy
	StoreRetry      RetryPolicy
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Workers:         12,
		UnitTimeout:     30 * time.Second,
		RiskFreeRate:    0.045,
		Tolerances:      analysis.DefaultTolerances(),
		LiquidityPolicy: analysis.PolicyAny,
		Retry:           DefaultRetryPolicy(),
		StoreRetry:      RetryPolicy{MaxAttempts: 3, InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second, Multiplier: 2},
	}
}

// ProviderFactory returns the provider one run fetches through. A run-scoped
// provider lets a run share an in-process cache among its units.
type ProviderFactory func() domain.QuoteProvider

// StaticProvider returns a factory that always yields p.
func StaticProvider(p domain.QuoteProvider) ProviderFactory {
	return func() domain.QuoteProvider { return p }
}

// Orchestrator drives (symbol, target DTE) units through the scan pipeline.
// Interactive scans and background refreshes share one bounded pool.
type Orchestrator struct {
	providers ProviderFactory
	store     domain.OpportunityStore
	scorer    *analysis.Scorer
	pool      *semaphore.Weighted
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Registry
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator. store may be nil, in which case
// units end at SCORED without persisting.
func NewOrchestrator(
	providers ProviderFactory,
	store domain.OpportunityStore,
	scorer *analysis.Scorer,
	cfg Config,
	logger *slog.Logger,
	m *metrics.Registry,
) *Orchestrator {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = def.UnitTimeout
	}
	if len(cfg.Tolerances) == 0 {
		cfg.Tolerances = def.Tolerances
	}
	if cfg.LiquidityPolicy == "" {
		cfg.LiquidityPolicy = def.LiquidityPolicy
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = def.Retry
	}
	if cfg.StoreRetry.MaxAttempts <= 0 {
		cfg.StoreRetry = def.StoreRetry
	}
	return &Orchestrator{
		providers: providers,
		store:     store,
		scorer:    scorer,
		pool:      semaphore.NewWeighted(int64(cfg.Workers)),
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "orchestrator")),
		metrics:   m,
		now:       time.Now,
	}
}

// WithClock overrides the clock used for DTE and ComputedAt.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Run validates req and processes every (symbol, target DTE) unit. Only an
// invalid request returns an error; unit failures are counted in the result.
func (o *Orchestrator) Run(ctx context.Context, req domain.ScanRequest, job Job) (domain.ScanResult, error) {
	if err := req.Validate(); err != nil {
		return domain.ScanResult{}, err
	}

	start := time.Now()
	runID := uuid.NewString()
	asOf := o.now().UTC()
	provider := o.providers()
	rules := analysis.LiquidityRules{
		MinVolume:       req.MinVolume,
		MinOpenInterest: req.MinOpenInterest,
		MaxSpreadPct:    req.MaxBidAskSpreadPct,
		Policy:          o.cfg.LiquidityPolicy,
	}
	logger := o.logger.With(
		slog.String("run_id", runID),
		slog.String("trigger", string(job.Trigger)),
	)
	logger.Info("scan run starting",
		slog.Int("symbols", len(req.Symbols)),
		slog.Int("targets", len(req.TargetDTEs)),
	)

	results := make([]domain.UnitResult, len(req.Symbols)*len(req.TargetDTEs))
	var g errgroup.Group
	i := 0
	for _, sym := range req.Symbols {
		for _, target := range req.TargetDTEs {
			idx := i
			i++
			u := &unit{
				o:        o,
				provider: provider,
				req:      req,
				rules:    rules,
				asOf:     asOf,
				logger:   logger.With(slog.String("symbol", sym), slog.Int("target_dte", target)),
				res:      domain.UnitResult{Symbol: sym, TargetDTE: target, State: domain.StatePending},
			}
			g.Go(func() error {
				if err := o.pool.Acquire(ctx, 1); err != nil {
					u.fail(ctx, fmt.Errorf("pipeline: waiting for worker: %w", err))
					results[idx] = u.res
					return nil
				}
				defer o.pool.Release(1)

				o.metrics.UnitStarted()
				res := u.run(ctx)
				o.metrics.UnitDone()
				o.metrics.UnitOutcome(string(res.State), string(res.Category))
				results[idx] = res
				return nil
			})
		}
	}
	_ = g.Wait()

	out := aggregate(results, job.Sink, req.Limit)
	out.RunID = runID
	out.Duration = time.Since(start)
	out.DurationMs = out.Duration.Milliseconds()
	o.metrics.ScanFinished(string(job.Trigger), out.Duration)

	logger.Info("scan run complete",
		slog.Int("succeeded", out.Succeeded),
		slog.Int("failed", out.Failed),
		slog.Int("skipped", out.Skipped),
		slog.Int("store_failed", out.StoreFailed),
		slog.Int("stored", out.Stored),
		slog.Int64("duration_ms", out.DurationMs),
	)
	return out, nil
}

// aggregate folds unit results into a ScanResult. Failures are grouped by
// category rather than listed per unit.
func aggregate(results []domain.UnitResult, sink Sink, limit int) domain.ScanResult {
	out := domain.ScanResult{Failures: make(map[domain.FailureCategory]int)}
	var opps []domain.Opportunity

	for _, r := range results {
		switch r.State {
		case domain.StateNoMatch, domain.StateFilteredOut:
			out.Succeeded++
		case domain.StateStored:
			out.Succeeded++
			out.Stored += len(r.Opportunities)
		case domain.StateScored:
			if r.StoreFailed {
				out.StoreFailed++
				out.Failures[domain.CategoryStore]++
			} else {
				out.Succeeded++
			}
		case domain.StateSkipped:
			out.Skipped++
			out.Failures[r.Category]++
		case domain.StateFailed:
			out.Failed++
			out.Failures[r.Category]++
		}
		opps = append(opps, r.Opportunities...)
	}

	if sink == SinkStoreAndReturn {
		out.Opportunities = analysis.Top(opps, limit)
		if out.Opportunities == nil {
			out.Opportunities = []domain.Opportunity{}
		}
	}
	if len(out.Failures) == 0 {
		out.Failures = nil
	}
	return out
}
