package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/optionscan/internal/domain"
	"github.com/alanyoungcy/optionscan/internal/notify"
	"github.com/alanyoungcy/optionscan/internal/pipeline"
)

// SyncConfig tunes background refreshes.
type SyncConfig struct {
	// LockTTL bounds how long a crashed refresh can block the next one.
	LockTTL time.Duration
	// NotifyMinScore is the score a refresh's best opportunity must reach
	// to send a top-opportunities notification.
	NotifyMinScore int
	// NotifyTop is how many opportunities that notification lists.
	NotifyTop int
}

// SyncService runs unattended watchlist refreshes through the same pool as
// interactive scans, writing results to the store only.
type SyncService struct {
	scanner    Scanner
	watchlists domain.WatchlistStore
	runs       domain.RefreshRunStore
	store      domain.OpportunityStore
	locks      domain.LockManager
	notifier   *notify.Notifier
	defaults   domain.ScanRequest
	cfg        SyncConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewSyncService creates a SyncService. notifier may be nil.
func NewSyncService(
	scanner Scanner,
	watchlists domain.WatchlistStore,
	runs domain.RefreshRunStore,
	store domain.OpportunityStore,
	locks domain.LockManager,
	notifier *notify.Notifier,
	defaults domain.ScanRequest,
	cfg SyncConfig,
	logger *slog.Logger,
) *SyncService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.NotifyTop <= 0 {
		cfg.NotifyTop = 5
	}
	return &SyncService{
		scanner:    scanner,
		watchlists: watchlists,
		runs:       runs,
		store:      store,
		locks:      locks,
		notifier:   notifier,
		defaults:   defaults,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "sync_service")),
		now:        time.Now,
	}
}

// ListSymbols returns the symbols of a watchlist.
func (s *SyncService) ListSymbols(ctx context.Context, watchlistID string) ([]string, error) {
	w, err := s.watchlists.Get(ctx, watchlistID)
	if err != nil {
		return nil, fmt.Errorf("sync_service: list symbols %s: %w", watchlistID, err)
	}
	return domain.NormalizeSymbols(w.Symbols), nil
}

// RefreshWatchlist scans every symbol of the watchlist and stores the
// results. It is safe to call repeatedly: a call that finds another refresh
// of the same watchlist running returns at once with InProgress set.
func (s *SyncService) RefreshWatchlist(ctx context.Context, watchlistID string) (domain.RefreshSummary, error) {
	started := s.now().UTC()

	symbols, err := s.ListSymbols(ctx, watchlistID)
	if err != nil {
		return domain.RefreshSummary{}, err
	}

	unlock, err := s.locks.Acquire(ctx, "refresh:"+watchlistID, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.RefreshSummary{WatchlistID: watchlistID, InProgress: true, StartedAt: started}, nil
		}
		return domain.RefreshSummary{}, fmt.Errorf("sync_service: refresh %s: %w", watchlistID, err)
	}
	defer unlock()

	sum := domain.RefreshSummary{WatchlistID: watchlistID, StartedAt: started}
	if len(symbols) == 0 {
		s.logger.InfoContext(ctx, "watchlist is empty", slog.String("watchlist", watchlistID))
		s.record(ctx, sum)
		return sum, nil
	}

	req := WithDefaults(domain.ScanRequest{Symbols: symbols}, s.defaults)
	req, err = domain.NewScanRequest(req)
	if err != nil {
		return domain.RefreshSummary{}, fmt.Errorf("sync_service: refresh %s: %w", watchlistID, err)
	}

	res, err := s.scanner.Run(ctx, req, pipeline.Job{Trigger: pipeline.TriggerScheduler, Sink: pipeline.SinkStoreOnly})
	if err != nil {
		return domain.RefreshSummary{}, fmt.Errorf("sync_service: refresh %s: %w", watchlistID, err)
	}

	sum.RunID = res.RunID
	sum.Succeeded = res.Succeeded
	sum.Failed = res.Failed
	sum.Skipped = res.Skipped
	sum.StoreFailed = res.StoreFailed
	sum.Stored = res.Stored
	sum.Failures = res.Failures
	sum.DurationMs = res.DurationMs

	s.record(ctx, sum)
	s.notify(ctx, sum, symbols)
	return sum, nil
}

// ListRuns returns recorded refreshes newest first.
func (s *SyncService) ListRuns(ctx context.Context, opts domain.ListOpts) ([]domain.RefreshRun, error) {
	runs, err := s.runs.ListRecent(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sync_service: list runs: %w", err)
	}
	return runs, nil
}

// GetWatchlist returns a watchlist.
func (s *SyncService) GetWatchlist(ctx context.Context, id string) (domain.Watchlist, error) {
	w, err := s.watchlists.Get(ctx, id)
	if err != nil {
		return domain.Watchlist{}, fmt.Errorf("sync_service: get watchlist %s: %w", id, err)
	}
	return w, nil
}

// SetWatchlist replaces the symbols of a watchlist.
func (s *SyncService) SetWatchlist(ctx context.Context, id string, symbols []string) (domain.Watchlist, error) {
	if id == "" {
		return domain.Watchlist{}, fmt.Errorf("sync_service: set watchlist: %w: empty id", domain.ErrInvalidRequest)
	}
	w, err := s.watchlists.SetSymbols(ctx, id, symbols)
	if err != nil {
		return domain.Watchlist{}, fmt.Errorf("sync_service: set watchlist %s: %w", id, err)
	}
	return w, nil
}

func (s *SyncService) record(ctx context.Context, sum domain.RefreshSummary) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Record(ctx, sum); err != nil {
		s.logger.WarnContext(ctx, "record refresh run failed",
			slog.String("watchlist", sum.WatchlistID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SyncService) notify(ctx context.Context, sum domain.RefreshSummary, symbols []string) {
	if sum.Failed+sum.StoreFailed > 0 && s.notifier.Enabled(notify.EventRefreshFailed) {
		title, msg := notify.RefreshFailed(sum)
		if err := s.notifier.Notify(ctx, notify.EventRefreshFailed, title, msg); err != nil {
			s.logger.WarnContext(ctx, "refresh failure notification failed", slog.String("error", err.Error()))
		}
	}

	if sum.Stored == 0 || !s.notifier.Enabled(notify.EventTopOpportunities) {
		return
	}
	top, err := s.store.Query(ctx, domain.OpportunityFilter{
		Symbols:  symbols,
		MinScore: s.cfg.NotifyMinScore,
		Limit:    s.cfg.NotifyTop,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "top opportunities query failed", slog.String("error", err.Error()))
		return
	}
	if len(top) == 0 {
		return
	}

	opps := make([]domain.Opportunity, len(top))
	for i, o := range top {
		opps[i] = o.Opportunity
	}
	title, msg := notify.TopOpportunities(sum.WatchlistID, opps)
	if err := s.notifier.Notify(ctx, notify.EventTopOpportunities, title, msg); err != nil {
		s.logger.WarnContext(ctx, "top opportunities notification failed", slog.String("error", err.Error()))
	}
}
