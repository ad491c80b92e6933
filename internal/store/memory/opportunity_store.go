// Package memory provides in-process implementations of the domain stores.
// They back the CLI one-shot mode and tests, and share the upsert semantics
// of the PostgreSQL stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/optionscan/internal/analysis"
	"github.com/alanyoungcy/optionscan/internal/domain"
)

type opportunityRow struct {
	opp  domain.Opportunity
	hash string
}

// OpportunityStore implements domain.OpportunityStore in memory.
type OpportunityStore struct {
	mu   sync.RWMutex
	rows map[domain.OpportunityKey]opportunityRow
	ttl  time.Duration
	now  func() time.Time
}

// NewOpportunityStore creates an empty OpportunityStore. Rows older than ttl
// are reported stale on read.
func NewOpportunityStore(ttl time.Duration) *OpportunityStore {
	return &OpportunityStore{
		rows: make(map[domain.OpportunityKey]opportunityRow),
		ttl:  ttl,
		now:  time.Now,
	}
}

// WithClock overrides the clock used for staleness.
func (s *OpportunityStore) WithClock(now func() time.Time) *OpportunityStore {
	s.now = now
	return s
}

// Upsert writes one opportunity by natural key. A replay of the same payload
// is a no-op and an older record never replaces a newer one.
func (s *OpportunityStore) Upsert(ctx context.Context, o domain.Opportunity) (domain.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("memory: upsert opportunity %s: %w: %w", o.Key(), domain.ErrStoreWrite, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(o), nil
}

func (s *OpportunityStore) upsertLocked(o domain.Opportunity) domain.UpsertOutcome {
	o.Expiration = domain.DateOnly(o.Expiration)
	key := o.Key()
	hash := o.PayloadHash()

	cur, ok := s.rows[key]
	switch {
	case !ok:
		s.rows[key] = opportunityRow{opp: o, hash: hash}
		return domain.UpsertInserted
	case cur.hash == hash, o.ComputedAt.Before(cur.opp.ComputedAt):
		return domain.UpsertUnchanged
	default:
		s.rows[key] = opportunityRow{opp: o, hash: hash}
		return domain.UpsertUpdated
	}
}

// UpsertBatch writes every opportunity under one lock and returns how many
// rows were inserted or updated.
func (s *OpportunityStore) UpsertBatch(ctx context.Context, opps []domain.Opportunity) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("memory: upsert opportunity batch: %w: %w", domain.ErrStoreWrite, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for _, o := range opps {
		if s.upsertLocked(o) != domain.UpsertUnchanged {
			written++
		}
	}
	return written, nil
}

// Get returns the stored opportunity for key.
func (s *OpportunityStore) Get(_ context.Context, key domain.OpportunityKey) (domain.StoredOpportunity, error) {
	key.Expiration = domain.DateOnly(key.Expiration)

	s.mu.RLock()
	row, ok := s.rows[key]
	s.mu.RUnlock()
	if !ok {
		return domain.StoredOpportunity{}, fmt.Errorf("memory: get opportunity %s: %w", key, domain.ErrNotFound)
	}
	return s.stored(row.opp), nil
}

// Query returns stored opportunities best first.
func (s *OpportunityStore) Query(_ context.Context, f domain.OpportunityFilter) ([]domain.StoredOpportunity, error) {
	symbols := make(map[string]struct{}, len(f.Symbols))
	for _, sym := range domain.NormalizeSymbols(f.Symbols) {
		symbols[sym] = struct{}{}
	}

	s.mu.RLock()
	matched := make([]domain.Opportunity, 0, len(s.rows))
	for _, row := range s.rows {
		o := row.opp
		if len(symbols) > 0 {
			if _, ok := symbols[o.Symbol]; !ok {
				continue
			}
		}
		if f.OptionType != "" && o.OptionType != f.OptionType {
			continue
		}
		if o.Score < f.MinScore {
			continue
		}
		if f.MinDTE > 0 && o.DTE < f.MinDTE {
			continue
		}
		if f.MaxDTE > 0 && o.DTE > f.MaxDTE {
			continue
		}
		if !f.IncludeStale && s.isStale(o) {
			continue
		}
		matched = append(matched, o)
	}
	s.mu.RUnlock()

	analysis.Rank(matched)

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[f.Offset:]
		}
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	out := make([]domain.StoredOpportunity, len(matched))
	for i, o := range matched {
		out[i] = s.stored(o)
	}
	return out, nil
}

// DeleteExpired removes opportunities whose expiration is before asOf.
func (s *OpportunityStore) DeleteExpired(_ context.Context, asOf time.Time) (int64, error) {
	cutoff := domain.DateOnly(asOf)

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, row := range s.rows {
		if row.opp.Expiration.Before(cutoff) {
			delete(s.rows, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored rows.
func (s *OpportunityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *OpportunityStore) isStale(o domain.Opportunity) bool {
	return s.ttl > 0 && s.now().Sub(o.ComputedAt) > s.ttl
}

func (s *OpportunityStore) stored(o domain.Opportunity) domain.StoredOpportunity {
	return domain.StoredOpportunity{Opportunity: o, Stale: s.isStale(o)}
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// WatchlistStore implements domain.WatchlistStore in memory.
type WatchlistStore struct {
	mu    sync.RWMutex
	lists map[string]domain.Watchlist
	now   func() time.Time
}

// NewWatchlistStore creates an empty WatchlistStore.
func NewWatchlistStore() *WatchlistStore {
	return &WatchlistStore{lists: make(map[string]domain.Watchlist), now: time.Now}
}

// Get returns the watchlist with id.
func (s *WatchlistStore) Get(_ context.Context, id string) (domain.Watchlist, error) {
	s.mu.RLock()
	w, ok := s.lists[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Watchlist{}, fmt.Errorf("memory: get watchlist %s: %w", id, domain.ErrNotFound)
	}
	w.Symbols = append([]string(nil), w.Symbols...)
	return w, nil
}

// SetSymbols replaces the symbols of watchlist id, creating it if needed.
func (s *WatchlistStore) SetSymbols(_ context.Context, id string, symbols []string) (domain.Watchlist, error) {
	w := domain.Watchlist{ID: id, Symbols: domain.NormalizeSymbols(symbols), UpdatedAt: s.now().UTC()}

	s.mu.Lock()
	s.lists[id] = w
	s.mu.Unlock()

	w.Symbols = append([]string(nil), w.Symbols...)
	return w, nil
}

// List returns every watchlist ordered by id.
func (s *WatchlistStore) List(_ context.Context) ([]domain.Watchlist, error) {
	s.mu.RLock()
	out := make([]domain.Watchlist, 0, len(s.lists))
	for _, w := range s.lists {
		w.Symbols = append([]string(nil), w.Symbols...)
		out = append(out, w)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Compile-time interface check.
var _ domain.WatchlistStore = (*WatchlistStore)(nil)

// RefreshRunStore implements domain.RefreshRunStore in memory.
type RefreshRunStore struct {
	mu   sync.Mutex
	runs []domain.RefreshRun
}

// NewRefreshRunStore creates an empty RefreshRunStore.
func NewRefreshRunStore() *RefreshRunStore {
	return &RefreshRunStore{}
}

// Record appends one refresh summary.
func (s *RefreshRunStore) Record(_ context.Context, sum domain.RefreshSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, domain.RefreshRun{ID: int64(len(s.runs) + 1), Summary: sum})
	return nil
}

// ListRecent returns refresh runs newest first.
func (s *RefreshRunStore) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.RefreshRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.RefreshRun
	for i := len(s.runs) - 1; i >= 0; i-- {
		r := s.runs[i]
		if opts.Since != nil && r.Summary.StartedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && r.Summary.StartedAt.After(*opts.Until) {
			continue
		}
		out = append(out, r)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.RefreshRunStore = (*RefreshRunStore)(nil)
