package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// UpsertOutcome reports what an upsert did to a single row.
type UpsertOutcome string

const (
	UpsertInserted  UpsertOutcome = "inserted"
	UpsertUpdated   UpsertOutcome = "updated"
	UpsertUnchanged UpsertOutcome = "unchanged"
)

// OpportunityStore persists computed opportunities keyed by
// (symbol, expiration, strike, option type).
type OpportunityStore interface {
	Upsert(ctx context.Context, opp Opportunity) (UpsertOutcome, error)
	UpsertBatch(ctx context.Context, opps []Opportunity) (int, error)
	Get(ctx context.Context, key OpportunityKey) (StoredOpportunity, error)
	Query(ctx context.Context, filter OpportunityFilter) ([]StoredOpportunity, error)
	DeleteExpired(ctx context.Context, asOf time.Time) (int64, error)
}

// Watchlist is a named set of symbols refreshed in the background.
type Watchlist struct {
	ID        string    `json:"id"`
	Symbols   []string  `json:"symbols"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WatchlistStore persists watchlists.
type WatchlistStore interface {
	Get(ctx context.Context, id string) (Watchlist, error)
	SetSymbols(ctx context.Context, id string, symbols []string) (Watchlist, error)
	List(ctx context.Context) ([]Watchlist, error)
}

// RefreshRun is one recorded background refresh.
type RefreshRun struct {
	ID      int64          `json:"id"`
	Summary RefreshSummary `json:"summary"`
}

// RefreshRunStore persists an append-only log of refresh runs.
type RefreshRunStore interface {
	Record(ctx context.Context, summary RefreshSummary) error
	ListRecent(ctx context.Context, opts ListOpts) ([]RefreshRun, error)
}
