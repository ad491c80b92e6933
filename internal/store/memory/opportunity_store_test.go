package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

var now = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func opp(symbol string, strike float64, score int, computed time.Time) domain.Opportunity {
	return domain.Opportunity{
		Symbol:       symbol,
		Expiration:   time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		OptionType:   domain.OptionPut,
		DTE:          31,
		Strike:       strike,
		StockPrice:   100,
		Premium:      1.5,
		AnnualReturn: 18.6,
		Score:        score,
		ComputedAt:   computed,
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewOpportunityStore(time.Hour).WithClock(func() time.Time { return now })

	o := opp("ABC", 95, 57, now)
	out, err := s.Upsert(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertInserted, out)

	// Same payload, later timestamp.
	replay := o
	replay.ComputedAt = now.Add(time.Minute)
	out, err = s.Upsert(ctx, replay)
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertUnchanged, out)
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(ctx, o.Key())
	require.NoError(t, err)
	assert.Equal(t, now, got.ComputedAt)
}

func TestUpsertLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewOpportunityStore(time.Hour).WithClock(func() time.Time { return now })

	newer := opp("ABC", 95, 60, now)
	_, err := s.Upsert(ctx, newer)
	require.NoError(t, err)

	older := opp("ABC", 95, 40, now.Add(-time.Minute))
	out, err := s.Upsert(ctx, older)
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertUnchanged, out)

	update := opp("ABC", 95, 65, now.Add(time.Minute))
	out, err = s.Upsert(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, domain.UpsertUpdated, out)

	got, err := s.Get(ctx, newer.Key())
	require.NoError(t, err)
	assert.Equal(t, 65, got.Score)
}

func TestUpsertBatchCountsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewOpportunityStore(time.Hour)

	batch := []domain.Opportunity{opp("ABC", 95, 57, now), opp("ABC", 90, 50, now), opp("XYZ", 40, 44, now)}
	n, err := s.UpsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.UpsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsertCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOpportunityStore(time.Hour).Upsert(ctx, opp("ABC", 95, 57, now))
	assert.ErrorIs(t, err, domain.ErrStoreWrite)
}

func TestQueryFiltersAndRanks(t *testing.T) {
	ctx := context.Background()
	s := NewOpportunityStore(30 * time.Minute).WithClock(func() time.Time { return now })

	_, err := s.UpsertBatch(ctx, []domain.Opportunity{
		opp("ABC", 95, 57, now),
		opp("ABC", 90, 70, now),
		opp("XYZ", 40, 80, now.Add(-2*time.Hour)),
		opp("DEF", 20, 30, now),
	})
	require.NoError(t, err)

	got, err := s.Query(ctx, domain.OpportunityFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 70, got[0].Score)
	assert.Equal(t, 57, got[1].Score)

	got, err = s.Query(ctx, domain.OpportunityFilter{IncludeStale: true, MinScore: 50})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "XYZ", got[0].Symbol)
	assert.True(t, got[0].Stale)

	got, err = s.Query(ctx, domain.OpportunityFilter{Symbols: []string{"abc"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 90.0, got[0].Strike)
}

func TestGetNotFound(t *testing.T) {
	_, err := NewOpportunityStore(time.Hour).Get(context.Background(), opp("ABC", 95, 0, now).Key())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := NewOpportunityStore(time.Hour)
	_, err := s.Upsert(ctx, opp("ABC", 95, 57, now))
	require.NoError(t, err)

	n, err := s.DeleteExpired(ctx, time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.DeleteExpired(ctx, time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, s.Len())
}

func TestWatchlistStore(t *testing.T) {
	ctx := context.Background()
	s := NewWatchlistStore()

	_, err := s.Get(ctx, "core")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	w, err := s.SetSymbols(ctx, "core", []string{"xyz", " ABC", "xyz"})
	require.NoError(t, err)
	assert.Equal(t, []string{"XYZ", "ABC"}, w.Symbols)

	_, err = s.SetSymbols(ctx, "alt", []string{"DEF"})
	require.NoError(t, err)

	lists, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, "alt", lists[0].ID)
}

func TestRefreshRunStoreNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewRefreshRunStore()
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.Record(ctx, domain.RefreshSummary{RunID: id, StartedAt: now.Add(time.Duration(i) * time.Minute)}))
	}

	runs, err := s.ListRecent(ctx, domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].Summary.RunID)
	assert.Equal(t, int64(3), runs[0].ID)

	since := now.Add(90 * time.Second)
	runs, err = s.ListRecent(ctx, domain.ListOpts{Since: &since})
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
