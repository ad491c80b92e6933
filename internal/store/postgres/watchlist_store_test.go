package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

func TestWatchlistSetSymbolsNormalizes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	updated := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO watchlists`).
		WithArgs("core", []string{"ABC", "XYZ"}).
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(updated))

	w, err := NewWatchlistStore(mock).SetSymbols(context.Background(), "core", []string{" abc", "XYZ", "abc", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "XYZ"}, w.Symbols)
	assert.Equal(t, updated, w.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWatchlistGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, symbols, updated_at FROM watchlists WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = NewWatchlistStore(mock).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefreshRunRecord(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO refresh_runs`).
		WithArgs(anyArgs(10)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewRefreshRunStore(mock).Record(context.Background(), domain.RefreshSummary{
		RunID:       "r1",
		WatchlistID: "core",
		Succeeded:   4,
		Failed:      1,
		Failures:    map[domain.FailureCategory]int{domain.CategoryTransient: 1},
		StartedAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
