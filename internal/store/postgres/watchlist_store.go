package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// WatchlistStore implements domain.WatchlistStore using PostgreSQL.
type WatchlistStore struct {
	db DBTX
}

// NewWatchlistStore creates a WatchlistStore.
func NewWatchlistStore(db DBTX) *WatchlistStore {
	return &WatchlistStore{db: db}
}

// Get returns the watchlist with id.
func (s *WatchlistStore) Get(ctx context.Context, id string) (domain.Watchlist, error) {
	const query = `SELECT id, symbols, updated_at FROM watchlists WHERE id = $1`

	var w domain.Watchlist
	err := s.db.QueryRow(ctx, query, id).Scan(&w.ID, &w.Symbols, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Watchlist{}, fmt.Errorf("postgres: get watchlist %s: %w", id, domain.ErrNotFound)
		}
		return domain.Watchlist{}, fmt.Errorf("postgres: get watchlist %s: %w", id, err)
	}
	return w, nil
}

// SetSymbols replaces the symbols of watchlist id, creating it if needed.
// Symbols are normalized before storage.
func (s *WatchlistStore) SetSymbols(ctx context.Context, id string, symbols []string) (domain.Watchlist, error) {
	const query = `
		INSERT INTO watchlists (id, symbols, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			symbols    = EXCLUDED.symbols,
			updated_at = NOW()
		RETURNING updated_at`

	w := domain.Watchlist{ID: id, Symbols: domain.NormalizeSymbols(symbols)}
	if err := s.db.QueryRow(ctx, query, id, w.Symbols).Scan(&w.UpdatedAt); err != nil {
		return domain.Watchlist{}, fmt.Errorf("postgres: set watchlist %s: %w", id, err)
	}
	return w, nil
}

// List returns every watchlist ordered by id.
func (s *WatchlistStore) List(ctx context.Context) ([]domain.Watchlist, error) {
	rows, err := s.db.Query(ctx, `SELECT id, symbols, updated_at FROM watchlists ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list watchlists: %w", err)
	}
	defer rows.Close()

	var out []domain.Watchlist
	for rows.Next() {
		var w domain.Watchlist
		if err := rows.Scan(&w.ID, &w.Symbols, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan watchlist: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list watchlists rows: %w", err)
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.WatchlistStore = (*WatchlistStore)(nil)
