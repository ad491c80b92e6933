package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// RefreshRunStore implements domain.RefreshRunStore as an append-only log.
type RefreshRunStore struct {
	db DBTX
}

// NewRefreshRunStore creates a RefreshRunStore.
func NewRefreshRunStore(db DBTX) *RefreshRunStore {
	return &RefreshRunStore{db: db}
}

// Record appends one refresh summary. Failures are stored as JSONB.
func (s *RefreshRunStore) Record(ctx context.Context, sum domain.RefreshSummary) error {
	failuresJSON, err := json.Marshal(sum.Failures)
	if err != nil {
		return fmt.Errorf("postgres: marshal refresh failures: %w", err)
	}

	const query = `
		INSERT INTO refresh_runs (
			run_id, watchlist_id, succeeded, failed, skipped,
			store_failed, stored, failures, duration_ms, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.db.Exec(ctx, query,
		sum.RunID, sum.WatchlistID, sum.Succeeded, sum.Failed, sum.Skipped,
		sum.StoreFailed, sum.Stored, failuresJSON, sum.DurationMs, sum.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: record refresh run %s: %w", sum.RunID, err)
	}
	return nil
}

// ListRecent returns refresh runs newest first with optional time filtering.
func (s *RefreshRunStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.RefreshRun, error) {
	query := `
		SELECT id, run_id, watchlist_id, succeeded, failed, skipped,
		       store_failed, stored, failures, duration_ms, started_at
		FROM refresh_runs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND started_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND started_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list refresh runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RefreshRun
	for rows.Next() {
		var (
			r            domain.RefreshRun
			failuresJSON []byte
		)
		sum := &r.Summary
		if err := rows.Scan(
			&r.ID, &sum.RunID, &sum.WatchlistID, &sum.Succeeded, &sum.Failed, &sum.Skipped,
			&sum.StoreFailed, &sum.Stored, &failuresJSON, &sum.DurationMs, &sum.StartedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan refresh run: %w", err)
		}
		if len(failuresJSON) > 0 {
			if err := json.Unmarshal(failuresJSON, &sum.Failures); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal refresh failures: %w", err)
			}
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list refresh runs rows: %w", err)
	}
	return runs, nil
}

// Compile-time interface check.
var _ domain.RefreshRunStore = (*RefreshRunStore)(nil)
