package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// upsertOpportunity replaces the row for a natural key only when the payload
// changed and the incoming record is not older than the stored one. No row
// comes back when nothing was written.
const upsertOpportunity = `
	INSERT INTO opportunities (
		symbol, expiration, strike, option_type, dte,
		stock_price, premium, premium_pct, monthly_return, annual_return,
		break_even, delta, implied_volatility, volume, open_interest,
		bid_ask_spread_pct, liquidity_ok, score, payload_hash, computed_at,
		gamma, theta, vega, theta_sqrt_time_approx
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20,
		$21, $22, $23, $24
	)
	ON CONFLICT (symbol, expiration, strike, option_type) DO UPDATE SET
		dte                = EXCLUDED.dte,
		stock_price        = EXCLUDED.stock_price,
		premium            = EXCLUDED.premium,
		premium_pct        = EXCLUDED.premium_pct,
		monthly_return     = EXCLUDED.monthly_return,
		annual_return      = EXCLUDED.annual_return,
		break_even         = EXCLUDED.break_even,
		delta              = EXCLUDED.delta,
		implied_volatility = EXCLUDED.implied_volatility,
		volume             = EXCLUDED.volume,
		open_interest      = EXCLUDED.open_interest,
		bid_ask_spread_pct = EXCLUDED.bid_ask_spread_pct,
		liquidity_ok       = EXCLUDED.liquidity_ok,
		score              = EXCLUDED.score,
		gamma              = EXCLUDED.gamma,
		theta              = EXCLUDED.theta,
		vega               = EXCLUDED.vega,
		theta_sqrt_time_approx = EXCLUDED.theta_sqrt_time_approx,
		payload_hash       = EXCLUDED.payload_hash,
		computed_at        = EXCLUDED.computed_at
	WHERE opportunities.payload_hash IS DISTINCT FROM EXCLUDED.payload_hash
	  AND opportunities.computed_at <= EXCLUDED.computed_at
	RETURNING (xmax = 0) AS inserted`

const opportunityColumns = `
	symbol, expiration, strike, option_type, dte,
	stock_price, premium, premium_pct, monthly_return, annual_return,
	break_even, delta, implied_volatility, volume, open_interest,
	bid_ask_spread_pct, liquidity_ok, score, computed_at,
	gamma, theta, vega, theta_sqrt_time_approx`

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	db  DBTX
	ttl time.Duration
	now func() time.Time
}

// NewOpportunityStore creates an OpportunityStore. Rows older than ttl are
// reported stale on read.
func NewOpportunityStore(db DBTX, ttl time.Duration) *OpportunityStore {
	return &OpportunityStore{db: db, ttl: ttl, now: time.Now}
}

func upsertArgs(o domain.Opportunity) []any {
	return []any{
		o.Symbol, domain.DateOnly(o.Expiration), o.Strike, string(o.OptionType), o.DTE,
		o.StockPrice, o.Premium, o.PremiumPct, o.MonthlyReturn, o.AnnualReturn,
		o.BreakEven, o.Delta, o.ImpliedVolatility, o.Volume, o.OpenInterest,
		o.BidAskSpreadPct, o.LiquidityOK, o.Score, o.PayloadHash(), o.ComputedAt.UTC(),
		o.Gamma, o.Theta, o.Vega, o.ThetaSqrtTimeApprox,
	}
}

func upsertOutcome(row pgx.Row) (domain.UpsertOutcome, error) {
	var inserted bool
	if err := row.Scan(&inserted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.UpsertUnchanged, nil
		}
		return "", err
	}
	if inserted {
		return domain.UpsertInserted, nil
	}
	return domain.UpsertUpdated, nil
}

// Upsert writes one opportunity by natural key.
func (s *OpportunityStore) Upsert(ctx context.Context, o domain.Opportunity) (domain.UpsertOutcome, error) {
	out, err := upsertOutcome(s.db.QueryRow(ctx, upsertOpportunity, upsertArgs(o)...))
	if err != nil {
		return "", fmt.Errorf("postgres: upsert opportunity %s: %w: %w", o.Key(), domain.ErrStoreWrite, err)
	}
	return out, nil
}

// UpsertBatch writes opportunities in one round trip and returns how many
// rows were inserted or updated.
func (s *OpportunityStore) UpsertBatch(ctx context.Context, opps []domain.Opportunity) (int, error) {
	if len(opps) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, o := range opps {
		batch.Queue(upsertOpportunity, upsertArgs(o)...)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	written := 0
	for i, o := range opps {
		out, err := upsertOutcome(br.QueryRow())
		if err != nil {
			return written, fmt.Errorf("postgres: upsert opportunity batch item %d (%s): %w: %w", i, o.Key(), domain.ErrStoreWrite, err)
		}
		if out != domain.UpsertUnchanged {
			written++
		}
	}
	return written, nil
}

// Get returns the stored opportunity for key.
func (s *OpportunityStore) Get(ctx context.Context, key domain.OpportunityKey) (domain.StoredOpportunity, error) {
	query := `SELECT` + opportunityColumns + `
		FROM opportunities
		WHERE symbol = $1 AND expiration = $2 AND strike = $3 AND option_type = $4`

	row := s.db.QueryRow(ctx, query, key.Symbol, domain.DateOnly(key.Expiration), key.Strike, string(key.OptionType))
	o, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StoredOpportunity{}, fmt.Errorf("postgres: get opportunity %s: %w", key, domain.ErrNotFound)
		}
		return domain.StoredOpportunity{}, fmt.Errorf("postgres: get opportunity %s: %w", key, err)
	}
	return s.stored(o), nil
}

// Query returns stored opportunities best first.
func (s *OpportunityStore) Query(ctx context.Context, f domain.OpportunityFilter) ([]domain.StoredOpportunity, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Symbols) > 0 {
		where = append(where, "symbol = ANY("+arg(domain.NormalizeSymbols(f.Symbols))+")")
	}
	if f.OptionType != "" {
		where = append(where, "option_type = "+arg(string(f.OptionType)))
	}
	if f.MinScore > 0 {
		where = append(where, "score >= "+arg(f.MinScore))
	}
	if f.MinDTE > 0 {
		where = append(where, "dte >= "+arg(f.MinDTE))
	}
	if f.MaxDTE > 0 {
		where = append(where, "dte <= "+arg(f.MaxDTE))
	}
	if !f.IncludeStale && s.ttl > 0 {
		where = append(where, "computed_at >= "+arg(s.now().Add(-s.ttl).UTC()))
	}

	query := `SELECT` + opportunityColumns + ` FROM opportunities`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY score DESC, annual_return DESC, symbol, expiration, strike"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.StoredOpportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		out = append(out, s.stored(o))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query opportunities rows: %w", err)
	}
	return out, nil
}

// DeleteExpired removes opportunities whose expiration is before asOf.
func (s *OpportunityStore) DeleteExpired(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM opportunities WHERE expiration < $1`, domain.DateOnly(asOf))
	if err != nil {
		return 0, fmt.Errorf("postgres: delete expired opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *OpportunityStore) stored(o domain.Opportunity) domain.StoredOpportunity {
	stale := s.ttl > 0 && s.now().Sub(o.ComputedAt) > s.ttl
	return domain.StoredOpportunity{Opportunity: o, Stale: stale}
}

func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var (
		o   domain.Opportunity
		typ string
	)
	err := row.Scan(
		&o.Symbol, &o.Expiration, &o.Strike, &typ, &o.DTE,
		&o.StockPrice, &o.Premium, &o.PremiumPct, &o.MonthlyReturn, &o.AnnualReturn,
		&o.BreakEven, &o.Delta, &o.ImpliedVolatility, &o.Volume, &o.OpenInterest,
		&o.BidAskSpreadPct, &o.LiquidityOK, &o.Score, &o.ComputedAt,
		&o.Gamma, &o.Theta, &o.Vega, &o.ThetaSqrtTimeApprox,
	)
	if err != nil {
		return domain.Opportunity{}, err
	}
	o.OptionType = domain.OptionType(typ)
	o.Expiration = domain.DateOnly(o.Expiration)
	return o, nil
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
