// Package export serializes opportunities as delimited records.
package export

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// ContentType is the MIME type of Write output.
const ContentType = "text/csv"

// Row is one CSV record. Column order follows field order.
type Row struct {
	Symbol              string  `csv:"symbol"`
	OptionType          string  `csv:"option_type"`
	Expiration          string  `csv:"expiration"`
	DTE                 int     `csv:"dte"`
	Strike              float64 `csv:"strike"`
	StockPrice          float64 `csv:"stock_price"`
	Premium             float64 `csv:"premium"`
	PremiumPct          float64 `csv:"premium_pct"`
	MonthlyReturn       float64 `csv:"monthly_return"`
	AnnualReturn        float64 `csv:"annual_return"`
	BreakEven           float64 `csv:"break_even"`
	Delta               float64 `csv:"delta"`
	ImpliedVolatility   float64 `csv:"implied_volatility"`
	Gamma               float64 `csv:"gamma"`
	Theta               float64 `csv:"theta"`
	Vega                float64 `csv:"vega"`
	ThetaSqrtTimeApprox float64 `csv:"theta_sqrt_time_approx"`
	Volume              int64   `csv:"volume"`
	OpenInterest        int64   `csv:"open_interest"`
	BidAskSpreadPct     float64 `csv:"bid_ask_spread_pct"`
	LiquidityOK         bool    `csv:"liquidity_ok"`
	Score               int     `csv:"score"`
	ComputedAt          string  `csv:"computed_at"`
	Stale               string  `csv:"stale"`
}

// NewRow flattens o. stale is left blank for opportunities that did not come
// from the store.
func NewRow(o domain.Opportunity, stale *bool) Row {
	r := Row{
		Symbol:              o.Symbol,
		OptionType:          string(o.OptionType),
		Expiration:          o.Expiration.Format(time.DateOnly),
		DTE:                 o.DTE,
		Strike:              o.Strike,
		StockPrice:          o.StockPrice,
		Premium:             o.Premium,
		PremiumPct:          o.PremiumPct,
		MonthlyReturn:       o.MonthlyReturn,
		AnnualReturn:        o.AnnualReturn,
		BreakEven:           o.BreakEven,
		Delta:               o.Delta,
		ImpliedVolatility:   o.ImpliedVolatility,
		Gamma:               o.Gamma,
		Theta:               o.Theta,
		Vega:                o.Vega,
		ThetaSqrtTimeApprox: o.ThetaSqrtTimeApprox,
		Volume:              o.Volume,
		OpenInterest:        o.OpenInterest,
		BidAskSpreadPct:     o.BidAskSpreadPct,
		LiquidityOK:         o.LiquidityOK,
		Score:               o.Score,
		ComputedAt:          o.ComputedAt.UTC().Format(time.RFC3339),
	}
	if stale != nil {
		r.Stale = strconv.FormatBool(*stale)
	}
	return r
}

// WriteOpportunities writes opps with a header row.
func WriteOpportunities(w io.Writer, opps []domain.Opportunity) error {
	rows := make([]Row, len(opps))
	for i, o := range opps {
		rows[i] = NewRow(o, nil)
	}
	return write(w, rows)
}

// WriteStored writes stored opportunities with their stale flag.
func WriteStored(w io.Writer, opps []domain.StoredOpportunity) error {
	rows := make([]Row, len(opps))
	for i, o := range opps {
		stale := o.Stale
		rows[i] = NewRow(o.Opportunity, &stale)
	}
	return write(w, rows)
}

// StoredBytes renders stored opportunities into memory.
func StoredBytes(opps []domain.StoredOpportunity) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteStored(&buf, opps); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func write(w io.Writer, rows []Row) error {
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	return nil
}

// ReadRows parses CSV produced by this package.
func ReadRows(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("export: read csv: %w", err)
	}
	return rows, nil
}
