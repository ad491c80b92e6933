package analysis

import (
	"fmt"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// Returns are the normalized income figures of one short option.
type Returns struct {
	PremiumPct    float64
	DailyReturn   float64
	MonthlyReturn float64
	AnnualReturn  float64
	BreakEven     float64
}

// ComputeReturns normalizes a cash-secured put premium against its strike.
// All percentages are in percent units.
func ComputeReturns(strike, premium float64, dte int) (Returns, error) {
	return normalize(strike, premium, strike-premium, dte)
}

// ComputeCoveredCallReturns normalizes a covered call premium against the
// stock price paid for the shares backing it.
func ComputeCoveredCallReturns(stockPrice, premium float64, dte int) (Returns, error) {
	return normalize(stockPrice, premium, stockPrice-premium, dte)
}

func normalize(basis, premium, breakEven float64, dte int) (Returns, error) {
	if dte <= 0 {
		return Returns{}, fmt.Errorf("analysis: dte %d: %w", dte, domain.ErrInvalidDTE)
	}
	if !(basis > 0) {
		return Returns{}, fmt.Errorf("analysis: basis %.4f: %w", basis, domain.ErrBadQuote)
	}
	if premium < 0 {
		return Returns{}, fmt.Errorf("analysis: premium %.4f: %w", premium, domain.ErrBadQuote)
	}

	pct := premium / basis * 100
	daily := pct / float64(dte)
	monthly := daily * 30
	return Returns{
		PremiumPct:    pct,
		DailyReturn:   daily,
		MonthlyReturn: monthly,
		AnnualReturn:  monthly * 365 / 30,
		BreakEven:     breakEven,
	}, nil
}
