package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// DeltaRange bounds the accepted delta of a contract, inclusive.
type DeltaRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether d lies inside the range.
func (r DeltaRange) Contains(d float64) bool {
	return d >= r.Min && d <= r.Max
}

// ScanRequest is the immutable configuration of one scan. Construct it with
// NewScanRequest or call Validate before use.
type ScanRequest struct {
	Symbols            []string   `json:"symbols"`
	TargetDTEs         []int      `json:"target_dtes"`
	OptionType         OptionType `json:"option_type"`
	DeltaRange         DeltaRange `json:"delta_range"`
	MinVolume          int64      `json:"min_volume"`
	MinOpenInterest    int64      `json:"min_open_interest"`
	MaxBidAskSpreadPct float64    `json:"max_bid_ask_spread_pct"`
	MaxStockPrice      *float64   `json:"max_stock_price,omitempty"`
	MinPremiumPct      *float64   `json:"min_premium_pct,omitempty"`
	Limit              int        `json:"limit,omitempty"`
}

// NewScanRequest normalizes symbols (upper-case, trimmed, de-duplicated) and
// target DTEs (de-duplicated, ascending order preserved by first appearance),
// then validates the result.
func NewScanRequest(req ScanRequest) (ScanRequest, error) {
	out := req
	out.Symbols = NormalizeSymbols(req.Symbols)

	seen := make(map[int]bool, len(req.TargetDTEs))
	out.TargetDTEs = make([]int, 0, len(req.TargetDTEs))
	for _, d := range req.TargetDTEs {
		if seen[d] {
			continue
		}
		seen[d] = true
		out.TargetDTEs = append(out.TargetDTEs, d)
	}
	if out.OptionType == "" {
		out.OptionType = OptionPut
	}

	if err := out.Validate(); err != nil {
		return ScanRequest{}, err
	}
	return out, nil
}

// Validate reports every configuration problem at once. It performs no I/O.
func (r ScanRequest) Validate() error {
	var errs []error

	if len(r.Symbols) == 0 {
		errs = append(errs, errors.New("symbols must not be empty"))
	}
	if len(r.TargetDTEs) == 0 {
		errs = append(errs, errors.New("target_dtes must not be empty"))
	}
	for _, d := range r.TargetDTEs {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("target dte %d must be > 0", d))
		}
	}
	if r.OptionType != OptionPut && r.OptionType != OptionCall {
		errs = append(errs, fmt.Errorf("option_type %q must be put or call", r.OptionType))
	}
	if isBad(r.DeltaRange.Min) || isBad(r.DeltaRange.Max) {
		errs = append(errs, errors.New("delta_range bounds must be finite"))
	} else {
		if r.DeltaRange.Min > r.DeltaRange.Max {
			errs = append(errs, fmt.Errorf("delta_range min %.4f exceeds max %.4f", r.DeltaRange.Min, r.DeltaRange.Max))
		}
		if r.DeltaRange.Min < -1 || r.DeltaRange.Max > 1 {
			errs = append(errs, errors.New("delta_range must lie within [-1, 1]"))
		}
	}
	if r.MinVolume < 0 {
		errs = append(errs, errors.New("min_volume must be >= 0"))
	}
	if r.MinOpenInterest < 0 {
		errs = append(errs, errors.New("min_open_interest must be >= 0"))
	}
	if isBad(r.MaxBidAskSpreadPct) || r.MaxBidAskSpreadPct <= 0 {
		errs = append(errs, errors.New("max_bid_ask_spread_pct must be > 0"))
	}
	if r.MaxStockPrice != nil && (isBad(*r.MaxStockPrice) || *r.MaxStockPrice <= 0) {
		errs = append(errs, errors.New("max_stock_price must be > 0 when set"))
	}
	if r.MinPremiumPct != nil && (isBad(*r.MinPremiumPct) || *r.MinPremiumPct < 0) {
		errs = append(errs, errors.New("min_premium_pct must be >= 0 when set"))
	}
	if r.Limit < 0 {
		errs = append(errs, errors.New("limit must be >= 0"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
	}
	return nil
}

func isBad(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// NormalizeSymbols upper-cases, trims and de-duplicates symbols, dropping
// empty entries. Order of first appearance is kept.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// UnitState is a step of the per-(symbol, target DTE) pipeline.
type UnitState string

const (
	StatePending       UnitState = "PENDING"
	StateFetchingChain UnitState = "FETCHING_CHAIN"
	StateMatched       UnitState = "MATCHED"
	StateNoMatch       UnitState = "NO_MATCH"
	StatePricing       UnitState = "PRICING"
	StateFiltering     UnitState = "FILTERING"
	StateFilteredOut   UnitState = "FILTERED_OUT"
	StateAccepted      UnitState = "ACCEPTED"
	StateScored        UnitState = "SCORED"
	StateStored        UnitState = "STORED"
	StateSkipped       UnitState = "SKIPPED"
	StateFailed        UnitState = "FAILED"
)

// Terminal reports whether no further transition can follow s.
func (s UnitState) Terminal() bool {
	switch s {
	case StateNoMatch, StateFilteredOut, StateStored, StateSkipped, StateFailed:
		return true
	}
	return false
}

// UnitResult is the outcome of one (symbol, target DTE) unit of work.
type UnitResult struct {
	Symbol        string          `json:"symbol"`
	TargetDTE     int             `json:"target_dte"`
	State         UnitState       `json:"state"`
	Expiration    *time.Time      `json:"expiration,omitempty"`
	Category      FailureCategory `json:"category,omitempty"`
	Err           error           `json:"-"`
	Opportunities []Opportunity   `json:"-"`
	StoreFailed   bool            `json:"store_failed,omitempty"`
	Attempts      int             `json:"attempts"`
}

// ScanResult is the best-effort outcome of a scan. Opportunities are ranked.
type ScanResult struct {
	RunID         string                  `json:"run_id"`
	Opportunities []Opportunity           `json:"opportunities"`
	Succeeded     int                     `json:"succeeded"`
	Failed        int                     `json:"failed"`
	Skipped       int                     `json:"skipped"`
	StoreFailed   int                     `json:"store_failed"`
	Stored        int                     `json:"stored"`
	Failures      map[FailureCategory]int `json:"failures,omitempty"`
	Duration      time.Duration           `json:"-"`
	DurationMs    int64                   `json:"duration_ms"`
}

// RefreshSummary reports one background refresh of a watchlist.
type RefreshSummary struct {
	RunID       string                  `json:"run_id"`
	WatchlistID string                  `json:"watchlist_id"`
	Succeeded   int                     `json:"succeeded"`
	Failed      int                     `json:"failed"`
	Skipped     int                     `json:"skipped"`
	StoreFailed int                     `json:"store_failed"`
	Stored      int                     `json:"stored"`
	Failures    map[FailureCategory]int `json:"failures,omitempty"`
	DurationMs  int64                   `json:"duration_ms"`
	InProgress  bool                    `json:"in_progress,omitempty"`
	StartedAt   time.Time               `json:"started_at"`
}
