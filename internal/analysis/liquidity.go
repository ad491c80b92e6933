package analysis

import (
	"fmt"
	"math"
)

// LiquidityPolicy decides how volume and open interest combine.
type LiquidityPolicy string

const (
	// PolicyAny passes when either volume or open interest is sufficient.
	PolicyAny LiquidityPolicy = "any"
	// PolicyAll requires both.
	PolicyAll LiquidityPolicy = "all"
)

// Rejection reasons.
const (
	ReasonNoQuote      = "no valid quote"
	ReasonCrossedQuote = "crossed quote"
	ReasonWideSpread   = "spread too wide"
	ReasonThin         = "insufficient volume and open interest"
)

// LiquidityRules are the thresholds a contract must clear.
type LiquidityRules struct {
	MinVolume       int64
	MinOpenInterest int64
	MaxSpreadPct    float64
	Policy          LiquidityPolicy
}

// LiquidityCheck is the detailed verdict of Check.
type LiquidityCheck struct {
	OK        bool
	Reason    string
	SpreadPct float64
	// DataQuality marks rejections caused by a malformed quote rather than
	// a thin market.
	DataQuality bool
}

// IsLiquid reports whether the quote is tradable, with a human-readable
// reason when it is not.
func (r LiquidityRules) IsLiquid(volume, openInterest int64, bid, ask float64) (bool, string) {
	c := r.Check(volume, openInterest, bid, ask)
	return c.OK, c.Reason
}

// Check applies the rules in order: quote presence, crossed quote, spread,
// then volume and open interest.
func (r LiquidityRules) Check(volume, openInterest int64, bid, ask float64) LiquidityCheck {
	if !(bid > 0) || !(ask > 0) {
		return LiquidityCheck{Reason: ReasonNoQuote}
	}
	if ask < bid {
		return LiquidityCheck{Reason: ReasonCrossedQuote, DataQuality: true}
	}

	spread := SpreadPct(bid, ask)
	if spread > r.MaxSpreadPct {
		return LiquidityCheck{
			Reason:    fmt.Sprintf("%s: %.2f%% > %.2f%%", ReasonWideSpread, spread, r.MaxSpreadPct),
			SpreadPct: spread,
		}
	}

	volOK := volume >= r.MinVolume
	oiOK := openInterest >= r.MinOpenInterest
	pass := volOK || oiOK
	if r.Policy == PolicyAll {
		pass = volOK && oiOK
	}
	if !pass {
		return LiquidityCheck{
			Reason:    fmt.Sprintf("%s: volume %d/%d, open interest %d/%d", ReasonThin, volume, r.MinVolume, openInterest, r.MinOpenInterest),
			SpreadPct: spread,
		}
	}
	return LiquidityCheck{OK: true, SpreadPct: spread}
}

// SpreadPct is the bid/ask spread as a percentage of the midpoint.
func SpreadPct(bid, ask float64) float64 {
	mid := (bid + ask) / 2
	if mid <= 0 {
		return math.Inf(1)
	}
	return (ask - bid) / mid * 100
}
