// Package analysis holds the pure per-contract stages of a scan: expiration
// matching, liquidity validation, return normalization and scoring.
package analysis

import (
	"time"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// ToleranceBand allows Tolerance days of slack for targets up to MaxTargetDTE.
// A band with MaxTargetDTE <= 0 matches every target.
type ToleranceBand struct {
	MaxTargetDTE int `toml:"max_target_dte" json:"max_target_dte"`
	Tolerance    int `toml:"tolerance" json:"tolerance"`
}

// Tolerances is an ordered set of bands. Weekly chains are denser than
// monthly ones so short targets get tighter bands.
type Tolerances []ToleranceBand

// DefaultTolerances returns the stock band set.
func DefaultTolerances() Tolerances {
	return Tolerances{
		{MaxTargetDTE: 10, Tolerance: 3},
		{MaxTargetDTE: 21, Tolerance: 5},
		{MaxTargetDTE: 45, Tolerance: 7},
		{MaxTargetDTE: 0, Tolerance: 10},
	}
}

// For returns the tolerance for targetDTE: the tightest bounded band that
// covers the target, else the catch-all band, else the widest band.
func (t Tolerances) For(targetDTE int) int {
	var (
		best, bestLimit int
		found           bool
		catchAll        = -1
		widest          int
	)
	for _, b := range t {
		if b.MaxTargetDTE <= 0 {
			catchAll = b.Tolerance
			continue
		}
		if b.Tolerance > widest {
			widest = b.Tolerance
		}
		if targetDTE <= b.MaxTargetDTE && (!found || b.MaxTargetDTE < bestLimit) {
			best, bestLimit, found = b.Tolerance, b.MaxTargetDTE, true
		}
	}
	switch {
	case found:
		return best
	case catchAll >= 0:
		return catchAll
	}
	return widest
}

// Match is the expiration chosen for a target.
type Match struct {
	Expiration time.Time
	DTE        int
	Distance   int
}

// Closest picks the listed expiration whose DTE is nearest targetDTE. DTE is
// counted in calendar days from asOf and expirations on or before asOf are
// ignored. Equal distances resolve to the earlier expiration. ok is false
// when nothing is within tolerance days of the target.
func Closest(expirations []time.Time, targetDTE int, asOf time.Time, tolerance int) (Match, bool) {
	var (
		best  Match
		found bool
	)
	for _, exp := range expirations {
		dte := domain.DaysBetween(asOf, exp)
		if dte <= 0 {
			continue
		}
		dist := dte - targetDTE
		if dist < 0 {
			dist = -dist
		}
		if dist > tolerance {
			continue
		}
		if !found || dist < best.Distance || (dist == best.Distance && exp.Before(best.Expiration)) {
			best = Match{Expiration: domain.DateOnly(exp), DTE: dte, Distance: dist}
			found = true
		}
	}
	return best, found
}
