package analysis

import (
	"sort"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// Rank orders opportunities best first: score, then annual return, then
// symbol, expiration and strike for a stable total order.
func Rank(opps []domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		a, b := opps[i], opps[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.AnnualReturn != b.AnnualReturn {
			return a.AnnualReturn > b.AnnualReturn
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if !a.Expiration.Equal(b.Expiration) {
			return a.Expiration.Before(b.Expiration)
		}
		return a.Strike < b.Strike
	})
}

// Top ranks opps and truncates to limit. limit <= 0 keeps everything.
func Top(opps []domain.Opportunity, limit int) []domain.Opportunity {
	Rank(opps)
	if limit > 0 && len(opps) > limit {
		return opps[:limit]
	}
	return opps
}
