package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLiquid(t *testing.T) {
	rules := LiquidityRules{MinVolume: 100, MinOpenInterest: 500, MaxSpreadPct: 10, Policy: PolicyAny}

	tests := []struct {
		name     string
		vol, oi  int64
		bid, ask float64
		ok       bool
		reason   string
	}{
		{"open interest alone", 0, 500, 1, 1.05, true, ""},
		{"volume alone", 100, 0, 1, 1.05, true, ""},
		{"zero bid", 1000, 1000, 0, 1.05, false, ReasonNoQuote},
		{"zero ask", 1000, 1000, 1, 0, false, ReasonNoQuote},
		{"crossed", 1000, 1000, 1.1, 1.0, false, ReasonCrossedQuote},
		{"wide spread", 1000, 1000, 1, 1.5, false, ReasonWideSpread},
		{"thin", 99, 499, 1, 1.05, false, ReasonThin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := rules.IsLiquid(tt.vol, tt.oi, tt.bid, tt.ask)
			assert.Equal(t, tt.ok, ok)
			assert.Contains(t, reason, tt.reason)
		})
	}
}

func TestIsLiquidAllPolicy(t *testing.T) {
	rules := LiquidityRules{MinVolume: 100, MinOpenInterest: 500, MaxSpreadPct: 10, Policy: PolicyAll}

	ok, _ := rules.IsLiquid(0, 500, 1, 1.05)
	assert.False(t, ok)
	ok, _ = rules.IsLiquid(100, 500, 1, 1.05)
	assert.True(t, ok)
}

func TestCheckMarksDataQuality(t *testing.T) {
	rules := LiquidityRules{MaxSpreadPct: 10}
	assert.True(t, rules.Check(10, 10, 2, 1).DataQuality)
	assert.False(t, rules.Check(10, 10, 0, 1).DataQuality)
}

func TestSpreadPct(t *testing.T) {
	assert.InDelta(t, 4.878, SpreadPct(1, 1.05), 0.001)
}
