package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// OpportunityKey is the natural key of an Opportunity.
type OpportunityKey struct {
	Symbol     string
	Expiration time.Time
	Strike     float64
	OptionType OptionType
}

// String renders the key in a form suitable for cache keys and logs.
func (k OpportunityKey) String() string {
	return fmt.Sprintf("%s:%s:%.4f:%s", k.Symbol, k.Expiration.Format("2006-01-02"), k.Strike, k.OptionType)
}

// Opportunity is a scored short-option candidate. It is created by one scan
// pass and superseded, never mutated, by the next.
//
// Gamma, Theta and Vega come from the provider or the Black-Scholes
// calculator; zero means they could not be computed. ThetaSqrtTimeApprox is
// the square-root-of-time decay estimate, shown for display and never used
// for filtering or scoring.
type Opportunity struct {
	Symbol              string     `json:"symbol"`
	Expiration          time.Time  `json:"expiration"`
	OptionType          OptionType `json:"option_type"`
	DTE                 int        `json:"dte"`
	Strike              float64    `json:"strike"`
	StockPrice          float64    `json:"stock_price"`
	Premium             float64    `json:"premium"`
	PremiumPct          float64    `json:"premium_pct"`
	MonthlyReturn       float64    `json:"monthly_return"`
	AnnualReturn        float64    `json:"annual_return"`
	BreakEven           float64    `json:"break_even"`
	Delta               float64    `json:"delta"`
	ImpliedVolatility   float64    `json:"implied_volatility"`
	Gamma               float64    `json:"gamma,omitempty"`
	Theta               float64    `json:"theta,omitempty"`
	Vega                float64    `json:"vega,omitempty"`
	ThetaSqrtTimeApprox float64    `json:"theta_sqrt_time_approx,omitempty"`
	Volume              int64      `json:"volume"`
	OpenInterest        int64      `json:"open_interest"`
	BidAskSpreadPct     float64    `json:"bid_ask_spread_pct"`
	LiquidityOK         bool       `json:"liquidity_ok"`
	Score               int        `json:"score"`
	ComputedAt          time.Time  `json:"computed_at"`
}

// Key returns the natural key.
func (o Opportunity) Key() OpportunityKey {
	return OpportunityKey{
		Symbol:     o.Symbol,
		Expiration: DateOnly(o.Expiration),
		Strike:     o.Strike,
		OptionType: o.OptionType,
	}
}

// SamePayload reports whether o and other carry identical fields apart from
// ComputedAt.
func (o Opportunity) SamePayload(other Opportunity) bool {
	a, b := o, other
	a.ComputedAt, b.ComputedAt = time.Time{}, time.Time{}
	a.Expiration, b.Expiration = DateOnly(a.Expiration), DateOnly(b.Expiration)
	return a == b
}

// PayloadHash returns a stable digest of every field except ComputedAt. Two
// opportunities with equal hashes are treated as the same payload by stores.
func (o Opportunity) PayloadHash() string {
	o.ComputedAt = time.Time{}
	o.Expiration = DateOnly(o.Expiration)
	b, _ := json.Marshal(o)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// StoredOpportunity is an Opportunity read back from the persistent tier.
// Stale is set when ComputedAt is older than the store TTL.
type StoredOpportunity struct {
	Opportunity
	Stale bool `json:"stale"`
}

// OpportunityFilter narrows a query against the persistent tier.
type OpportunityFilter struct {
	Symbols      []string
	OptionType   OptionType
	MinScore     int
	MinDTE       int
	MaxDTE       int
	IncludeStale bool
	Limit        int
	Offset       int
}
