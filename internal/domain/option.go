package domain

import (
	"fmt"
	"strings"
	"time"
)

// OptionType is the right of an option contract.
type OptionType string

const (
	OptionPut  OptionType = "put"
	OptionCall OptionType = "call"
)

// ParseOptionType accepts "put"/"call" and the single-letter forms.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "put", "p":
		return OptionPut, nil
	case "call", "c":
		return OptionCall, nil
	default:
		return "", fmt.Errorf("unknown option type %q", s)
	}
}

// Underlying is an immutable price snapshot of the stock behind a chain.
type Underlying struct {
	Symbol    string    `json:"symbol"`
	LastPrice float64   `json:"last_price"`
	AsOf      time.Time `json:"as_of"`
}

// OptionContract is one listed contract as returned by a quote provider.
// Greeks are pointers because some providers supply them and some do not.
type OptionContract struct {
	Symbol            string     `json:"symbol"`
	Expiration        time.Time  `json:"expiration"`
	Strike            float64    `json:"strike"`
	OptionType        OptionType `json:"option_type"`
	Bid               float64    `json:"bid"`
	Ask               float64    `json:"ask"`
	Volume            int64      `json:"volume"`
	OpenInterest      int64      `json:"open_interest"`
	ImpliedVolatility float64    `json:"implied_volatility"`
	Delta             *float64   `json:"delta,omitempty"`
	Gamma             *float64   `json:"gamma,omitempty"`
	Theta             *float64   `json:"theta,omitempty"`
	Vega              *float64   `json:"vega,omitempty"`
}

// Mid returns the bid/ask midpoint.
func (c OptionContract) Mid() float64 {
	return (c.Bid + c.Ask) / 2
}

// QuoteDefect reports the first data-quality problem with a quote. ok is
// false when the quote is defective and field names the offending value.
func (c OptionContract) QuoteDefect() (field string, ok bool) {
	switch {
	case c.Bid < 0:
		return "bid", false
	case c.Ask < c.Bid:
		return "ask", false
	}
	return "", true
}

// DateOnly truncates t to midnight UTC on its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from asOf to expiration.
func DaysBetween(asOf, expiration time.Time) int {
	return int(DateOnly(expiration).Sub(DateOnly(asOf)).Hours() / 24)
}
