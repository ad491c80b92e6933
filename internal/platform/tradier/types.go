package tradier

import (
	"bytes"
	"encoding/json"
)

// oneOrMany decodes Tradier fields that hold a single object when there is
// one result and an array otherwise.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = []T{one}
	return nil
}

type quotesResponse struct {
	Quotes *struct {
		Quote     oneOrMany[apiQuote] `json:"quote"`
		Unmatched json.RawMessage     `json:"unmatched_symbols"`
	} `json:"quotes"`
}

type apiQuote struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	TradeDate int64   `json:"trade_date"`
}

type expirationsResponse struct {
	Expirations *struct {
		Date oneOrMany[string] `json:"date"`
	} `json:"expirations"`
}

type chainResponse struct {
	Options *struct {
		Option oneOrMany[apiOption] `json:"option"`
	} `json:"options"`
}

type apiOption struct {
	Symbol         string     `json:"symbol"`
	Underlying     string     `json:"underlying"`
	Strike         float64    `json:"strike"`
	OptionType     string     `json:"option_type"`
	ExpirationDate string     `json:"expiration_date"`
	Bid            float64    `json:"bid"`
	Ask            float64    `json:"ask"`
	Volume         int64      `json:"volume"`
	OpenInterest   int64      `json:"open_interest"`
	Greeks         *apiGreeks `json:"greeks"`
}

type apiGreeks struct {
	Delta  float64 `json:"delta"`
	Gamma  float64 `json:"gamma"`
	Theta  float64 `json:"theta"`
	Vega   float64 `json:"vega"`
	MidIV  float64 `json:"mid_iv"`
	SmvVol float64 `json:"smv_vol"`
}
