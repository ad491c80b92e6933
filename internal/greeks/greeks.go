// Package greeks computes Black-Scholes sensitivities for European options.
// Every function is pure. Inputs that cannot be priced yield ok == false,
// which callers must treat as "exclude", never as zero.
package greeks

import "math"

// Greeks holds the first-order sensitivities of one contract. Theta is per
// calendar day and Vega is per one volatility point.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
}

// Inputs are the pricing inputs of one contract.
type Inputs struct {
	Spot          float64
	Strike        float64
	YearsToExpiry float64
	RiskFreeRate  float64
	ImpliedVol    float64
	IsPut         bool
}

// Priceable reports whether the inputs can be priced.
func (in Inputs) Priceable() bool {
	return in.YearsToExpiry > 0 && in.ImpliedVol > 0 && in.Spot > 0 && in.Strike > 0 &&
		!math.IsNaN(in.YearsToExpiry) && !math.IsNaN(in.ImpliedVol) &&
		!math.IsInf(in.Spot, 0) && !math.IsInf(in.Strike, 0)
}

// Delta returns the Black-Scholes delta rounded to 4 decimal digits.
func Delta(spot, strike, yearsToExpiry, riskFreeRate, impliedVol float64, isPut bool) (float64, bool) {
	in := Inputs{Spot: spot, Strike: strike, YearsToExpiry: yearsToExpiry, RiskFreeRate: riskFreeRate, ImpliedVol: impliedVol, IsPut: isPut}
	if !in.Priceable() {
		return 0, false
	}
	nd1 := normCDF(d1(in))
	if isPut {
		return Round(nd1-1, 4), true
	}
	return Round(nd1, 4), true
}

// Compute returns delta, gamma, theta and vega, each rounded to 4 decimal
// digits.
func Compute(in Inputs) (Greeks, bool) {
	if !in.Priceable() {
		return Greeks{}, false
	}

	sqrtT := math.Sqrt(in.YearsToExpiry)
	d1 := d1(in)
	d2 := d1 - in.ImpliedVol*sqrtT
	pdf := normPDF(d1)
	disc := math.Exp(-in.RiskFreeRate * in.YearsToExpiry)

	var g Greeks
	decay := -(in.Spot * pdf * in.ImpliedVol) / (2 * sqrtT)
	if in.IsPut {
		g.Delta = normCDF(d1) - 1
		g.Theta = (decay + in.RiskFreeRate*in.Strike*disc*normCDF(-d2)) / 365
	} else {
		g.Delta = normCDF(d1)
		g.Theta = (decay - in.RiskFreeRate*in.Strike*disc*normCDF(d2)) / 365
	}
	g.Gamma = pdf / (in.Spot * in.ImpliedVol * sqrtT)
	g.Vega = in.Spot * sqrtT * pdf / 100

	g.Delta = Round(g.Delta, 4)
	g.Gamma = Round(g.Gamma, 4)
	g.Theta = Round(g.Theta, 4)
	g.Vega = Round(g.Vega, 4)
	return g, true
}

// SqrtTimeThetaApprox estimates daily time decay of an option worth premium
// with dte days left, assuming extrinsic value shrinks with the square root
// of time. It is a rough display figure and is not used for filtering.
func SqrtTimeThetaApprox(premium float64, dte int) (float64, bool) {
	if dte <= 0 || premium <= 0 {
		return 0, false
	}
	return Round(-premium/(2*float64(dte)), 4), true
}

// YearsToExpiry converts calendar days to a year fraction.
func YearsToExpiry(dte int) float64 {
	return float64(dte) / 365
}

// Round rounds x to the given number of decimal digits.
func Round(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}

func d1(in Inputs) float64 {
	return (math.Log(in.Spot/in.Strike) + (in.RiskFreeRate+0.5*in.ImpliedVol*in.ImpliedVol)*in.YearsToExpiry) /
		(in.ImpliedVol * math.Sqrt(in.YearsToExpiry))
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
