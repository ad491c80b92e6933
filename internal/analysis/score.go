package analysis

import (
	"math"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

// Weights are the relative contributions of the four score components. They
// are rescaled to sum to 100.
type Weights struct {
	Return     float64 `toml:"return" json:"return"`
	Liquidity  float64 `toml:"liquidity" json:"liquidity"`
	Risk       float64 `toml:"risk" json:"risk"`
	Efficiency float64 `toml:"efficiency" json:"efficiency"`
}

// DefaultWeights returns 40/30/20/10.
func DefaultWeights() Weights {
	return Weights{Return: 40, Liquidity: 30, Risk: 20, Efficiency: 10}
}

func (w Weights) sum() float64 {
	return w.Return + w.Liquidity + w.Risk + w.Efficiency
}

// ScoreParams are the saturation points of each component.
type ScoreParams struct {
	// ReturnCeiling is the monthly return (percent) past which credit grows
	// only asymptotically.
	ReturnCeiling float64 `toml:"return_ceiling" json:"return_ceiling"`
	// VolumeSaturation and OpenInterestSaturation are the contract counts
	// that earn full liquidity credit.
	VolumeSaturation       float64 `toml:"volume_saturation" json:"volume_saturation"`
	OpenInterestSaturation float64 `toml:"open_interest_saturation" json:"open_interest_saturation"`
	// DeltaCeiling is the |delta| at which risk credit reaches zero.
	DeltaCeiling float64 `toml:"delta_ceiling" json:"delta_ceiling"`
	// EfficiencySaturation is the monthly-return-per-day that earns full
	// efficiency credit.
	EfficiencySaturation float64 `toml:"efficiency_saturation" json:"efficiency_saturation"`
}

// DefaultScoreParams returns the stock saturation points.
func DefaultScoreParams() ScoreParams {
	return ScoreParams{
		ReturnCeiling:          3.0,
		VolumeSaturation:       1000,
		OpenInterestSaturation: 5000,
		DeltaCeiling:           0.5,
		EfficiencySaturation:   0.1,
	}
}

// Scorer ranks opportunities by a weighted blend of return, liquidity, risk
// and efficiency.
type Scorer struct {
	weights Weights
	params  ScoreParams
}

// NewScorer creates a Scorer. Zero-valued params fall back to defaults.
func NewScorer(weights Weights, params ScoreParams) *Scorer {
	def := DefaultScoreParams()
	if params.ReturnCeiling <= 0 {
		params.ReturnCeiling = def.ReturnCeiling
	}
	if params.VolumeSaturation <= 0 {
		params.VolumeSaturation = def.VolumeSaturation
	}
	if params.OpenInterestSaturation <= 0 {
		params.OpenInterestSaturation = def.OpenInterestSaturation
	}
	if params.DeltaCeiling <= 0 {
		params.DeltaCeiling = def.DeltaCeiling
	}
	if params.EfficiencySaturation <= 0 {
		params.EfficiencySaturation = def.EfficiencySaturation
	}
	return &Scorer{weights: weights, params: params}
}

// Components are the per-factor sub-scores, each in [0,1].
type Components struct {
	Return     float64
	Liquidity  float64
	Risk       float64
	Efficiency float64
}

// Components returns the clamped sub-scores of opp.
func (s *Scorer) Components(opp domain.Opportunity) Components {
	return Components{
		Return:     unit(s.returnComponent(opp.MonthlyReturn)),
		Liquidity:  unit(s.liquidityComponent(opp.Volume, opp.OpenInterest)),
		Risk:       unit(s.riskComponent(opp.Delta)),
		Efficiency: unit(s.efficiencyComponent(opp.MonthlyReturn, opp.DTE)),
	}
}

// Score returns an integer in [0,100]. It never fails.
func (s *Scorer) Score(opp domain.Opportunity) int {
	total := s.weights.sum()
	if !(total > 0) || math.IsInf(total, 0) {
		return 0
	}
	c := s.Components(opp)
	raw := (s.weights.Return*c.Return +
		s.weights.Liquidity*c.Liquidity +
		s.weights.Risk*c.Risk +
		s.weights.Efficiency*c.Efficiency) / total * 100
	if math.IsNaN(raw) {
		return 0
	}
	return int(math.Round(clamp(raw, 0, 100)))
}

func (s *Scorer) returnComponent(monthly float64) float64 {
	if !(monthly > 0) {
		return 0
	}
	c := s.params.ReturnCeiling
	if monthly <= c {
		return 0.8 * monthly / c
	}
	return 0.8 + 0.2*(1-math.Exp(-(monthly-c)/c))
}

func (s *Scorer) liquidityComponent(volume, openInterest int64) float64 {
	return 0.5*logSaturate(float64(volume), s.params.VolumeSaturation) +
		0.5*logSaturate(float64(openInterest), s.params.OpenInterestSaturation)
}

func (s *Scorer) riskComponent(delta float64) float64 {
	if math.IsNaN(delta) {
		return 0
	}
	ceil := s.params.DeltaCeiling
	return 1 - math.Min(math.Abs(delta), ceil)/ceil
}

func (s *Scorer) efficiencyComponent(monthly float64, dte int) float64 {
	if dte <= 0 || !(monthly > 0) {
		return 0
	}
	return (monthly / float64(dte)) / s.params.EfficiencySaturation
}

func logSaturate(v, saturation float64) float64 {
	if !(v > 0) {
		return 0
	}
	return unit(math.Log10(1+v) / math.Log10(1+saturation))
}

func unit(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return clamp(x, 0, 1)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
