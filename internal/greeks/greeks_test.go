package greeks

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeltaNominalPut(t *testing.T) {
	d, ok := Delta(100, 95, YearsToExpiry(31), 0.045, 0.30, true)
	require.True(t, ok)
	assert.InDelta(t, -0.25, d, 0.005)
	assert.GreaterOrEqual(t, d, -0.40)
	assert.LessOrEqual(t, d, -0.20)
}

func TestDeltaPutCallParity(t *testing.T) {
	put, ok := Delta(100, 100, 0.5, 0.03, 0.25, true)
	require.True(t, ok)
	call, ok := Delta(100, 100, 0.5, 0.03, 0.25, false)
	require.True(t, ok)
	assert.InDelta(t, 1.0, call-put, 0.0002)
}

func TestDeltaCannotPrice(t *testing.T) {
	tests := []struct {
		name                    string
		spot, strike, years, iv float64
	}{
		{"zero time", 100, 95, 0, 0.3},
		{"negative time", 100, 95, -0.1, 0.3},
		{"zero iv", 100, 95, 0.1, 0},
		{"negative iv", 100, 95, 0.1, -0.2},
		{"zero spot", 0, 95, 0.1, 0.3},
		{"zero strike", 100, 0, 0.1, 0.3},
		{"nan iv", 100, 95, 0.1, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Delta(tt.spot, tt.strike, tt.years, 0.045, tt.iv, true)
			assert.False(t, ok)
			_, ok = Delta(tt.spot, tt.strike, tt.years, 0.045, tt.iv, false)
			assert.False(t, ok)
		})
	}
}

func TestDeltaBounds(t *testing.T) {
	for _, spot := range []float64{1, 50, 100, 250, 10000} {
		for _, strike := range []float64{1, 60, 100, 400} {
			for _, years := range []float64{0.001, 0.1, 1, 5} {
				for _, iv := range []float64{0.01, 0.3, 2.5} {
					put, ok := Delta(spot, strike, years, 0.045, iv, true)
					require.True(t, ok)
					assert.GreaterOrEqual(t, put, -1.0)
					assert.LessOrEqual(t, put, 0.0)

					call, ok := Delta(spot, strike, years, 0.045, iv, false)
					require.True(t, ok)
					assert.GreaterOrEqual(t, call, 0.0)
					assert.LessOrEqual(t, call, 1.0)
				}
			}
		}
	}
}

func TestDeltaRoundedToFourDigits(t *testing.T) {
	d, ok := Delta(123.45, 118, 0.2, 0.045, 0.41, true)
	require.True(t, ok)
	assert.Equal(t, Round(d, 4), d)
}

func TestCompute(t *testing.T) {
	g, ok := Compute(Inputs{Spot: 100, Strike: 95, YearsToExpiry: YearsToExpiry(31), RiskFreeRate: 0.045, ImpliedVol: 0.30, IsPut: true})
	require.True(t, ok)

	d, _ := Delta(100, 95, YearsToExpiry(31), 0.045, 0.30, true)
	assert.Equal(t, d, g.Delta)
	assert.Greater(t, g.Gamma, 0.0)
	assert.Greater(t, g.Vega, 0.0)
	assert.Less(t, g.Theta, 0.0)

	_, ok = Compute(Inputs{Spot: 100, Strike: 95, YearsToExpiry: 0, ImpliedVol: 0.3})
	assert.False(t, ok)
}

func TestSqrtTimeThetaApprox(t *testing.T) {
	th, ok := SqrtTimeThetaApprox(1.5, 30)
	require.True(t, ok)
	assert.Equal(t, -0.025, th)

	_, ok = SqrtTimeThetaApprox(1.5, 0)
	assert.False(t, ok)
}
