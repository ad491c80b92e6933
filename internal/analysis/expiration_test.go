package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

func days(n int) time.Time {
	return asOf.AddDate(0, 0, n)
}

func TestClosestEmpty(t *testing.T) {
	_, ok := Closest(nil, 30, asOf, 7)
	assert.False(t, ok)
}

func TestClosestBoundary(t *testing.T) {
	m, ok := Closest([]time.Time{days(37)}, 30, asOf, 7)
	require.True(t, ok)
	assert.Equal(t, 37, m.DTE)
	assert.Equal(t, 7, m.Distance)

	_, ok = Closest([]time.Time{days(38)}, 30, asOf, 7)
	assert.False(t, ok)

	_, ok = Closest([]time.Time{days(22)}, 30, asOf, 7)
	assert.False(t, ok)
}

func TestClosestPicksNearest(t *testing.T) {
	m, ok := Closest([]time.Time{days(24), days(31), days(45)}, 30, asOf, 7)
	require.True(t, ok)
	assert.Equal(t, 31, m.DTE)
	assert.Equal(t, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), m.Expiration)
}

func TestClosestTieBreaksEarlier(t *testing.T) {
	m, ok := Closest([]time.Time{days(33), days(27)}, 30, asOf, 7)
	require.True(t, ok)
	assert.Equal(t, 27, m.DTE)
}

func TestClosestNoMatchScenario(t *testing.T) {
	_, ok := Closest([]time.Time{days(5), days(60)}, 30, asOf, 7)
	assert.False(t, ok)
}

func TestClosestSkipsExpired(t *testing.T) {
	_, ok := Closest([]time.Time{days(0), days(-2)}, 1, asOf, 3)
	assert.False(t, ok)
}

func TestTolerancesFor(t *testing.T) {
	tol := DefaultTolerances()
	tests := []struct {
		target int
		want   int
	}{
		{7, 3},
		{10, 3},
		{11, 5},
		{21, 5},
		{30, 7},
		{45, 7},
		{60, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tol.For(tt.target), "target %d", tt.target)
	}

	unordered := Tolerances{{MaxTargetDTE: 45, Tolerance: 7}, {MaxTargetDTE: 10, Tolerance: 2}}
	assert.Equal(t, 2, unordered.For(5))
	assert.Equal(t, 7, unordered.For(90))
}
