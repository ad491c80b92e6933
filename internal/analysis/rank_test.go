package analysis

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

func TestRankTotalOrder(t *testing.T) {
	apr := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	may := apr.AddDate(0, 1, 0)
	opps := []domain.Opportunity{
		{Symbol: "XYZ", Score: 60, AnnualReturn: 10, Expiration: apr, Strike: 50},
		{Symbol: "ABC", Score: 60, AnnualReturn: 10, Expiration: may, Strike: 90},
		{Symbol: "ABC", Score: 60, AnnualReturn: 10, Expiration: apr, Strike: 95},
		{Symbol: "ABC", Score: 60, AnnualReturn: 10, Expiration: apr, Strike: 90},
		{Symbol: "LOW", Score: 40, AnnualReturn: 50},
		{Symbol: "TOP", Score: 80, AnnualReturn: 1},
		{Symbol: "ZED", Score: 60, AnnualReturn: 12},
	}
	Rank(opps)

	got := make([]string, len(opps))
	for i, o := range opps {
		got[i] = o.Symbol + "/" + o.Expiration.Format("01") + "/" + strconv.FormatFloat(o.Strike, 'f', -1, 64)
	}
	assert.Equal(t, []string{
		"TOP/01/0", "ZED/01/0",
		"ABC/04/90", "ABC/04/95", "ABC/05/90",
		"XYZ/04/50", "LOW/01/0",
	}, got)
}

func TestTop(t *testing.T) {
	opps := []domain.Opportunity{{Symbol: "A", Score: 1}, {Symbol: "B", Score: 3}, {Symbol: "C", Score: 2}}

	top := Top(opps, 2)
	assert.Len(t, top, 2)
	assert.Equal(t, "B", top[0].Symbol)
	assert.Equal(t, "C", top[1].Symbol)

	assert.Len(t, Top(opps, 0), 3)
	assert.Empty(t, Top(nil, 5))
}
