package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

func sample() domain.Opportunity {
	return domain.Opportunity{
		Symbol:        "ABC",
		Expiration:    time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		OptionType:    domain.OptionPut,
		DTE:           31,
		Strike:        95,
		StockPrice:    100,
		Premium:       1.5,
		PremiumPct:    1.5789,
		MonthlyReturn: 1.528,
		AnnualReturn:  18.5908,
		BreakEven:     93.5,
		Delta:         -0.2501,
		Volume:        500,
		OpenInterest:  1000,
		LiquidityOK:   true,
		Score:         57,
		ComputedAt:    time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
	}
}

func TestWriteStored(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStored(&buf, []domain.StoredOpportunity{{Opportunity: sample(), Stale: true}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "symbol,option_type,expiration,dte,strike"))
	assert.True(t, strings.HasPrefix(lines[1], "ABC,put,2026-04-02,31,95,"))
	assert.True(t, strings.HasSuffix(lines[1], ",57,2026-03-02T15:00:00Z,true"))
}

func TestWriteOpportunitiesRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOpportunities(&buf, []domain.Opportunity{sample()}))

	rows, err := ReadRows(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, NewRow(sample(), nil), rows[0])
	assert.Empty(t, rows[0].Stale)
}

func TestWriteEmptyHasHeader(t *testing.T) {
	b, err := StoredBytes(nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "symbol,"))
}
