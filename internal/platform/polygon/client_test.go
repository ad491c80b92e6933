package polygon

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/optionscan/internal/domain"
)

func TestToContract(t *testing.T) {
	var snap models.OptionContractSnapshot
	snap.Details.ContractType = "put"
	snap.Details.StrikePrice = 95
	snap.Details.ExpirationDate = models.Date(time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC))
	snap.LastQuote.Bid = 1.45
	snap.LastQuote.Ask = 1.55
	snap.Day.Volume = 500
	snap.OpenInterest = 1000
	snap.ImpliedVolatility = 0.3
	snap.Greeks.Delta = -0.25

	oc, ok := toContract("ABC", snap)
	assert.True(t, ok)
	assert.Equal(t, domain.OptionPut, oc.OptionType)
	assert.Equal(t, int64(500), oc.Volume)
	assert.Equal(t, int64(1000), oc.OpenInterest)
	if assert.NotNil(t, oc.Delta) {
		assert.Equal(t, -0.25, *oc.Delta)
	}

	snap.Details.ContractType = "other"
	_, ok = toContract("ABC", snap)
	assert.False(t, ok)
}

func TestMapError(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusServiceUnavailable, domain.ErrUpstream},
	}
	for _, tt := range tests {
		err := mapError(ctx, &models.ErrorResponse{StatusCode: tt.status})
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
	}

	assert.ErrorIs(t, mapError(ctx, errors.New("dial tcp: refused")), domain.ErrUpstream)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, mapError(cancelled, errors.New("x")), context.Canceled)
}
