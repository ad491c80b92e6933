package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionscan/internal/domain"
	"github.com/alanyoungcy/optionscan/internal/metrics"
)

func newTestAdapter(sources ...domain.PriceSource) *Adapter {
	settings := map[string]ProviderSettings{
		"default": {
			Breaker:     BreakerSettings{ConsecutiveFailures: 3, Window: time.Minute, Cooldown: time.Minute, HalfOpenRequests: 1},
			CallTimeout: 50 * time.Millisecond,
		},
	}
	return NewAdapter(sources, settings, discardLogger(), metrics.New())
}

func TestAdapterFallsThroughOnRateLimit(t *testing.T) {
	primary := &fakeSource{name: "primary", errs: []error{domain.ErrRateLimited}, price: 1}
	secondary := &fakeSource{name: "secondary", price: 2}
	a := newTestAdapter(primary, secondary)

	u, err := a.GetUnderlying(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, 2.0, u.LastPrice)
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, secondary.Calls())
}

func TestAdapterFallsThroughOnUpstream(t *testing.T) {
	primary := &fakeSource{name: "primary", errs: []error{domain.ErrUpstream}}
	secondary := &fakeSource{name: "secondary"}
	a := newTestAdapter(primary, secondary)

	_, err := a.GetChain(context.Background(), "ABC", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, secondary.Calls())
}

func TestAdapterFallsThroughOnUnauthorized(t *testing.T) {
	primary := &fakeSource{name: "primary", errs: []error{domain.ErrUnauthorized}, price: 1}
	secondary := &fakeSource{name: "secondary", price: 2}
	a := newTestAdapter(primary, secondary)

	u, err := a.GetUnderlying(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, 2.0, u.LastPrice)
	assert.Equal(t, "unauthorized", Outcome(domain.ErrUnauthorized))
}

func TestAdapterDoesNotFallThroughOnNotFound(t *testing.T) {
	for _, permanent := range []error{domain.ErrNotFound, domain.ErrNoOptions} {
		primary := &fakeSource{name: "primary", errs: []error{permanent}}
		secondary := &fakeSource{name: "secondary"}
		a := newTestAdapter(primary, secondary)

		_, err := a.GetExpirations(context.Background(), "NOPE")
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 0, secondary.Calls())
	}
}

func TestAdapterAllProvidersFail(t *testing.T) {
	primary := &fakeSource{name: "primary", errs: []error{domain.ErrRateLimited}}
	secondary := &fakeSource{name: "secondary", errs: []error{domain.ErrUpstream}}
	a := newTestAdapter(primary, secondary)

	_, err := a.GetUnderlying(context.Background(), "ABC")
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.True(t, domain.IsRetryable(err))
}

func TestAdapterBreakerOpensAndSkips(t *testing.T) {
	failing := []error{domain.ErrUpstream, domain.ErrUpstream, domain.ErrUpstream, domain.ErrUpstream}
	primary := &fakeSource{name: "primary", errs: failing}
	secondary := &fakeSource{name: "secondary"}
	a := newTestAdapter(primary, secondary)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := a.GetUnderlying(ctx, "ABC")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, "open", a.BreakerStates()["primary"])

	_, err := a.GetUnderlying(ctx, "ABC")
	require.NoError(t, err)
	assert.Equal(t, 3, primary.Calls(), "open breaker must skip the provider")
	assert.Equal(t, 4, secondary.Calls())
}

func TestAdapterAllBreakersOpenFailFast(t *testing.T) {
	primary := &fakeSource{name: "primary", errs: []error{domain.ErrUpstream, domain.ErrUpstream, domain.ErrUpstream}}
	a := newTestAdapter(primary)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = a.GetUnderlying(ctx, "ABC")
	}
	_, err := a.GetUnderlying(ctx, "ABC")
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.Equal(t, 3, primary.Calls())
}

func TestAdapterNotFoundDoesNotTripBreaker(t *testing.T) {
	primary := &fakeSource{name: "primary", errs: []error{domain.ErrNotFound, domain.ErrNotFound, domain.ErrNotFound, domain.ErrNotFound}}
	a := newTestAdapter(primary)

	for i := 0; i < 4; i++ {
		_, _ = a.GetUnderlying(context.Background(), "NOPE")
	}
	assert.Equal(t, "closed", a.BreakerStates()["primary"])
}

func TestAdapterCallTimeoutFallsThrough(t *testing.T) {
	slow := &fakeSource{name: "slow", delay: time.Second}
	fast := &fakeSource{name: "fast", price: 3}
	a := newTestAdapter(slow, fast)

	u, err := a.GetUnderlying(context.Background(), "ABC")
	require.NoError(t, err)
	assert.Equal(t, 3.0, u.LastPrice)
}

func TestAdapterCancelledCaller(t *testing.T) {
	slow := &fakeSource{name: "slow", delay: time.Second}
	fast := &fakeSource{name: "fast"}
	a := NewAdapter([]domain.PriceSource{slow, fast}, map[string]ProviderSettings{}, discardLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.GetUnderlying(ctx, "ABC")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, fast.Calls())
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "not_found", Outcome(domain.ErrNoOptions))
	assert.Equal(t, "rate_limited", Outcome(domain.ErrRateLimited))
	assert.Equal(t, "circuit_open", Outcome(domain.ErrCircuitOpen))
	assert.Equal(t, "upstream", Outcome(domain.ErrUpstream))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}
