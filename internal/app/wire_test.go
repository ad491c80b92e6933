package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/optionscan/internal/config"
	"github.com/alanyoungcy/optionscan/internal/domain"
)

func localConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Postgres.Enabled = false
	cfg.Redis.Enabled = false
	cfg.Tradier.Token = "tok"
	cfg.Tradier.BaseURL = "http://127.0.0.1:1"
	cfg.Refresh.Seed = map[string][]string{"core": {"abc", "xyz", "ABC"}}
	return &cfg
}

func TestWire_InProcessFallbacks(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, cleanup, err := Wire(ctx, localConfig(), logger)
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, deps.RateLimiter)
	assert.Nil(t, deps.BlobWriter)
	assert.Empty(t, deps.HealthChecks)
	require.NotNil(t, deps.Scans)
	require.NotNil(t, deps.Sync)

	wl, err := deps.Watchlists.Get(ctx, "core")
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "XYZ"}, wl.Symbols)

	unlock, err := deps.Locks.Acquire(ctx, "refresh:core", time.Minute)
	require.NoError(t, err)
	unlock()

	assert.Contains(t, deps.Adapter.BreakerStates(), "tradier")
}

func TestWire_SeedKeepsExisting(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, cleanup, err := Wire(ctx, localConfig(), logger)
	require.NoError(t, err)
	defer cleanup()

	_, err = deps.Watchlists.SetSymbols(ctx, "core", []string{"QQQ"})
	require.NoError(t, err)
	require.NoError(t, seedWatchlists(ctx, deps.Watchlists, map[string][]string{"core": {"ABC"}}, logger))

	wl, err := deps.Watchlists.Get(ctx, "core")
	require.NoError(t, err)
	assert.Equal(t, []string{"QQQ"}, wl.Symbols)
}

func TestWire_NoProviderEnabled(t *testing.T) {
	cfg := localConfig()
	cfg.Tradier.Enabled = false
	_, _, err := Wire(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "no quote provider enabled")
}

func TestScanDefaults(t *testing.T) {
	req := scanDefaults(config.ScanDefaults{
		TargetDTEs:         []int{30, 45},
		OptionType:         "put",
		DeltaMin:           -0.4,
		DeltaMax:           -0.2,
		MinVolume:          100,
		MaxBidAskSpreadPct: 0.1,
		MaxStockPrice:      250,
	})

	assert.Equal(t, []int{30, 45}, req.TargetDTEs)
	assert.Equal(t, domain.OptionPut, req.OptionType)
	assert.Equal(t, domain.DeltaRange{Min: -0.4, Max: -0.2}, req.DeltaRange)
	require.NotNil(t, req.MaxStockPrice)
	assert.Equal(t, 250.0, *req.MaxStockPrice)
	assert.Nil(t, req.MinPremiumPct, "zero threshold stays unset")
}

func TestProviderSettings(t *testing.T) {
	pc := config.Defaults().Providers
	pc.Tuning = map[string]config.ProviderTuning{"polygon": {RatePerSecond: 5, Burst: 10}}

	got := providerSettings(pc)
	require.Contains(t, got, "default")
	require.Contains(t, got, "polygon")
	assert.Equal(t, 5.0, got["polygon"].RatePerSecond)
	assert.Equal(t, uint32(5), got["default"].Breaker.ConsecutiveFailures)
	assert.Equal(t, 10*time.Second, got["default"].CallTimeout)
}
