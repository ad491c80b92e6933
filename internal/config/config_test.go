package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.Tradier.Token = "tok"
	return &cfg
}

func TestDefaults_ValidWithCredentials(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.Scan.Workers = 0
	cfg.Scan.LiquidityPolicy = "either"
	cfg.Tradier.Token = ""

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, "scan: workers must be >= 1")
	assert.Contains(t, msg, `liquidity_policy "either"`)
	assert.Contains(t, msg, "tradier: token is required")
}

func TestValidate_Cases(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no enabled provider", func(c *Config) { c.Tradier.Enabled = false }, "at least one provider"},
		{"unknown provider", func(c *Config) { c.Providers.Order = append(c.Providers.Order, "ibkr") }, `unknown provider "ibkr"`},
		{"polygon without key", func(c *Config) { c.Polygon.Enabled = true }, "polygon: api_key"},
		{"zero weights", func(c *Config) { c.Scoring.Weights.Return, c.Scoring.Weights.Liquidity, c.Scoring.Weights.Risk, c.Scoring.Weights.Efficiency = 0, 0, 0, 0 }, "weights must not all be zero"},
		{"inverted delta", func(c *Config) { c.Scan.Defaults.DeltaMin = 0.5 }, "delta_min must not exceed"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server: port"},
		{"postgres pool", func(c *Config) { c.Postgres.PoolMinConns = 50 }, "pool_min_conns"},
		{"refresh without watchlists", func(c *Config) { c.Refresh.Watchlists = nil }, "watchlists must not be empty"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidate_ModeScopesChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "refresh"
	cfg.Server.Port = 0
	assert.NoError(t, cfg.Validate(), "refresh mode runs no server")

	cfg = validConfig()
	cfg.Mode = "server"
	cfg.Refresh.Watchlists = nil
	assert.NoError(t, cfg.Validate(), "server mode runs no refresh loop")

	cfg = validConfig()
	cfg.Postgres.Enabled = false
	cfg.Postgres.Host = ""
	assert.NoError(t, cfg.Validate(), "disabled postgres is not checked")
}

func TestValidate_NormalizesMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = " Refresh "
	cfg.LogLevel = "INFO"
	cfg.Server.Port = 0
	require.NoError(t, cfg.Validate(), "mixed-case refresh mode still skips server checks")
	assert.Equal(t, "refresh", cfg.Mode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.RunsRefresher())
}

func TestValidate_RefreshModeChecksIntervalWhenDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "refresh"
	cfg.Refresh.Enabled = false
	cfg.Refresh.Interval = duration{0}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh: interval must be > 0")

	cfg = validConfig()
	cfg.Mode = "full"
	cfg.Refresh.Enabled = false
	cfg.Refresh.Interval = duration{0}
	assert.NoError(t, cfg.Validate(), "full mode without refresh runs no loop")
	assert.False(t, cfg.RunsRefresher())
}

func TestLoad_FileEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "server"

[tradier]
token = "from-file"

[scan]
workers = 4
unit_timeout = "45s"

[[scan.tolerances]]
max_target_dte = 30
tolerance = 4

[scan.defaults]
target_dtes = [7, 30]

[providers.tuning.polygon]
rate_per_second = 5.0
call_timeout = "3s"
`), 0o600))

	t.Setenv("OPTIONSCAN_TRADIER_TOKEN", "from-env")
	t.Setenv("OPTIONSCAN_SERVER_CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("OPTIONSCAN_REFRESH_INTERVAL", "5m")
	t.Setenv("OPTIONSCAN_SCAN_TARGET_DTES", "14,45")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "from-env", cfg.Tradier.Token)
	assert.Equal(t, 4, cfg.Scan.Workers)
	assert.Equal(t, 45*time.Second, cfg.Scan.UnitTimeout.Duration)
	require.Len(t, cfg.Scan.Tolerances, 1)
	assert.Equal(t, 4, cfg.Scan.Tolerances[0].Tolerance)
	assert.Equal(t, []int{14, 45}, cfg.Scan.Defaults.TargetDTEs)
	assert.Equal(t, 3*time.Second, cfg.Providers.Tuning["polygon"].CallTimeout.Duration)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Refresh.Interval.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Cache.StoreTTL.Duration)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Mode)
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[scan]\nunit_timeout = \"soon\"\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "pw"
	cfg.Polygon.APIKey = "pk"
	cfg.Server.APIKey = "sk"
	cfg.Notify.DiscordWebhookURL = "https://discord.example.com/hook"

	out := RedactedConfig(cfg)
	assert.Equal(t, "***", out.Tradier.Token)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Polygon.APIKey)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Empty(t, out.Redis.Password, "empty secrets stay empty")

	out.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
	assert.Equal(t, "tok", cfg.Tradier.Token)
}
