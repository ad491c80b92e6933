// Package config defines the top-level configuration for the options scanner
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/optionscan/internal/analysis"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by OPTIONSCAN_* environment variables.
type Config struct {
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Tradier   TradierConfig   `toml:"tradier"`
	Polygon   PolygonConfig   `toml:"polygon"`
	Providers ProvidersConfig `toml:"providers"`
	Scan      ScanConfig      `toml:"scan"`
	Scoring   ScoringConfig   `toml:"scoring"`
	Cache     CacheConfig     `toml:"cache"`
	Refresh   RefreshConfig   `toml:"refresh"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
}

// PostgresConfig holds PostgreSQL connection parameters. When disabled the
// in-process stores are used instead.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. When disabled the shared
// quote tier, refresh locks and API rate limiting are process-local or off.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for CSV exports.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
	ExportPrefix   string `toml:"export_prefix"`
}

// TradierConfig holds the Tradier market data credentials.
type TradierConfig struct {
	Enabled bool     `toml:"enabled"`
	BaseURL string   `toml:"base_url"`
	Token   string   `toml:"token"`
	Timeout duration `toml:"timeout"`
}

// PolygonConfig holds the Polygon market data credentials.
type PolygonConfig struct {
	Enabled       bool   `toml:"enabled"`
	APIKey        string `toml:"api_key"`
	ChainPageSize int    `toml:"chain_page_size"`
}

// ProvidersConfig orders the upstream sources and tunes their breakers and
// rate limits.
type ProvidersConfig struct {
	// Order is the fallback order by provider name.
	Order   []string                  `toml:"order"`
	Default ProviderTuning            `toml:"default"`
	Tuning  map[string]ProviderTuning `toml:"tuning"`
}

// ProviderTuning configures one provider's circuit breaker and limiter.
type ProviderTuning struct {
	FailureThreshold uint32   `toml:"failure_threshold"`
	Window           duration `toml:"window"`
	Cooldown         duration `toml:"cooldown"`
	HalfOpenRequests uint32   `toml:"half_open_requests"`
	RatePerSecond    float64  `toml:"rate_per_second"`
	Burst            int      `toml:"burst"`
	CallTimeout      duration `toml:"call_timeout"`
}

// ScanConfig holds engine tuning and the defaults merged into requests.
type ScanConfig struct {
	Workers         int                      `toml:"workers"`
	UnitTimeout     duration                 `toml:"unit_timeout"`
	RiskFreeRate    float64                  `toml:"risk_free_rate"`
	LiquidityPolicy string                   `toml:"liquidity_policy"`
	Tolerances      []analysis.ToleranceBand `toml:"tolerances"`
	Retry           RetryConfig              `toml:"retry"`
	StoreRetry      RetryConfig              `toml:"store_retry"`
	Defaults        ScanDefaults             `toml:"defaults"`
}

// RetryConfig is an exponential backoff policy.
type RetryConfig struct {
	MaxAttempts     int      `toml:"max_attempts"`
	InitialInterval duration `toml:"initial_interval"`
	MaxInterval     duration `toml:"max_interval"`
	Multiplier      float64  `toml:"multiplier"`
}

// ScanDefaults fill fields a scan request leaves empty. The delta range is
// given for puts and mirrored for calls.
type ScanDefaults struct {
	TargetDTEs         []int   `toml:"target_dtes"`
	OptionType         string  `toml:"option_type"`
	DeltaMin           float64 `toml:"delta_min"`
	DeltaMax           float64 `toml:"delta_max"`
	MinVolume          int64   `toml:"min_volume"`
	MinOpenInterest    int64   `toml:"min_open_interest"`
	MaxBidAskSpreadPct float64 `toml:"max_bid_ask_spread_pct"`
	// MaxStockPrice and MinPremiumPct are unset when zero.
	MaxStockPrice float64 `toml:"max_stock_price"`
	MinPremiumPct float64 `toml:"min_premium_pct"`
	Limit         int     `toml:"limit"`
}

// ScoringConfig holds the score weights and saturation points.
type ScoringConfig struct {
	Weights analysis.Weights     `toml:"weights"`
	Params  analysis.ScoreParams `toml:"params"`
}

// CacheConfig holds the lifetimes of each cache tier and of stored rows.
type CacheConfig struct {
	RunTTL         duration `toml:"run_ttl"`
	UnderlyingTTL  duration `toml:"underlying_ttl"`
	ExpirationsTTL duration `toml:"expirations_ttl"`
	ChainTTL       duration `toml:"chain_ttl"`
	// StoreTTL marks stored opportunities stale and bounds their retention.
	StoreTTL duration `toml:"store_ttl"`
}

// RefreshConfig holds the background watchlist refresh schedule.
type RefreshConfig struct {
	Enabled    bool     `toml:"enabled"`
	Interval   duration `toml:"interval"`
	Watchlists []string `toml:"watchlists"`
	LockTTL    duration `toml:"lock_ttl"`
	// Seed populates watchlists that do not exist yet, keyed by id.
	Seed map[string][]string `toml:"seed"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port         int      `toml:"port"`
	CORSOrigins  []string `toml:"cors_origins"`
	APIKey       string   `toml:"api_key"`
	RateLimit    int      `toml:"rate_limit"`
	RateWindow   duration `toml:"rate_window"`
	WriteTimeout duration `toml:"write_timeout"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	MinScore          int      `toml:"min_score"`
	Top               int      `toml:"top"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Mode:     "full",
		LogLevel: "info",
		Postgres: PostgresConfig{
			Enabled:       true,
			Host:          "localhost",
			Port:          5432,
			Database:      "optionscan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "optionscan-exports",
			ForcePathStyle: true,
			ExportPrefix:   "exports",
		},
		Tradier: TradierConfig{
			Enabled: true,
			BaseURL: "https://api.tradier.com",
			Timeout: duration{15 * time.Second},
		},
		Polygon: PolygonConfig{
			ChainPageSize: 250,
		},
		Providers: ProvidersConfig{
			Order: []string{"tradier", "polygon"},
			Default: ProviderTuning{
				FailureThreshold: 5,
				Window:           duration{time.Minute},
				Cooldown:         duration{30 * time.Second},
				HalfOpenRequests: 1,
				RatePerSecond:    2,
				Burst:            4,
				CallTimeout:      duration{10 * time.Second},
			},
			Tuning: map[string]ProviderTuning{},
		},
		Scan: ScanConfig{
			Workers:         12,
			UnitTimeout:     duration{30 * time.Second},
			RiskFreeRate:    0.045,
			LiquidityPolicy: string(analysis.PolicyAny),
			Tolerances:      analysis.DefaultTolerances(),
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: duration{200 * time.Millisecond},
				MaxInterval:     duration{2 * time.Second},
				Multiplier:      2,
			},
			StoreRetry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: duration{100 * time.Millisecond},
				MaxInterval:     duration{time.Second},
				Multiplier:      2,
			},
			Defaults: ScanDefaults{
				TargetDTEs:         []int{30},
				OptionType:         "put",
				DeltaMin:           -0.40,
				DeltaMax:           -0.20,
				MinVolume:          100,
				MinOpenInterest:    500,
				MaxBidAskSpreadPct: 0.10,
				Limit:              50,
			},
		},
		Scoring: ScoringConfig{
			Weights: analysis.DefaultWeights(),
			Params:  analysis.DefaultScoreParams(),
		},
		Cache: CacheConfig{
			RunTTL:         duration{5 * time.Minute},
			UnderlyingTTL:  duration{time.Minute},
			ExpirationsTTL: duration{time.Hour},
			ChainTTL:       duration{2 * time.Minute},
			StoreTTL:       duration{30 * time.Minute},
		},
		Refresh: RefreshConfig{
			Enabled:    true,
			Interval:   duration{15 * time.Minute},
			Watchlists: []string{"default"},
			LockTTL:    duration{10 * time.Minute},
			Seed:       map[string][]string{},
		},
		Server: ServerConfig{
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:    120,
			RateWindow:   duration{time.Minute},
			WriteTimeout: duration{2 * time.Minute},
		},
		Notify: NotifyConfig{
			Events:   []string{"refresh_failed", "top_opportunities"},
			MinScore: 70,
			Top:      5,
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"refresh": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validProviders = map[string]bool{
	"tradier": true,
	"polygon": true,
}

// normalize canonicalises the enumerated string fields so later comparisons
// can be exact.
func (c *Config) normalize() {
	c.Mode = strings.ToLower(strings.TrimSpace(c.Mode))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// RunsRefresher reports whether the periodic refresh loop starts: always in
// refresh mode, and in full mode when refresh is enabled.
func (c *Config) RunsRefresher() bool {
	switch c.Mode {
	case "refresh":
		return true
	case "full":
		return c.Refresh.Enabled
	}
	return false
}

// Validate normalizes Config, then checks it for obviously invalid or missing
// values and returns a combined error describing every problem found.
func (c *Config) Validate() error {
	c.normalize()
	var errs []string

	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, refresh, full)", c.Mode))
	}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Providers
	if c.Tradier.Enabled && c.Tradier.Token == "" {
		errs = append(errs, "tradier: token is required when enabled")
	}
	if c.Polygon.Enabled && c.Polygon.APIKey == "" {
		errs = append(errs, "polygon: api_key is required when enabled")
	}
	enabled := 0
	for _, name := range c.Providers.Order {
		if !validProviders[name] {
			errs = append(errs, fmt.Sprintf("providers: unknown provider %q in order", name))
			continue
		}
		if c.providerEnabled(name) {
			enabled++
		}
	}
	if enabled == 0 {
		errs = append(errs, "providers: at least one provider in order must be enabled")
	}
	if c.Providers.Default.CallTimeout.Duration <= 0 {
		errs = append(errs, "providers: default.call_timeout must be > 0")
	}

	// Scan
	if c.Scan.Workers < 1 {
		errs = append(errs, "scan: workers must be >= 1")
	}
	if c.Scan.UnitTimeout.Duration <= 0 {
		errs = append(errs, "scan: unit_timeout must be > 0")
	}
	if c.Scan.RiskFreeRate < 0 || c.Scan.RiskFreeRate > 1 {
		errs = append(errs, "scan: risk_free_rate must be within [0, 1]")
	}
	switch analysis.LiquidityPolicy(c.Scan.LiquidityPolicy) {
	case analysis.PolicyAny, analysis.PolicyAll:
	default:
		errs = append(errs, fmt.Sprintf("scan: liquidity_policy %q must be any or all", c.Scan.LiquidityPolicy))
	}
	if len(c.Scan.Tolerances) == 0 {
		errs = append(errs, "scan: tolerances must not be empty")
	}
	for _, b := range c.Scan.Tolerances {
		if b.Tolerance < 0 {
			errs = append(errs, fmt.Sprintf("scan: tolerance %d must be >= 0", b.Tolerance))
		}
	}
	if c.Scan.Retry.MaxAttempts < 1 || c.Scan.StoreRetry.MaxAttempts < 1 {
		errs = append(errs, "scan: retry max_attempts must be >= 1")
	}
	d := c.Scan.Defaults
	if d.OptionType != "put" && d.OptionType != "call" {
		errs = append(errs, fmt.Sprintf("scan: defaults.option_type %q must be put or call", d.OptionType))
	}
	if d.DeltaMin > d.DeltaMax {
		errs = append(errs, "scan: defaults.delta_min must not exceed delta_max")
	}
	if d.MaxBidAskSpreadPct <= 0 {
		errs = append(errs, "scan: defaults.max_bid_ask_spread_pct must be > 0")
	}

	// Scoring
	w := c.Scoring.Weights
	if w.Return < 0 || w.Liquidity < 0 || w.Risk < 0 || w.Efficiency < 0 {
		errs = append(errs, "scoring: weights must be >= 0")
	} else if w.Return+w.Liquidity+w.Risk+w.Efficiency == 0 {
		errs = append(errs, "scoring: weights must not all be zero")
	}

	// Cache
	if c.Cache.RunTTL.Duration <= 0 || c.Cache.ChainTTL.Duration <= 0 {
		errs = append(errs, "cache: run_ttl and chain_ttl must be > 0")
	}
	if c.Cache.StoreTTL.Duration <= 0 {
		errs = append(errs, "cache: store_ttl must be > 0")
	}

	// Refresh
	if c.RunsRefresher() {
		if c.Refresh.Interval.Duration <= 0 {
			errs = append(errs, "refresh: interval must be > 0")
		}
		if len(c.Refresh.Watchlists) == 0 {
			errs = append(errs, "refresh: watchlists must not be empty when enabled")
		}
	}

	// Server
	if c.Mode != "refresh" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) providerEnabled(name string) bool {
	switch name {
	case "tradier":
		return c.Tradier.Enabled
	case "polygon":
		return c.Polygon.Enabled
	}
	return false
}
