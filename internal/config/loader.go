package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies OPTIONSCAN_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	cfg.normalize()

	return &cfg, nil
}

// applyEnvOverrides reads well-known OPTIONSCAN_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Top-level ──
	setStr(&cfg.Mode, "OPTIONSCAN_MODE")
	setStr(&cfg.LogLevel, "OPTIONSCAN_LOG_LEVEL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "OPTIONSCAN_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "OPTIONSCAN_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "OPTIONSCAN_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "OPTIONSCAN_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "OPTIONSCAN_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "OPTIONSCAN_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "OPTIONSCAN_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "OPTIONSCAN_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "OPTIONSCAN_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "OPTIONSCAN_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "OPTIONSCAN_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "OPTIONSCAN_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "OPTIONSCAN_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "OPTIONSCAN_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "OPTIONSCAN_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "OPTIONSCAN_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "OPTIONSCAN_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "OPTIONSCAN_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "OPTIONSCAN_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "OPTIONSCAN_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "OPTIONSCAN_S3_REGION")
	setStr(&cfg.S3.Bucket, "OPTIONSCAN_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "OPTIONSCAN_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "OPTIONSCAN_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "OPTIONSCAN_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.ExportPrefix, "OPTIONSCAN_S3_EXPORT_PREFIX")

	// ── Providers ──
	setBool(&cfg.Tradier.Enabled, "OPTIONSCAN_TRADIER_ENABLED")
	setStr(&cfg.Tradier.BaseURL, "OPTIONSCAN_TRADIER_BASE_URL")
	setStr(&cfg.Tradier.Token, "OPTIONSCAN_TRADIER_TOKEN")
	setDuration(&cfg.Tradier.Timeout, "OPTIONSCAN_TRADIER_TIMEOUT")
	setBool(&cfg.Polygon.Enabled, "OPTIONSCAN_POLYGON_ENABLED")
	setStr(&cfg.Polygon.APIKey, "OPTIONSCAN_POLYGON_API_KEY")
	setStringSlice(&cfg.Providers.Order, "OPTIONSCAN_PROVIDERS_ORDER")
	setFloat64(&cfg.Providers.Default.RatePerSecond, "OPTIONSCAN_PROVIDERS_RATE_PER_SECOND")
	setDuration(&cfg.Providers.Default.CallTimeout, "OPTIONSCAN_PROVIDERS_CALL_TIMEOUT")

	// ── Scan ──
	setInt(&cfg.Scan.Workers, "OPTIONSCAN_SCAN_WORKERS")
	setDuration(&cfg.Scan.UnitTimeout, "OPTIONSCAN_SCAN_UNIT_TIMEOUT")
	setFloat64(&cfg.Scan.RiskFreeRate, "OPTIONSCAN_SCAN_RISK_FREE_RATE")
	setStr(&cfg.Scan.LiquidityPolicy, "OPTIONSCAN_SCAN_LIQUIDITY_POLICY")
	setIntSlice(&cfg.Scan.Defaults.TargetDTEs, "OPTIONSCAN_SCAN_TARGET_DTES")

	// ── Cache ──
	setDuration(&cfg.Cache.ChainTTL, "OPTIONSCAN_CACHE_CHAIN_TTL")
	setDuration(&cfg.Cache.StoreTTL, "OPTIONSCAN_CACHE_STORE_TTL")

	// ── Refresh ──
	setBool(&cfg.Refresh.Enabled, "OPTIONSCAN_REFRESH_ENABLED")
	setDuration(&cfg.Refresh.Interval, "OPTIONSCAN_REFRESH_INTERVAL")
	setStringSlice(&cfg.Refresh.Watchlists, "OPTIONSCAN_REFRESH_WATCHLISTS")

	// ── Server ──
	setInt(&cfg.Server.Port, "OPTIONSCAN_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "OPTIONSCAN_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "OPTIONSCAN_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "OPTIONSCAN_SERVER_RATE_LIMIT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "OPTIONSCAN_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "OPTIONSCAN_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "OPTIONSCAN_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "OPTIONSCAN_NOTIFY_EVENTS")
	setInt(&cfg.Notify.MinScore, "OPTIONSCAN_NOTIFY_MIN_SCORE")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

func setIntSlice(dst *[]int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []int
	for _, p := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return
		}
		out = append(out, n)
	}
	if len(out) > 0 {
		*dst = out
	}
}
