package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRADESIM_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env if present; silently ignore when missing.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides reads well-known TRADESIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// Postgres
	setStr(&cfg.Postgres.DSN, "TRADESIM_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRADESIM_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRADESIM_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRADESIM_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRADESIM_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRADESIM_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRADESIM_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRADESIM_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRADESIM_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRADESIM_POSTGRES_RUN_MIGRATIONS")

	// Redis
	setStr(&cfg.Redis.Addr, "TRADESIM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRADESIM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRADESIM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRADESIM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRADESIM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRADESIM_REDIS_TLS_ENABLED")

	// S3
	setStr(&cfg.S3.Endpoint, "TRADESIM_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRADESIM_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRADESIM_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRADESIM_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRADESIM_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRADESIM_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRADESIM_S3_FORCE_PATH_STYLE")

	// Server
	setBool(&cfg.Server.Enabled, "TRADESIM_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRADESIM_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRADESIM_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AuthToken, "TRADESIM_SERVER_AUTH_TOKEN")

	// Engine
	setFloat64(&cfg.Engine.SlippageRate, "TRADESIM_ENGINE_SLIPPAGE_RATE")
	setBool(&cfg.Engine.TradingEnabled, "TRADESIM_ENGINE_TRADING_ENABLED")

	// Fees
	setFloat64(&cfg.Fees.DefaultBps, "TRADESIM_FEES_DEFAULT_BPS")

	// Feed
	setStr(&cfg.Feed.Channel, "TRADESIM_FEED_CHANNEL")

	// Rate limit
	setBool(&cfg.RateLimit.Enabled, "TRADESIM_RATE_LIMIT_ENABLED")
	setInt(&cfg.RateLimit.Requests, "TRADESIM_RATE_LIMIT_REQUESTS")
	setDuration(&cfg.RateLimit.Window, "TRADESIM_RATE_LIMIT_WINDOW")

	// Archive
	setBool(&cfg.Archive.Enabled, "TRADESIM_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "TRADESIM_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "TRADESIM_ARCHIVE_RETENTION_DAYS")

	// Ticker
	setBool(&cfg.Ticker.Enabled, "TRADESIM_TICKER_ENABLED")

	// Top level
	setStr(&cfg.Mode, "TRADESIM_MODE")
	setStr(&cfg.LogLevel, "TRADESIM_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

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
