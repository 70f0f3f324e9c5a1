// Package config defines the top-level configuration for the trading
// simulator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TRADESIM_* environment
// variables.
type Config struct {
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Engine    EngineConfig    `toml:"engine"`
	Fees      FeesConfig      `toml:"fees"`
	Feed      FeedConfig      `toml:"feed"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Archive   ArchiveConfig   `toml:"archive"`
	Ticker    TickerConfig    `toml:"ticker"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	AuthToken   string   `toml:"auth_token"`
}

// EngineConfig holds matching engine parameters.
type EngineConfig struct {
	SlippageRate   float64 `toml:"slippage_rate"`
	TradingEnabled bool    `toml:"trading_enabled"`
}

// FeesConfig holds the commission schedule: a default basis-point rate with
// optional per-venue overrides.
type FeesConfig struct {
	DefaultBps float64            `toml:"default_bps"`
	VenueBps   map[string]float64 `toml:"venue_bps"`
}

// FeedConfig holds market-data feed parameters.
type FeedConfig struct {
	Channel string `toml:"channel"`
}

// RateLimitConfig bounds order submissions per portfolio.
type RateLimitConfig struct {
	Enabled  bool     `toml:"enabled"`
	Requests int      `toml:"requests"`
	Window   duration `toml:"window"`
}

// ArchiveConfig drives the periodic S3 archiver.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
}

// TickerConfig holds the synthetic market-data generator settings.
type TickerConfig struct {
	Enabled bool           `toml:"enabled"`
	Markets []TickerMarket `toml:"markets"`
}

// TickerMarket configures generation for one simulated market.
type TickerMarket struct {
	Venue        string   `toml:"venue"`
	Base         string   `toml:"base"`
	Quote        string   `toml:"quote"`
	PriceBasis   int64    `toml:"price_basis"`
	VolumeBasis  int64    `toml:"volume_basis"`
	StartPrice   int64    `toml:"start_price"`
	Volatility   float64  `toml:"volatility"`
	MeanInterval duration `toml:"mean_interval"`
	MeanVolume   float64  `toml:"mean_volume"`
	BookEvery    int      `toml:"book_every"`
	BookLevels   int      `toml:"book_levels"`
	Spread       float64  `toml:"spread"`
}

// duration wraps time.Duration so TOML files can use strings like "250ms".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the built-in configuration a TOML file is merged over.
func Defaults() Config {
	return Config{
		Mode:     "full",
		LogLevel: "info",
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tradesim",
			User:          "tradesim",
			SSLMode:       "disable",
			PoolMaxConns:  8,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 16,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Engine: EngineConfig{
			SlippageRate:   0.0005,
			TradingEnabled: true,
		},
		Fees: FeesConfig{
			DefaultBps: 10,
		},
		Feed: FeedConfig{
			Channel: "marketdata",
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 30,
			Window:   duration{time.Second},
		},
		Archive: ArchiveConfig{
			Interval:      duration{24 * time.Hour},
			RetentionDays: 30,
		},
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"sim":   true, // ticker + engine, no HTTP API
	"serve": true, // HTTP API only, engine fed from the bus
	"full":  true, // everything
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: sim, serve, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

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
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when archiving is enabled")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if c.Engine.SlippageRate < 0 || c.Engine.SlippageRate >= 1 {
		errs = append(errs, fmt.Sprintf("engine: slippage_rate must be in [0, 1), got %f", c.Engine.SlippageRate))
	}

	if c.Fees.DefaultBps < 0 {
		errs = append(errs, "fees: default_bps must be >= 0")
	}
	for venue, bps := range c.Fees.VenueBps {
		if bps < 0 {
			errs = append(errs, fmt.Sprintf("fees: venue_bps[%s] must be >= 0", venue))
		}
	}

	if c.Feed.Channel == "" {
		errs = append(errs, "feed: channel must not be empty")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests < 1 {
			errs = append(errs, "rate_limit: requests must be >= 1")
		}
		if c.RateLimit.Window.Duration <= 0 {
			errs = append(errs, "rate_limit: window must be positive")
		}
	}

	for i, m := range c.Ticker.Markets {
		if m.Venue == "" || m.Base == "" || m.Quote == "" {
			errs = append(errs, fmt.Sprintf("ticker: market %d: venue, base and quote are required", i))
		}
		if m.PriceBasis <= 0 || m.VolumeBasis <= 0 {
			errs = append(errs, fmt.Sprintf("ticker: market %d: bases must be positive", i))
		}
		if m.StartPrice <= 0 {
			errs = append(errs, fmt.Sprintf("ticker: market %d: start_price must be positive", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
