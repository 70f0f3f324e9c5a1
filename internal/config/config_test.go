package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Redis.Addr = ""
	cfg.Engine.SlippageRate = 1.5

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "slippage_rate")
}

func TestValidateTickerMarkets(t *testing.T) {
	cfg := Defaults()
	cfg.Ticker.Markets = []TickerMarket{
		{Venue: "SIM", Base: "BTC", Quote: "USD", PriceBasis: 100, VolumeBasis: 100, StartPrice: 10000},
		{Venue: "", Base: "ETH", Quote: "USD", PriceBasis: 100, VolumeBasis: 100, StartPrice: 0},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "market 1")
	assert.NotContains(t, err.Error(), "market 0")
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tradesim.toml")
	body := `
mode = "sim"

[engine]
slippage_rate = 0.002

[rate_limit]
window = "2s"

[[ticker.markets]]
venue = "SIM"
base = "BTC"
quote = "USD"
price_basis = 100
volume_basis = 100
start_price = 10000
mean_interval = "250ms"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("TRADESIM_LOG_LEVEL", "debug")
	t.Setenv("TRADESIM_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("TRADESIM_ENGINE_TRADING_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sim", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, 0.002, cfg.Engine.SlippageRate)
	assert.False(t, cfg.Engine.TradingEnabled)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.Window.Duration)

	require.Len(t, cfg.Ticker.Markets, 1)
	assert.Equal(t, 250*time.Millisecond, cfg.Ticker.Markets[0].MeanInterval.Duration)
	// Defaults survive underneath the file.
	assert.Equal(t, "marketdata", cfg.Feed.Channel)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, 8080, cfg.Server.Port)
}
