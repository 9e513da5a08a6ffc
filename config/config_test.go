package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alejandrodnm/rsibot/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte("strategy:\n  assets: [EURUSD]\n"))
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Strategy.RSIPeriod)
	assert.Equal(t, 35.0, cfg.Strategy.Oversold)
	assert.Equal(t, 65.0, cfg.Strategy.Overbought)
	assert.Equal(t, 2*time.Minute, cfg.Expiry())
	assert.Equal(t, 5*time.Minute, cfg.CandleSize())
	assert.Equal(t, 100, cfg.Strategy.CandleCount)
	assert.Equal(t, 0.025, cfg.Strategy.PositionPct)
	assert.Equal(t, 4000.0, cfg.Strategy.PositionFloor)
	assert.Equal(t, time.Hour, cfg.SignalSpacing())
	assert.Equal(t, 15*time.Second, cfg.Cycle())
	assert.Equal(t, 5*time.Second, cfg.MinSleep())
	assert.Equal(t, 30, cfg.Loop.SaveEvery)
	assert.Equal(t, 100, cfg.Loop.ResolveEvery)
	assert.Equal(t, 15*time.Second, cfg.SettleGuard())
	assert.Equal(t, 20*time.Second, cfg.StatusAfter())
	assert.Equal(t, 120*time.Second, cfg.SettleTimeout())
	assert.Equal(t, 0.10, cfg.Settlement.BalanceEpsilon)
	assert.Equal(t, 0.75, cfg.Risk.AbsoluteStopPct)
	assert.Equal(t, 0.40, cfg.Risk.MonthlyStopPct)
	assert.Equal(t, 3, cfg.Risk.MaxDailyConsecutiveLosses)
	assert.Equal(t, time.Hour, cfg.Warmup())
	assert.Equal(t, 3, cfg.Venue.Workers)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout())
	assert.Equal(t, "PRACTICE", cfg.Venue.AccountType)
	assert.Equal(t, "state.json", cfg.Storage.StatePath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestParse_GuardNeverBelowTenSeconds(t *testing.T) {
	cfg, err := config.Parse([]byte("settlement:\n  guard_seconds: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.SettleGuard())
}

func TestParse_WarmupCanBeDisabled(t *testing.T) {
	cfg, err := config.Parse([]byte("risk:\n  warmup_minutes: 0\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Warmup())
}

func TestParse_MappingAndCategories(t *testing.T) {
	yml := `
strategy:
  assets: [EURUSD, GOLD]
venue:
  mapping:
    GOLD: XAUUSD
  categories: [turbo, binary]
`
	cfg, err := config.Parse([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, []string{"EURUSD", "GOLD"}, cfg.Strategy.Assets)
	assert.Equal(t, map[string]string{"GOLD": "XAUUSD"}, cfg.Venue.Mapping)
	assert.Equal(t, []string{"turbo", "binary"}, cfg.Venue.Categories)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("VENUE_EMAIL", "bot@example.com")
	t.Setenv("VENUE_PASSWORD", "secret")
	t.Setenv("VENUE_ACCOUNT", "real")
	t.Setenv("VENUE_BRIDGE_URL", "http://bridge:9000")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.example/hook")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := config.Parse([]byte("log:\n  level: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "bot@example.com", cfg.Venue.Email)
	assert.Equal(t, "secret", cfg.Venue.Password)
	assert.Equal(t, "REAL", cfg.Venue.AccountType)
	assert.Equal(t, "http://bridge:9000", cfg.Venue.BridgeURL)
	assert.Equal(t, "https://discord.example/hook", cfg.Alerts.DiscordWebhook)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := config.Parse([]byte("strategy: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := config.Parse([]byte("strategy:\n  assets: [EURUSD]\n"))
	require.NoError(t, err)

	assert.NoError(t, cfg.Validate(true), "paper runs need no credentials")
	err = cfg.Validate(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VENUE_EMAIL")

	cfg.Venue.Email, cfg.Venue.Password = "a@b.c", "pw"
	assert.NoError(t, cfg.Validate(false))

	cfg.Strategy.Oversold = 70
	assert.Error(t, cfg.Validate(true))

	cfg.Strategy.Oversold = 35
	cfg.Strategy.Assets = nil
	assert.Error(t, cfg.Validate(true))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy:\n  rsi_period: 21\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 21, cfg.Strategy.RSIPeriod)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
