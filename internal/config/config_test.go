package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-trader/internal/analysis/indicators"
	apperrors "trend-trader/internal/errors"
	"trend-trader/internal/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "AUDUSD", cfg.Strategy.Symbol)
	assert.Equal(t, models.Timeframe15Min, cfg.EntryTimeframe())
	assert.Equal(t, models.Timeframe1Hour, cfg.ConfirmTimeframe())
	assert.Equal(t, 0.01, cfg.Orders.LotSize)
	assert.Equal(t, 3, cfg.Orders.Slippage)
	assert.Equal(t, int64(234000), cfg.Orders.Magic)
	assert.Equal(t, int32(5), cfg.Orders.PricePrecision)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.PollInterval)
	assert.Equal(t, 50, cfg.MinCandles())
	assert.True(t, cfg.IsPaperMode())
}

func TestMinCandlesFollowsEngine(t *testing.T) {
	cfg := Default()
	cfg.Strategy.MALong = 10
	cfg.Strategy.MAShort = 5
	cfg.Strategy.RSIPeriod = 14

	assert.Equal(t, indicators.NewEngine(cfg.Windows(), 1).MinCandles(), cfg.MinCandles())
	assert.Equal(t, 15, cfg.MinCandles())

	cfg.Strategy.HistoryBars = 14
	var verr *apperrors.ValidationError
	require.ErrorAs(t, cfg.Validate(), &verr)
	assert.Equal(t, "strategy.history_bars", verr.Field)
}

func TestLoad_MissingFileWritesTemplate(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "created template")

	_, statErr := os.Stat(filepath.Join(dir, "config.toml"))
	require.NoError(t, statErr)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "AUDUSD", cfg.Strategy.Symbol)
	assert.Equal(t, filepath.Join(dir, "candles.db"), cfg.Paper.DBPath)
}

func TestLoad_OverridesAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := `
[strategy]
symbol = "EURUSD"
ma_long = 30
ma_short = 5

[scheduler]
poll_interval = "900s"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))
	t.Setenv("TRADER_ORDERS_LOT_SIZE", "0.05")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", cfg.Strategy.Symbol)
	assert.Equal(t, 30, cfg.Strategy.MALong)
	assert.Equal(t, 14, cfg.Strategy.RSIPeriod)
	assert.Equal(t, 900*time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 0.05, cfg.Orders.LotSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"short not shorter", func(c *Config) { c.Strategy.MAShort = 50 }, "strategy.ma_short"},
		{"confirm not longer", func(c *Config) { c.Strategy.ConfirmTimeframe = "5min" }, "strategy.confirm_timeframe"},
		{"too few bars", func(c *Config) { c.Strategy.HistoryBars = 20 }, "strategy.history_bars"},
		{"unknown timeframe", func(c *Config) { c.Strategy.EntryTimeframe = "2min" }, "Config.Strategy.EntryTimeframe"},
		{"bad fill policy", func(c *Config) { c.Orders.FillPolicy = "ANY" }, "Config.Orders.FillPolicy"},
		{"zero lot", func(c *Config) { c.Orders.LotSize = 0 }, "Config.Orders.LotSize"},
		{"zerodha without token", func(c *Config) { c.Broker.Kind = "zerodha" }, "broker.access_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)

			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
