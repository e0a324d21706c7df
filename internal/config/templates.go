package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trend Trader Configuration

[strategy]
# Instrument traded by the engine
symbol = "AUDUSD"
# Entry and confirmation timeframes: 1min, 5min, 15min, 30min, 1hour, 4hour, 1day
entry_timeframe = "15min"
confirm_timeframe = "1hour"
# Candles requested per timeframe each cycle
history_bars = 100
# Indicator windows
ma_long = 50
ma_short = 10
rsi_period = 14
atr_period = 14

[orders]
# Volume per order in lots
lot_size = 0.01
# Maximum price deviation in points
slippage = 3
take_profit_pips = 15.0
stop_loss_pips = 30.0
# Price units per pip
pip_size = 0.0001
# Decimal places for submitted prices
price_precision = 5
# Strategy identifier attached to every order
magic = 234000
comment = "Optimized Trend Following"
# Fill policy: FOK, IOC, RETURN
fill_policy = "FOK"
# Time policy: GTC, DAY
time_policy = "GTC"
# Move the open position's stop each cycle; only tightening moves are applied
trailing_enabled = false
# Trailing stop = entry price -/+ latest ATR x multiplier
trailing_atr_multiplier = 0.0001
risk_percentage = 0.02

[scheduler]
# Wait between cycles (e.g., "15m", "900s")
poll_interval = "15m"
# Upper bound for a single cycle, 0 disables it
cycle_timeout = "1m"
# Consecutive broker failures before pausing calls
breaker_failures = 5
breaker_cooldown = "30m"

[broker]
# Broker: "paper" or "zerodha"
kind = "paper"
exchange = "CDS"
product = "NRML"
# Prefer TRADER_BROKER_API_KEY and TRADER_BROKER_ACCESS_TOKEN over storing these here
api_key = ""
access_token = ""

[paper]
# Defaults to candles.db in the config directory
# db_path = "/path/to/candles.db"
spread_pips = 1.0
min_volume = 0.01
volume_step = 0.01
price_increment = 0.00001

[log]
# Level: debug, info, warn, error
level = "info"
console = true
file = true
# Defaults to logs/trader.log in the config directory
# file_path = "/path/to/trader.log"
max_size = 100
max_backups = 7
max_age = 30

[metrics]
enabled = false
listen = ":9108"
`

// WriteTemplate writes the default config.toml into configDir and returns its path.
func WriteTemplate(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}
	return path, nil
}

func createTemplateConfig(configDir string) error {
	path, err := WriteTemplate(configDir)
	if err != nil {
		return err
	}
	return fmt.Errorf("config file not found, created template at %s", path)
}
