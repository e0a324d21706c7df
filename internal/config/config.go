// Package config provides configuration management for the trading application.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"trend-trader/internal/analysis/indicators"
	apperrors "trend-trader/internal/errors"
	"trend-trader/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Strategy  StrategyConfig  `mapstructure:"strategy" json:"strategy"`
	Orders    OrderConfig     `mapstructure:"orders" json:"orders"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" json:"scheduler"`
	Broker    BrokerConfig    `mapstructure:"broker" json:"broker"`
	Paper     PaperConfig     `mapstructure:"paper" json:"paper"`
	Log       LogConfig       `mapstructure:"log" json:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics" json:"metrics"`
}

// StrategyConfig holds the instrument, timeframes and indicator windows.
type StrategyConfig struct {
	Symbol           string `mapstructure:"symbol" json:"symbol" validate:"required"`
	EntryTimeframe   string `mapstructure:"entry_timeframe" json:"entry_timeframe" validate:"required,timeframe"`
	ConfirmTimeframe string `mapstructure:"confirm_timeframe" json:"confirm_timeframe" validate:"required,timeframe"`
	HistoryBars      int    `mapstructure:"history_bars" json:"history_bars" validate:"gt=0"`
	MALong           int    `mapstructure:"ma_long" json:"ma_long" validate:"gt=0"`
	MAShort          int    `mapstructure:"ma_short" json:"ma_short" validate:"gt=0"`
	RSIPeriod        int    `mapstructure:"rsi_period" json:"rsi_period" validate:"gt=0"`
	ATRPeriod        int    `mapstructure:"atr_period" json:"atr_period" validate:"gt=0"`
}

// OrderConfig holds order sizing and price-distance settings.
type OrderConfig struct {
	LotSize        float64 `mapstructure:"lot_size" json:"lot_size" validate:"gt=0"`
	Slippage       int     `mapstructure:"slippage" json:"slippage" validate:"gte=0"`
	TakeProfitPips float64 `mapstructure:"take_profit_pips" json:"take_profit_pips" validate:"gt=0"`
	StopLossPips   float64 `mapstructure:"stop_loss_pips" json:"stop_loss_pips" validate:"gt=0"`
	PipSize        float64 `mapstructure:"pip_size" json:"pip_size" validate:"gt=0"`
	PricePrecision int32   `mapstructure:"price_precision" json:"price_precision" validate:"gte=0,lte=10"`
	Magic          int64   `mapstructure:"magic" json:"magic"`
	Comment        string  `mapstructure:"comment" json:"comment"`
	FillPolicy     string  `mapstructure:"fill_policy" json:"fill_policy" validate:"oneof=FOK IOC RETURN"`
	TimePolicy     string  `mapstructure:"time_policy" json:"time_policy" validate:"oneof=GTC DAY"`
	// TrailingEnabled lets the scheduler move the stop of the tracked position.
	TrailingEnabled bool `mapstructure:"trailing_enabled" json:"trailing_enabled"`
	// TrailingATRMultiplier scales the volatility measure into a stop distance.
	TrailingATRMultiplier float64 `mapstructure:"trailing_atr_multiplier" json:"trailing_atr_multiplier" validate:"gte=0"`
	// RiskPercentage is reserved for position sizing; nothing reads it yet.
	RiskPercentage float64 `mapstructure:"risk_percentage" json:"risk_percentage" validate:"gte=0,lte=1"`
}

// SchedulerConfig holds polling settings.
type SchedulerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval" validate:"gt=0"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout" json:"cycle_timeout" validate:"gte=0"`
	// BreakerFailures is how many consecutive collaborator failures open the circuit.
	BreakerFailures int           `mapstructure:"breaker_failures" json:"breaker_failures" validate:"gte=0"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" json:"breaker_cooldown" validate:"gte=0"`
}

// BrokerConfig selects and configures the broker collaborator.
type BrokerConfig struct {
	Kind        string `mapstructure:"kind" json:"kind" validate:"oneof=paper zerodha"`
	Exchange    string `mapstructure:"exchange" json:"exchange"`
	Product     string `mapstructure:"product" json:"product"`
	APIKey      string `mapstructure:"api_key" json:"-"`
	AccessToken string `mapstructure:"access_token" json:"-"`
}

// PaperConfig configures the simulated broker.
type PaperConfig struct {
	DBPath         string  `mapstructure:"db_path" json:"db_path"`
	SpreadPips     float64 `mapstructure:"spread_pips" json:"spread_pips" validate:"gte=0"`
	MinVolume      float64 `mapstructure:"min_volume" json:"min_volume" validate:"gt=0"`
	VolumeStep     float64 `mapstructure:"volume_step" json:"volume_step" validate:"gt=0"`
	PriceIncrement float64 `mapstructure:"price_increment" json:"price_increment" validate:"gt=0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level" json:"level" validate:"oneof=debug info warn error"`
	Console    bool   `mapstructure:"console" json:"console"`
	File       bool   `mapstructure:"file" json:"file"`
	FilePath   string `mapstructure:"file_path" json:"file_path"`
	MaxSize    int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age"`
}

// MetricsConfig holds Prometheus exporter configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Listen  string `mapstructure:"listen" json:"listen"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/trend-trader"
	}
	return filepath.Join(home, ".config", "trend-trader")
}

// Path returns the config.toml location inside configDir.
func Path(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// setDefaults mirrors the template so a partial file still yields a usable config.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("strategy.symbol", "AUDUSD")
	v.SetDefault("strategy.entry_timeframe", "15min")
	v.SetDefault("strategy.confirm_timeframe", "1hour")
	v.SetDefault("strategy.history_bars", 100)
	v.SetDefault("strategy.ma_long", 50)
	v.SetDefault("strategy.ma_short", 10)
	v.SetDefault("strategy.rsi_period", 14)
	v.SetDefault("strategy.atr_period", 14)

	v.SetDefault("orders.lot_size", 0.01)
	v.SetDefault("orders.slippage", 3)
	v.SetDefault("orders.take_profit_pips", 15.0)
	v.SetDefault("orders.stop_loss_pips", 30.0)
	v.SetDefault("orders.pip_size", 0.0001)
	v.SetDefault("orders.price_precision", 5)
	v.SetDefault("orders.magic", 234000)
	v.SetDefault("orders.comment", "Optimized Trend Following")
	v.SetDefault("orders.fill_policy", "FOK")
	v.SetDefault("orders.time_policy", "GTC")
	v.SetDefault("orders.trailing_enabled", false)
	v.SetDefault("orders.trailing_atr_multiplier", 0.0001)
	v.SetDefault("orders.risk_percentage", 0.02)

	v.SetDefault("scheduler.poll_interval", "15m")
	v.SetDefault("scheduler.cycle_timeout", "1m")
	v.SetDefault("scheduler.breaker_failures", 5)
	v.SetDefault("scheduler.breaker_cooldown", "30m")

	v.SetDefault("broker.kind", "paper")
	v.SetDefault("broker.exchange", "CDS")
	v.SetDefault("broker.product", "NRML")
	v.SetDefault("broker.api_key", "")
	v.SetDefault("broker.access_token", "")

	v.SetDefault("paper.db_path", filepath.Join(configDir, "candles.db"))
	v.SetDefault("paper.spread_pips", 1.0)
	v.SetDefault("paper.min_volume", 0.01)
	v.SetDefault("paper.volume_step", 0.01)
	v.SetDefault("paper.price_increment", 0.00001)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", true)
	v.SetDefault("log.file_path", filepath.Join(configDir, "logs", "trader.log"))
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9108")
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	cfg := &Config{}
	// Defaults are static and always decode.
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load loads configuration from config.toml in configDir.
// If configDir is empty, uses the default config directory. A missing file
// is replaced by a template and reported as an error so the operator can
// review it before trading.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix("TRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, createTemplateConfig(configDir)
		}
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("timeframe", func(fl validator.FieldLevel) bool {
		_, err := models.ParseTimeframe(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.NewValidationError(fe.Namespace(), fe.Value(), "failed '"+fe.Tag()+"' check")
		}
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}

	if c.Strategy.MAShort >= c.Strategy.MALong {
		return apperrors.NewValidationError("strategy.ma_short", c.Strategy.MAShort, "must be shorter than ma_long")
	}

	entry, _ := models.ParseTimeframe(c.Strategy.EntryTimeframe)
	confirm, _ := models.ParseTimeframe(c.Strategy.ConfirmTimeframe)
	if confirm.Duration() <= entry.Duration() {
		return apperrors.NewValidationError("strategy.confirm_timeframe", c.Strategy.ConfirmTimeframe, "must be longer than entry_timeframe")
	}

	if need := c.MinCandles(); c.Strategy.HistoryBars < need {
		return apperrors.NewValidationError("strategy.history_bars", c.Strategy.HistoryBars,
			fmt.Sprintf("must cover the longest indicator window (%d)", need))
	}

	if c.Broker.Kind == "zerodha" && (c.Broker.APIKey == "" || c.Broker.AccessToken == "") {
		return apperrors.NewValidationError("broker.access_token", "", "zerodha broker needs api_key and access_token")
	}

	return nil
}

// Windows returns the indicator windows of the strategy.
func (c *Config) Windows() indicators.Windows {
	return indicators.Windows{
		MALong:  c.Strategy.MALong,
		MAShort: c.Strategy.MAShort,
		RSI:     c.Strategy.RSIPeriod,
		ATR:     c.Strategy.ATRPeriod,
	}
}

// MinCandles returns the number of candles the indicator windows need.
func (c *Config) MinCandles() int {
	return indicators.NewEngine(c.Windows(), 1).MinCandles()
}

// EntryTimeframe returns the parsed entry timeframe.
func (c *Config) EntryTimeframe() models.Timeframe {
	tf, _ := models.ParseTimeframe(c.Strategy.EntryTimeframe)
	return tf
}

// ConfirmTimeframe returns the parsed confirmation timeframe.
func (c *Config) ConfirmTimeframe() models.Timeframe {
	tf, _ := models.ParseTimeframe(c.Strategy.ConfirmTimeframe)
	return tf
}

// IsPaperMode returns true if the paper broker is selected.
func (c *Config) IsPaperMode() bool {
	return c.Broker.Kind == "paper"
}
