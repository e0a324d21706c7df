// Package cli provides the command-line interface for the trading application.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"trend-trader/internal/broker"
	"trend-trader/internal/config"
	"trend-trader/internal/logging"
	"trend-trader/internal/models"
	"trend-trader/internal/store"
)

// Version information
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// skipConfig marks commands that run without a loaded config.toml.
const skipConfig = "skip-config"

// App holds the application dependencies.
type App struct {
	ConfigDir string
	Config    *config.Config
	Logger    zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Trend Trader - multi-timeframe FX trend following",
		Long: `Trend Trader polls one FX instrument on an entry and a confirmation
timeframe, fuses moving averages and RSI into a BUY/SELL/HOLD signal and
submits a market order with pip-based stop-loss and take-profit.

Use 'trader config init' to write a starter config.toml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.ConfigDir, _ = cmd.Flags().GetString("config")
			if app.ConfigDir == "" {
				app.ConfigDir = config.DefaultConfigDir()
			}
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}

			cfg, err := config.Load(app.ConfigDir)
			if err != nil {
				return err
			}
			app.Config = cfg

			debug, _ := cmd.Flags().GetBool("debug")
			app.Logger = newLogger(cfg.Log, debug)
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/trend-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newSignalCmd(app))
	rootCmd.AddCommand(newOrderCmd(app))
	rootCmd.AddCommand(newTrailCmd(app))
	rootCmd.AddCommand(newDataCmd(app))

	return rootCmd
}

func newLogger(cfg config.LogConfig, debug bool) zerolog.Logger {
	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Level
	logCfg.Console = cfg.Console
	logCfg.File = cfg.File
	if cfg.FilePath != "" {
		logCfg.FilePath = cfg.FilePath
	}
	if cfg.MaxSize > 0 {
		logCfg.MaxSize = cfg.MaxSize
	}
	logCfg.MaxBackups = cfg.MaxBackups
	logCfg.MaxAge = cfg.MaxAge

	logger := logging.NewLoggerWithConfig(logCfg)
	if debug {
		logging.SetDebugLevel()
		logger = logger.Level(zerolog.DebugLevel)
	}
	return logger
}

// openBroker builds the configured broker. The returned closer releases
// whatever the broker holds open.
func (app *App) openBroker() (broker.Broker, io.Closer, error) {
	cfg := app.Config
	switch cfg.Broker.Kind {
	case "zerodha":
		b := broker.NewZerodhaBroker(broker.ZerodhaConfig{
			APIKey:      cfg.Broker.APIKey,
			AccessToken: cfg.Broker.AccessToken,
			Exchange:    cfg.Broker.Exchange,
			Product:     cfg.Broker.Product,
		})
		return b, nopCloser{}, nil
	default:
		db, err := store.NewSQLiteStore(cfg.Paper.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening candle store: %w", err)
		}
		b := broker.NewPaperBroker(broker.PaperBrokerConfig{
			Data: db,
			Instruments: []models.InstrumentInfo{{
				Symbol:         cfg.Strategy.Symbol,
				MinVolume:      cfg.Paper.MinVolume,
				VolumeStep:     cfg.Paper.VolumeStep,
				PriceIncrement: cfg.Paper.PriceIncrement,
			}},
			Spread:         cfg.Paper.SpreadPips * cfg.Orders.PipSize,
			QuoteTimeframe: cfg.EntryTimeframe(),
		})
		return b, db, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Trend Trader v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View, validate and initialize config.toml.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration file path",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.Path(app.ConfigDir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load already validated; reaching here means the file is valid.
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a starter config.toml",
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(config.Path(app.ConfigDir)); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", config.Path(app.ConfigDir))
			}
			path, err := config.WriteTemplate(app.ConfigDir)
			if err != nil {
				return err
			}
			output.Success("Wrote %s", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing config.toml")
	cmd.AddCommand(initCmd)

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Strategy")
	output.Printf("  Symbol:          %s\n", cfg.Strategy.Symbol)
	output.Printf("  Timeframes:      %s entry, %s confirmation\n", cfg.Strategy.EntryTimeframe, cfg.Strategy.ConfirmTimeframe)
	output.Printf("  History:         %d bars\n", cfg.Strategy.HistoryBars)
	output.Printf("  MA long/short:   %d / %d\n", cfg.Strategy.MALong, cfg.Strategy.MAShort)
	output.Printf("  RSI / ATR:       %d / %d\n", cfg.Strategy.RSIPeriod, cfg.Strategy.ATRPeriod)
	output.Println()

	output.Bold("Orders")
	output.Printf("  Lot size:        %s\n", FormatVolume(cfg.Orders.LotSize))
	output.Printf("  SL / TP:         %.1f / %.1f pips (pip %g)\n", cfg.Orders.StopLossPips, cfg.Orders.TakeProfitPips, cfg.Orders.PipSize)
	output.Printf("  Slippage:        %d points\n", cfg.Orders.Slippage)
	output.Printf("  Precision:       %d\n", cfg.Orders.PricePrecision)
	output.Printf("  Magic / comment: %d / %q\n", cfg.Orders.Magic, cfg.Orders.Comment)
	output.Printf("  Policies:        %s / %s\n", cfg.Orders.FillPolicy, cfg.Orders.TimePolicy)
	output.Printf("  Trailing:        %v (x%g)\n", cfg.Orders.TrailingEnabled, cfg.Orders.TrailingATRMultiplier)
	output.Println()

	output.Bold("Scheduler")
	output.Printf("  Poll interval:   %s\n", cfg.Scheduler.PollInterval)
	output.Printf("  Cycle timeout:   %s\n", cfg.Scheduler.CycleTimeout)
	output.Printf("  Breaker:         %d failures, %s cooldown\n", cfg.Scheduler.BreakerFailures, cfg.Scheduler.BreakerCooldown)
	output.Println()

	output.Bold("Broker")
	output.Printf("  Kind:            %s\n", cfg.Broker.Kind)
	if cfg.IsPaperMode() {
		output.Printf("  Candle store:    %s\n", cfg.Paper.DBPath)
		output.Printf("  Spread:          %.1f pips\n", cfg.Paper.SpreadPips)
	} else {
		output.Printf("  Exchange:        %s (%s)\n", cfg.Broker.Exchange, cfg.Broker.Product)
		output.Printf("  API key:         %s\n", logging.MaskCredential(cfg.Broker.APIKey))
	}
	output.Printf("  Metrics:         %v %s\n", cfg.Metrics.Enabled, cfg.Metrics.Listen)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
