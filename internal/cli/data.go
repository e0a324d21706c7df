package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trend-trader/internal/models"
	"trend-trader/internal/store"
)

func newDataCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Candle store management",
		Long:  "Import candles into the paper broker's SQLite store and check their freshness.",
	}

	importCmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import candles from a CSV file",
		Long: `Reads a CSV with timestamp,open,high,low,close,volume columns and stores the
candles under the given symbol and timeframe. Existing bars with the same
timestamp are replaced.`,
		Example: `  trader data import audusd_m15.csv --timeframe 15min
  trader data import audusd_h1.csv --timeframe 1hour --symbol AUDUSD`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			tfFlag, _ := cmd.Flags().GetString("timeframe")
			tf, err := models.ParseTimeframe(tfFlag)
			if err != nil {
				return err
			}
			symbol, _ := cmd.Flags().GetString("symbol")
			if symbol == "" {
				symbol = app.Config.Strategy.Symbol
			}
			symbol = strings.ToUpper(symbol)

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			candles, err := store.ParseCSV(f)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			db, err := store.NewSQLiteStore(app.Config.Paper.DBPath)
			if err != nil {
				return fmt.Errorf("opening candle store: %w", err)
			}
			defer db.Close()

			if err := db.SaveCandles(cmd.Context(), symbol, tf, candles); err != nil {
				return err
			}
			app.Logger.Info().Str("symbol", symbol).Str("timeframe", string(tf)).Int("count", len(candles)).Msg("Imported candles")

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"symbol":    symbol,
					"timeframe": tf,
					"imported":  len(candles),
				})
			}
			output.Success("Imported %d %s %s candles into %s", len(candles), symbol, tf, app.Config.Paper.DBPath)
			return nil
		},
	}
	importCmd.Flags().StringP("timeframe", "t", "", "timeframe of the candles (e.g. 15min, 1hour)")
	importCmd.Flags().StringP("symbol", "s", "", "instrument symbol (default from config)")
	_ = importCmd.MarkFlagRequired("timeframe")
	cmd.AddCommand(importCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show stored candle coverage for the strategy timeframes",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			db, err := store.NewSQLiteStore(cfg.Paper.DBPath)
			if err != nil {
				return fmt.Errorf("opening candle store: %w", err)
			}
			defer db.Close()

			type status struct {
				Timeframe models.Timeframe `json:"timeframe"`
				Bars      int              `json:"bars"`
				Required  int              `json:"required"`
				Latest    time.Time        `json:"latest"`
				Ready     bool             `json:"ready"`
			}

			var rows []status
			for _, tf := range []models.Timeframe{cfg.EntryTimeframe(), cfg.ConfirmTimeframe()} {
				candles, err := db.LatestCandles(cmd.Context(), cfg.Strategy.Symbol, tf, cfg.Strategy.HistoryBars)
				if err != nil {
					return err
				}
				latest, err := db.GetCandlesFreshness(cmd.Context(), cfg.Strategy.Symbol, tf)
				if err != nil {
					return err
				}
				rows = append(rows, status{
					Timeframe: tf,
					Bars:      len(candles),
					Required:  cfg.MinCandles(),
					Latest:    latest,
					Ready:     len(candles) >= cfg.MinCandles(),
				})
			}

			if output.IsJSON() {
				return output.JSON(rows)
			}

			output.Bold("%s candles in %s", cfg.Strategy.Symbol, cfg.Paper.DBPath)
			table := NewTable(output, "TIMEFRAME", "BARS", "REQUIRED", "LATEST", "READY")
			now := time.Now()
			for _, r := range rows {
				table.AddRow(string(r.Timeframe), fmt.Sprintf("%d", r.Bars), fmt.Sprintf("%d", r.Required),
					FormatAge(r.Latest, now), output.Check(r.Ready))
			}
			table.Render()
			return nil
		},
	})

	return cmd
}
