package cli

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trend-trader/internal/analysis/indicators"
	"trend-trader/internal/analysis/mtf"
	"trend-trader/internal/models"
	"trend-trader/internal/trading"
)

func newSignalCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "signal",
		Short: "Evaluate the current signal without trading",
		Long: `Fetches both timeframes, computes the indicators and prints every
condition behind the fused BUY/SELL/HOLD signal. No order is built or sent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			sched, closer, err := app.openScheduler(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			eval, err := sched.Evaluate(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(newEvaluationView(eval))
			}
			printEvaluation(output, eval, app.Config.Orders.PricePrecision)
			return nil
		},
	}
}

func newOrderCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Order inspection",
	}

	preview := &cobra.Command{
		Use:   "preview",
		Short: "Show the order the current signal would submit",
		Long: `Builds the order request for the current signal, or for --side when
given, using live instrument metadata and quote. Nothing is submitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			sideFlag, _ := cmd.Flags().GetString("side")

			signal := models.SignalHold
			switch strings.ToUpper(sideFlag) {
			case "":
			case string(models.SideBuy):
				signal = models.SignalBuy
			case string(models.SideSell):
				signal = models.SignalSell
			default:
				return fmt.Errorf("invalid --side %q (use buy or sell)", sideFlag)
			}

			sched, closer, err := app.openScheduler(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			if signal == models.SignalHold {
				eval, err := sched.Evaluate(cmd.Context())
				if err != nil {
					return err
				}
				if eval.Err != nil {
					return eval.Err
				}
				signal = eval.Signal
			}
			if !signal.IsActionable() {
				if output.IsJSON() {
					return output.JSON(map[string]string{"signal": string(signal)})
				}
				output.Warning("Signal is %s, no order would be placed", signal)
				return nil
			}

			req, err := sched.Builder().Build(cmd.Context(), signal)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(req)
			}
			output.Bold("Order preview (%s)", output.Signal(signal))
			printOrder(output, *req, app.Config.Orders.PricePrecision)
			return nil
		},
	}
	preview.Flags().String("side", "", "build for buy or sell instead of the current signal")
	cmd.AddCommand(preview)

	return cmd
}

func newTrailCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trail",
		Short: "Compute a volatility trailing stop",
		Long: `Prints entry - atr*k for a long or entry + atr*k for a short, rounded
to the configured precision. With --current it also reports whether the
result would tighten the existing stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config

			sideFlag, _ := cmd.Flags().GetString("side")
			entry, _ := cmd.Flags().GetFloat64("entry")
			atr, _ := cmd.Flags().GetFloat64("atr")
			current, _ := cmd.Flags().GetFloat64("current")
			k := cfg.Orders.TrailingATRMultiplier
			if cmd.Flags().Changed("k") {
				k, _ = cmd.Flags().GetFloat64("k")
			}

			side := models.Side(strings.ToUpper(sideFlag))
			if side != models.SideBuy && side != models.SideSell {
				return fmt.Errorf("invalid --side %q (use buy or sell)", sideFlag)
			}
			for name, v := range map[string]float64{"entry": entry, "atr": atr, "k": k, "current": current} {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("--%s must be a finite number", name)
				}
			}
			if entry <= 0 {
				return fmt.Errorf("--entry must be positive")
			}
			if atr < 0 {
				return fmt.Errorf("--atr must not be negative")
			}

			stop := trading.RoundPrice(trading.TrailingStop(side, entry, atr, k), cfg.Orders.PricePrecision)
			tightens := trading.Tightens(side, current, stop)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"side":      side,
					"entry":     entry,
					"atr":       atr,
					"k":         k,
					"stop_loss": stop,
					"current":   current,
					"tightens":  tightens,
				})
			}

			output.Printf("Side:      %s\n", side)
			output.Printf("Entry:     %s\n", FormatPrice(entry, cfg.Orders.PricePrecision))
			output.Printf("ATR x k:   %s x %g\n", FormatIndicator(atr, int(cfg.Orders.PricePrecision)), k)
			output.Printf("Stop loss: %s\n", FormatPrice(stop, cfg.Orders.PricePrecision))
			if cmd.Flags().Changed("current") {
				output.Printf("Tightens:  %s\n", output.Check(tightens))
			}
			return nil
		},
	}

	cmd.Flags().String("side", "", "position side: buy or sell")
	cmd.Flags().Float64("entry", 0, "position entry price")
	cmd.Flags().Float64("atr", 0, "current volatility (ATR)")
	cmd.Flags().Float64("k", 0, "volatility multiplier (default from config)")
	cmd.Flags().Float64("current", 0, "existing stop-loss to compare against")
	_ = cmd.MarkFlagRequired("side")
	_ = cmd.MarkFlagRequired("entry")
	_ = cmd.MarkFlagRequired("atr")

	return cmd
}

// openScheduler opens the configured broker and confirms its session.
func (app *App) openScheduler(cmd *cobra.Command) (*trading.Scheduler, io.Closer, error) {
	b, closer, err := app.openBroker()
	if err != nil {
		return nil, nil, err
	}
	sched := trading.NewScheduler(app.Config, b, app.Logger, nil)
	if err := sched.Start(cmd.Context()); err != nil {
		closer.Close()
		return nil, nil, err
	}
	return sched, closer, nil
}

func printEvaluation(output *Output, eval *mtf.Evaluation, precision int32) {
	output.Bold("%s", eval.Symbol)

	table := NewTable(output, "TIMEFRAME", "TIME", "CLOSE", "MA LONG", "MA SHORT", "RSI", "ATR")
	addRow := func(name string, r indicators.Row) {
		ts := "-"
		if !r.Timestamp.IsZero() {
			ts = FormatTime(r.Timestamp)
		}
		table.AddRow(name, ts,
			FormatPrice(r.Close, precision),
			FormatPrice(r.MALong, precision),
			FormatPrice(r.MAShort, precision),
			FormatIndicator(r.RSI, 2),
			FormatIndicator(r.ATR, int(precision)),
		)
	}
	addRow("entry", eval.Entry)
	addRow("confirm", eval.Confirm)
	table.Render()
	output.Println()

	conditions := NewTable(output, "CONDITION", "BUY", "SELL")
	for _, c := range eval.Conditions {
		conditions.AddRow(c.Name, output.Check(c.Buy), output.Check(c.Sell))
	}
	conditions.Render()
	output.Println()

	output.Printf("Signal: %s\n", output.Signal(eval.Signal))
	if eval.Err != nil {
		output.Warning("%v", eval.Err)
	}
}

func printOrder(output *Output, req models.OrderRequest, precision int32) {
	output.Printf("  Side:      %s %s\n", req.Side, req.Type)
	output.Printf("  Symbol:    %s\n", req.Symbol)
	output.Printf("  Volume:    %s\n", FormatVolume(req.Volume))
	output.Printf("  Price:     %s\n", FormatPrice(req.Price, precision))
	output.Printf("  Stop loss: %s\n", FormatPrice(req.StopLoss, precision))
	output.Printf("  Target:    %s\n", FormatPrice(req.TakeProfit, precision))
	output.Printf("  Deviation: %d points\n", req.Deviation)
	output.Printf("  Policies:  %s / %s\n", req.Fill, req.Time)
	output.Dim("  %s #%d %q", req.ClientID, req.Magic, req.Comment)
}

// rowView is an indicator row with undefined values as null.
type rowView struct {
	Timestamp time.Time `json:"timestamp"`
	Close     *float64  `json:"close"`
	MALong    *float64  `json:"ma_long"`
	MAShort   *float64  `json:"ma_short"`
	RSI       *float64  `json:"rsi"`
	ATR       *float64  `json:"atr"`
}

type conditionView struct {
	Name string `json:"name"`
	Buy  bool   `json:"buy"`
	Sell bool   `json:"sell"`
}

type evaluationView struct {
	Symbol     string          `json:"symbol"`
	Signal     models.Signal   `json:"signal"`
	Entry      rowView         `json:"entry"`
	Confirm    rowView         `json:"confirm"`
	Conditions []conditionView `json:"conditions"`
	Error      string          `json:"error,omitempty"`
}

func newEvaluationView(eval *mtf.Evaluation) evaluationView {
	view := evaluationView{
		Symbol:  eval.Symbol,
		Signal:  eval.Signal,
		Entry:   newRowView(eval.Entry),
		Confirm: newRowView(eval.Confirm),
	}
	for _, c := range eval.Conditions {
		view.Conditions = append(view.Conditions, conditionView(c))
	}
	if eval.Err != nil {
		view.Error = eval.Err.Error()
	}
	return view
}

func newRowView(r indicators.Row) rowView {
	return rowView{
		Timestamp: r.Timestamp,
		Close:     defined(r.Close),
		MALong:    defined(r.MALong),
		MAShort:   defined(r.MAShort),
		RSI:       defined(r.RSI),
		ATR:       defined(r.ATR),
	}
}

func defined(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
