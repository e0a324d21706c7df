package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trend-trader/internal/metrics"
	"trend-trader/internal/models"
	"trend-trader/internal/resilience"
	"trend-trader/internal/trading"
)

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the trading loop",
		Long: `Confirms the broker session, then runs one decision cycle every
poll_interval until interrupted. A failed cycle is logged and the loop
continues; only a broker that cannot be reached at startup stops it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config
			once, _ := cmd.Flags().GetBool("once")

			b, closer, err := app.openBroker()
			if err != nil {
				return err
			}
			defer closer.Close()

			var m *metrics.Metrics
			if cfg.Metrics.Enabled {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				m = metrics.New(reg)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := trading.NewScheduler(cfg, b, app.Logger, m)
			if err := sched.Start(ctx); err != nil {
				return err
			}

			if once {
				report := sched.RunCycle(ctx)
				return printReport(output, report, cfg.Orders.PricePrecision)
			}

			if !output.IsJSON() {
				output.Info("Trading %s every %s on %s broker (Ctrl+C to stop)",
					cfg.Strategy.Symbol, cfg.Scheduler.PollInterval, cfg.Broker.Kind)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return sched.Run(gctx) })
			if m != nil {
				app.Logger.Info().Str("listen", cfg.Metrics.Listen).Msg("Serving metrics")
				g.Go(func() error { return m.Serve(gctx, cfg.Metrics.Listen) })
			}
			err = g.Wait()

			stats := sched.Breaker().Stats()
			app.Logger.Info().
				Str("breaker", string(stats.State)).
				Int64("broker_calls", stats.TotalRequests).
				Float64("failure_rate", stats.FailureRate()).
				Msg("Trading loop stopped")
			return err
		},
	}

	cmd.Flags().Bool("once", false, "run a single cycle and print its report")
	return cmd
}

// cycleView is the JSON shape of a cycle report.
type cycleView struct {
	ID         string               `json:"id"`
	StartedAt  time.Time            `json:"started_at"`
	DurationMS int64                `json:"duration_ms"`
	Outcome    string               `json:"outcome"`
	Signal     models.Signal        `json:"signal"`
	Order      *models.OrderRequest `json:"order,omitempty"`
	Result     *models.OrderResult  `json:"result,omitempty"`
	Trail      *trading.TrailResult `json:"trail,omitempty"`
	Breaker    breakerView          `json:"breaker"`
	Error      string               `json:"error,omitempty"`
}

type breakerView struct {
	State       string  `json:"state"`
	Requests    int64   `json:"requests"`
	Failures    int64   `json:"failures"`
	Rejected    int64   `json:"rejected"`
	FailureRate float64 `json:"failure_rate"`
}

func newBreakerView(s resilience.CircuitBreakerStats) breakerView {
	return breakerView{
		State:       string(s.State),
		Requests:    s.TotalRequests,
		Failures:    s.TotalFailures,
		Rejected:    s.TotalRejected,
		FailureRate: s.FailureRate(),
	}
}

func printReport(output *Output, report trading.CycleReport, precision int32) error {
	view := cycleView{
		ID:         report.ID,
		StartedAt:  report.StartedAt,
		DurationMS: report.Duration.Milliseconds(),
		Outcome:    string(report.Outcome),
		Signal:     report.Signal,
		Order:      report.Order,
		Result:     report.Result,
		Trail:      report.Trail,
		Breaker:    newBreakerView(report.Breaker),
	}
	if report.Err != nil {
		view.Error = report.Err.Error()
	}
	if output.IsJSON() {
		return output.JSON(view)
	}

	output.Bold("Cycle %s", report.ID)
	output.Printf("  Outcome:  %s\n", report.Outcome)
	output.Printf("  Signal:   %s\n", output.Signal(report.Signal))
	output.Printf("  Duration: %s\n", report.Duration.Round(time.Millisecond))
	if report.Order != nil {
		printOrder(output, *report.Order, precision)
	}
	if report.Result != nil {
		output.Printf("  Order ID: %s (%s)\n", report.Result.OrderID, report.Result.Status)
	}
	if report.Trail != nil && report.Trail.Moved {
		output.Printf("  Stop:     %s -> %s\n", FormatPrice(report.Trail.Previous, precision), FormatPrice(report.Trail.Candidate, precision))
	}
	output.Printf("  Breaker:  %s (%.0f%% failed of %d calls)\n", view.Breaker.State, view.Breaker.FailureRate, view.Breaker.Requests)
	if report.Err != nil {
		output.Warning("  %v", report.Err)
	}
	return nil
}
