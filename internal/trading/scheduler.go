package trading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"trend-trader/internal/analysis/mtf"
	"trend-trader/internal/broker"
	"trend-trader/internal/config"
	apperrors "trend-trader/internal/errors"
	"trend-trader/internal/logging"
	"trend-trader/internal/metrics"
	"trend-trader/internal/models"
	"trend-trader/internal/resilience"
)

// CycleOutcome classifies how a cycle ended.
type CycleOutcome string

const (
	OutcomeHold             CycleOutcome = "hold"
	OutcomeInsufficientData CycleOutcome = "insufficient_data"
	OutcomeOrderPlaced      CycleOutcome = "order_placed"
	OutcomeOrderSkipped     CycleOutcome = "order_skipped"
	OutcomeOrderFailed      CycleOutcome = "order_failed"
	OutcomeFetchFailed      CycleOutcome = "fetch_failed"
	OutcomeCircuitOpen      CycleOutcome = "circuit_open"
	OutcomeFailed           CycleOutcome = "failed"
	OutcomePanic            CycleOutcome = "panic"
)

// CycleReport summarizes one decision cycle. Err carries whatever went wrong
// inside the cycle; it never escapes the loop.
type CycleReport struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	Outcome    CycleOutcome
	Signal     models.Signal
	Evaluation *mtf.Evaluation
	Order      *models.OrderRequest
	Result     *models.OrderResult
	Trail      *TrailResult
	Breaker    resilience.CircuitBreakerStats
	Err        error
}

// Scheduler drives the fetch, evaluate, build and submit cycle at a fixed
// interval. Cycles never overlap and the wait between them is cancellable.
type Scheduler struct {
	cfg       *config.Config
	session   broker.Broker
	broker    broker.Broker
	breaker   *resilience.CircuitBreaker
	analyzer  *mtf.Analyzer
	builder   *OrderBuilder
	positions *PositionTracker
	logger    zerolog.Logger
	metrics   *metrics.Metrics

	started bool
}

// NewScheduler wires the decision pipeline around b. m may be nil.
func NewScheduler(cfg *config.Config, b broker.Broker, logger zerolog.Logger, m *metrics.Metrics) *Scheduler {
	logger = logging.WithTimeframes(logging.WithSymbol(logger, cfg.Strategy.Symbol),
		cfg.Strategy.EntryTimeframe, cfg.Strategy.ConfirmTimeframe)

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	breakerCfg.FailureThreshold = cfg.Scheduler.BreakerFailures
	breakerCfg.Cooldown = cfg.Scheduler.BreakerCooldown
	breakerCfg.IsFailure = isCollaboratorFailure
	breakerCfg.OnStateChange = func(name string, from, to resilience.CircuitState) {
		logger.Warn().Str("breaker", name).Str("from", string(from)).Str("to", string(to)).Msg("Circuit breaker state changed")
		m.SetBreakerOpen(to == resilience.CircuitOpen)
	}
	breaker := resilience.NewCircuitBreaker("broker", breakerCfg)
	guarded := guard(b, breaker, logger)

	return &Scheduler{
		cfg:       cfg,
		session:   b,
		broker:    guarded,
		breaker:   breaker,
		analyzer:  mtf.NewAnalyzer(cfg.Windows()),
		builder:   NewOrderBuilder(cfg.Strategy.Symbol, cfg.Orders, guarded),
		positions: NewPositionTracker(guarded, cfg.Orders.PricePrecision),
		logger:    logger,
		metrics:   m,
	}
}

// Positions returns the tracker holding the last-known position.
func (s *Scheduler) Positions() *PositionTracker {
	return s.positions
}

// Builder returns the order builder used by the cycle.
func (s *Scheduler) Builder() *OrderBuilder {
	return s.builder
}

// Breaker returns the circuit breaker guarding broker calls.
func (s *Scheduler) Breaker() *resilience.CircuitBreaker {
	return s.breaker
}

// Start confirms the broker session. The loop must not run when this fails.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.session == nil {
		return fmt.Errorf("no broker configured: %w", apperrors.ErrCollaboratorUnavailable)
	}
	if checker, ok := s.session.(broker.SessionChecker); ok {
		if err := checker.Ping(ctx); err != nil {
			if errors.Is(err, apperrors.ErrCollaboratorUnavailable) {
				return err
			}
			return fmt.Errorf("broker session: %v: %w", err, apperrors.ErrCollaboratorUnavailable)
		}
	}

	s.breaker.Reset()
	s.started = true
	s.logger.Info().
		Str("entry_tf", s.cfg.Strategy.EntryTimeframe).
		Str("confirm_tf", s.cfg.Strategy.ConfirmTimeframe).
		Dur("poll_interval", s.cfg.Scheduler.PollInterval).
		Msg("Broker session confirmed")
	return nil
}

// Run executes cycles until ctx is cancelled. Only a failed Start is
// returned as an error; cancellation ends the loop cleanly.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started {
		if err := s.Start(ctx); err != nil {
			return err
		}
	}

	for {
		if ctx.Err() != nil {
			s.logger.Info().Msg("Scheduler stopped")
			return nil
		}

		s.RunCycle(ctx)

		timer := time.NewTimer(s.cfg.Scheduler.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("Scheduler stopped")
			return nil
		case <-timer.C:
		}
	}
}

// Evaluate fetches both timeframes and returns the fused evaluation without
// building or submitting an order.
func (s *Scheduler) Evaluate(ctx context.Context) (*mtf.Evaluation, error) {
	entry, confirm, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Evaluate(ctx, entry, confirm)
}

// RunCycle performs one fetch, evaluate, build and submit pass. Every error,
// including a panic, is contained in the returned report.
func (s *Scheduler) RunCycle(ctx context.Context) (report CycleReport) {
	report = CycleReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Signal:    models.SignalHold,
	}
	logger := logging.WithCycle(s.logger, report.ID)

	if timeout := s.cfg.Scheduler.CycleTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ctx = logging.WithLogger(ctx, logger)

	defer func() {
		if r := recover(); r != nil {
			report.Outcome = OutcomePanic
			report.Err = fmt.Errorf("cycle panic: %v", r)
		}
		report.Duration = time.Since(report.StartedAt)
		report.Breaker = s.breaker.Stats()
		s.metrics.ObserveCycle(string(report.Outcome), report.Duration)
		logging.LogCycle(logger, string(report.Outcome), report.Duration, report.Err)
	}()

	s.cycle(ctx, logger, &report)
	return report
}

func (s *Scheduler) cycle(ctx context.Context, logger zerolog.Logger, report *CycleReport) {
	entry, confirm, err := s.fetch(ctx)
	if err != nil {
		report.Err = err
		report.Outcome = OutcomeFetchFailed
		if errors.Is(err, resilience.ErrCircuitOpen) {
			report.Outcome = OutcomeCircuitOpen
		}
		return
	}

	eval, err := s.analyzer.Evaluate(ctx, entry, confirm)
	if err != nil {
		report.Err = err
		report.Outcome = OutcomeFailed
		return
	}
	report.Evaluation = eval
	report.Signal = eval.Signal
	s.metrics.ObserveSignal(string(eval.Signal))
	logging.LogSignal(logger, eval.Symbol, string(eval.Signal), eval.Entry.Close, eval.Entry.MALong, eval.Entry.MAShort, eval.Entry.RSI)

	if s.cfg.Orders.TrailingEnabled {
		s.trail(ctx, logger, eval.Entry.ATR, report)
	}

	if eval.Err != nil {
		report.Err = eval.Err
		report.Outcome = OutcomeInsufficientData
		return
	}
	if !eval.Signal.IsActionable() {
		report.Outcome = OutcomeHold
		return
	}

	req, err := s.builder.Build(ctx, eval.Signal)
	if err != nil {
		report.Err = err
		report.Outcome = OutcomeOrderSkipped
		s.metrics.ObserveOrder("skipped")
		return
	}
	report.Order = req
	logging.LogOrder(logger, req.ClientID, req.Symbol, string(req.Side), req.Volume, req.Price, req.StopLoss, req.TakeProfit)

	res, err := s.broker.SubmitOrder(ctx, *req)
	report.Result = res
	if res != nil {
		s.positions.OpenFromOrder(*req, res)
	}

	orderID, status, price := "", "", 0.0
	if res != nil {
		orderID, status, price = res.OrderID, res.Status, res.Price
	}
	logging.LogOrderResult(logger, orderID, req.Symbol, status, price, err)

	if err != nil {
		report.Err = err
		report.Outcome = OutcomeOrderFailed
		s.metrics.ObserveOrder("rejected")
		return
	}
	report.Outcome = OutcomeOrderPlaced
	s.metrics.ObserveOrder("filled")
}

// fetch loads both timeframes concurrently and normalizes them into series.
func (s *Scheduler) fetch(ctx context.Context) (entry, confirm models.Series, err error) {
	symbol := s.cfg.Strategy.Symbol
	count := s.cfg.Strategy.HistoryBars
	entryTF, confirmTF := s.cfg.EntryTimeframe(), s.cfg.ConfirmTimeframe()

	var entryCandles, confirmCandles []models.Candle
	var (
		panicMu  sync.Mutex
		panicked any
	)
	load := func(ctx context.Context, tf models.Timeframe, dst *[]models.Candle) func() error {
		return func() (err error) {
			// Re-raised on the cycle goroutine so RunCycle can contain it.
			defer func() {
				if r := recover(); r != nil {
					panicMu.Lock()
					if panicked == nil {
						panicked = r
					}
					panicMu.Unlock()
					err = fmt.Errorf("fetching %s candles: panic", tf)
				}
			}()
			c, err := s.broker.FetchCandles(ctx, symbol, tf, count)
			if err != nil {
				return apperrors.Wrapf(err, "fetching %s candles", tf)
			}
			*dst = c
			return nil
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(load(gctx, entryTF, &entryCandles))
	g.Go(load(gctx, confirmTF, &confirmCandles))
	err = g.Wait()
	if panicked != nil {
		panic(panicked)
	}
	if err != nil {
		return models.Series{}, models.Series{}, err
	}

	// Brokers may return more bars than asked for; the window is fixed per cycle.
	entry = models.NewSeries(symbol, entryTF, entryCandles).Tail(count)
	confirm = models.NewSeries(symbol, confirmTF, confirmCandles).Tail(count)
	return entry, confirm, nil
}

// trail tightens the tracked position's stop from the latest entry ATR.
// Failures are logged and recorded on the report without affecting the signal path.
func (s *Scheduler) trail(ctx context.Context, logger zerolog.Logger, atr float64, report *CycleReport) {
	pos, ok := s.positions.Current()
	if !ok || math.IsNaN(atr) {
		return
	}

	candidate := TrailingStop(pos.Side, pos.EntryPrice, atr, s.cfg.Orders.TrailingATRMultiplier)
	result, err := s.positions.ApplyTrailingStop(ctx, candidate)
	report.Trail = &result
	if err != nil {
		logger.Warn().Err(err).Float64("candidate", result.Candidate).Msg("Trailing stop not applied")
		return
	}

	logging.LogTrailingStop(logger, result.Symbol, result.Previous, result.Candidate, result.Moved)
	if result.Moved {
		s.metrics.ObserveTrailingStop()
	}
}
