package trading

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"trend-trader/internal/broker"
	apperrors "trend-trader/internal/errors"
	"trend-trader/internal/logging"
	"trend-trader/internal/models"
	"trend-trader/internal/resilience"
)

// isCollaboratorFailure reports whether err says the broker is unhealthy, as
// opposed to answering with a business rejection.
func isCollaboratorFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, apperrors.ErrSymbolUnavailable),
		errors.Is(err, apperrors.ErrExecutionFailure),
		errors.Is(err, apperrors.ErrNoPosition):
		return false
	}
	return true
}

// guardedBroker routes every broker call through a circuit breaker and logs it.
type guardedBroker struct {
	inner  broker.Broker
	cb     *resilience.CircuitBreaker
	logger zerolog.Logger
}

// guardedStopBroker is a guardedBroker whose inner broker can move stops.
type guardedStopBroker struct {
	guardedBroker
	modifier broker.StopModifier
}

// guard wraps b so the returned broker also implements broker.StopModifier
// exactly when b does.
func guard(b broker.Broker, cb *resilience.CircuitBreaker, logger zerolog.Logger) broker.Broker {
	g := guardedBroker{inner: b, cb: cb, logger: logger}
	if m, ok := b.(broker.StopModifier); ok {
		return &guardedStopBroker{guardedBroker: g, modifier: m}
	}
	return &g
}

func call[T any](g *guardedBroker, ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := resilience.ExecuteWithResult(g.cb, ctx, fn)
	logging.LogAPICall(logging.WithOperation(g.logger, op), "broker", op, time.Since(start), err)
	return v, err
}

func (g *guardedBroker) FetchCandles(ctx context.Context, symbol string, tf models.Timeframe, count int) ([]models.Candle, error) {
	return call(g, ctx, "fetch_candles", func(ctx context.Context) ([]models.Candle, error) {
		return g.inner.FetchCandles(ctx, symbol, tf, count)
	})
}

func (g *guardedBroker) CurrentQuote(ctx context.Context, symbol string) (models.Quote, error) {
	return call(g, ctx, "current_quote", func(ctx context.Context) (models.Quote, error) {
		return g.inner.CurrentQuote(ctx, symbol)
	})
}

func (g *guardedBroker) InstrumentInfo(ctx context.Context, symbol string) (models.InstrumentInfo, error) {
	return call(g, ctx, "instrument_info", func(ctx context.Context) (models.InstrumentInfo, error) {
		return g.inner.InstrumentInfo(ctx, symbol)
	})
}

func (g *guardedBroker) SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	return call(g, ctx, "submit_order", func(ctx context.Context) (*models.OrderResult, error) {
		return g.inner.SubmitOrder(ctx, req)
	})
}

func (g *guardedStopBroker) ModifyStop(ctx context.Context, symbol string, stopLoss float64) error {
	start := time.Now()
	err := g.cb.Execute(ctx, func(ctx context.Context) error {
		return g.modifier.ModifyStop(ctx, symbol, stopLoss)
	})
	logging.LogAPICall(logging.WithOperation(g.logger, "modify_stop"), "broker", "modify_stop", time.Since(start), err)
	return err
}
