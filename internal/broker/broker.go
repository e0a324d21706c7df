// Package broker provides broker integration interfaces and implementations.
package broker

import (
	"context"

	"trend-trader/internal/models"
)

// Broker is the market-data and execution collaborator. Implementations own
// session lifecycle, transport and retries; callers only see these calls.
type Broker interface {
	// FetchCandles returns up to count recent candles. Order is not guaranteed;
	// callers normalize with models.NewSeries.
	FetchCandles(ctx context.Context, symbol string, tf models.Timeframe, count int) ([]models.Candle, error)
	// CurrentQuote returns the current bid and ask.
	CurrentQuote(ctx context.Context, symbol string) (models.Quote, error)
	// InstrumentInfo returns trading constraints, or an error wrapping
	// errors.ErrSymbolUnavailable when the instrument is unknown.
	InstrumentInfo(ctx context.Context, symbol string) (models.InstrumentInfo, error)
	// SubmitOrder transmits the request. A rejection is returned as an error
	// wrapping errors.ErrExecutionFailure.
	SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error)
}

// SessionChecker is implemented by brokers that hold a session which must be
// confirmed before trading starts.
type SessionChecker interface {
	Ping(ctx context.Context) error
}

// StopModifier is implemented by brokers that can move the stop-loss of an
// open position.
type StopModifier interface {
	ModifyStop(ctx context.Context, symbol string, stopLoss float64) error
}
