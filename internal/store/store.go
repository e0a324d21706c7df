// Package store provides candle persistence for the paper broker and data tooling.
// Only market data is stored; orders and positions are never persisted.
package store

import (
	"context"
	"time"

	"trend-trader/internal/models"
)

// CandleStore defines the interface for candle persistence.
type CandleStore interface {
	SaveCandles(ctx context.Context, symbol string, tf models.Timeframe, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol string, tf models.Timeframe, from, to time.Time) ([]models.Candle, error)
	LatestCandles(ctx context.Context, symbol string, tf models.Timeframe, n int) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol string, tf models.Timeframe) (time.Time, error)
	Close() error
}
