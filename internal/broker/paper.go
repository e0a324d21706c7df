package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "trend-trader/internal/errors"
	"trend-trader/internal/models"
	"trend-trader/internal/store"
)

// PaperBroker simulates execution against candles held in a CandleStore.
type PaperBroker struct {
	data        store.CandleStore
	instruments map[string]models.InstrumentInfo
	spread      float64
	quoteTF     models.Timeframe
	now         func() time.Time

	mu        sync.RWMutex
	orders    []models.OrderResult
	positions map[string]*models.Position
}

// PaperBrokerConfig holds configuration for paper broker.
type PaperBrokerConfig struct {
	Data        store.CandleStore
	Instruments []models.InstrumentInfo
	// Spread is the full bid/ask spread in price units, centred on the last close.
	Spread float64
	// QuoteTimeframe is the series whose last close is used as the mid price.
	QuoteTimeframe models.Timeframe
}

// NewPaperBroker creates a new paper trading broker.
func NewPaperBroker(cfg PaperBrokerConfig) *PaperBroker {
	instruments := make(map[string]models.InstrumentInfo, len(cfg.Instruments))
	for _, inst := range cfg.Instruments {
		instruments[inst.Symbol] = inst
	}
	quoteTF := cfg.QuoteTimeframe
	if quoteTF == "" {
		quoteTF = models.Timeframe1Min
	}

	return &PaperBroker{
		data:        cfg.Data,
		instruments: instruments,
		spread:      cfg.Spread,
		quoteTF:     quoteTF,
		now:         time.Now,
		positions:   make(map[string]*models.Position),
	}
}

// Ping succeeds once a data store is attached.
func (p *PaperBroker) Ping(ctx context.Context) error {
	if p.data == nil {
		return fmt.Errorf("paper broker: no data store configured: %w", apperrors.ErrCollaboratorUnavailable)
	}
	return nil
}

// FetchCandles returns the newest count candles from the store.
func (p *PaperBroker) FetchCandles(ctx context.Context, symbol string, tf models.Timeframe, count int) ([]models.Candle, error) {
	candles, err := p.data.LatestCandles(ctx, symbol, tf, count)
	if err != nil {
		return nil, apperrors.NewBrokerError("fetch_candles", symbol, err)
	}
	return candles, nil
}

// CurrentQuote derives bid and ask from the latest stored close.
func (p *PaperBroker) CurrentQuote(ctx context.Context, symbol string) (models.Quote, error) {
	candles, err := p.data.LatestCandles(ctx, symbol, p.quoteTF, 1)
	if err != nil {
		return models.Quote{}, apperrors.NewBrokerError("current_quote", symbol, err)
	}
	if len(candles) == 0 {
		return models.Quote{}, apperrors.NewBrokerError("current_quote", symbol,
			fmt.Errorf("no %s candles stored: %w", p.quoteTF, apperrors.ErrQuoteUnavailable))
	}

	mid := candles[0].Close
	return models.Quote{
		Symbol: symbol,
		Bid:    mid - p.spread/2,
		Ask:    mid + p.spread/2,
		Time:   candles[0].Timestamp,
	}, nil
}

// InstrumentInfo returns the configured constraints for symbol.
func (p *PaperBroker) InstrumentInfo(ctx context.Context, symbol string) (models.InstrumentInfo, error) {
	inst, ok := p.instruments[symbol]
	if !ok {
		return models.InstrumentInfo{}, apperrors.NewBrokerError("instrument_info", symbol, apperrors.ErrSymbolUnavailable)
	}
	return inst, nil
}

// SubmitOrder fills the request immediately at its reference price.
func (p *PaperBroker) SubmitOrder(ctx context.Context, req models.OrderRequest) (*models.OrderResult, error) {
	inst, ok := p.instruments[req.Symbol]
	if !ok {
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "unknown symbol", apperrors.ErrExecutionFailure)
	}
	if req.Volume < inst.MinVolume {
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side),
			fmt.Sprintf("volume %.2f below minimum %.2f", req.Volume, inst.MinVolume), apperrors.ErrExecutionFailure)
	}
	if req.Side == models.SideBuy && !(req.StopLoss < req.Price && req.Price < req.TakeProfit) ||
		req.Side == models.SideSell && !(req.TakeProfit < req.Price && req.Price < req.StopLoss) {
		return nil, apperrors.NewOrderError(req.Symbol, string(req.Side), "invalid stops", apperrors.ErrExecutionFailure)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	result := models.OrderResult{
		OrderID: "PAPER-" + uuid.NewString(),
		Status:  "FILLED",
		Price:   req.Price,
		Volume:  req.Volume,
		Comment: req.Comment,
	}
	p.orders = append(p.orders, result)
	p.positions[req.Symbol] = &models.Position{
		Symbol:     req.Symbol,
		Side:       req.Side,
		Volume:     req.Volume,
		EntryPrice: req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OrderID:    result.OrderID,
		OpenedAt:   p.now(),
	}

	return &result, nil
}

// ModifyStop moves the simulated position's stop-loss.
func (p *PaperBroker) ModifyStop(ctx context.Context, symbol string, stopLoss float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return apperrors.NewBrokerError("modify_stop", symbol, apperrors.ErrNoPosition)
	}
	pos.StopLoss = stopLoss
	return nil
}

// Orders returns a copy of every filled order.
func (p *PaperBroker) Orders() []models.OrderResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.OrderResult, len(p.orders))
	copy(out, p.orders)
	return out
}

// Position returns the simulated position for symbol.
func (p *PaperBroker) Position(symbol string) (models.Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.positions[symbol]
	if !ok {
		return models.Position{}, false
	}
	return *pos, true
}
