package trading

import (
	"context"
	"fmt"
	"sync"

	"trend-trader/internal/broker"
	apperrors "trend-trader/internal/errors"
	"trend-trader/internal/models"
)

// PositionTracker holds the last-known open position in memory and applies
// trailing stop updates to it. Only tightening moves are applied.
type PositionTracker struct {
	broker    broker.Broker
	precision int32

	mu       sync.RWMutex
	position *models.Position
}

// TrailResult describes one trailing stop evaluation.
type TrailResult struct {
	Symbol    string  `json:"symbol"`
	Previous  float64 `json:"previous"`
	Candidate float64 `json:"candidate"`
	Moved     bool    `json:"moved"`
	// Pushed is true when the new stop was also sent to the broker.
	Pushed bool `json:"pushed"`
}

// NewPositionTracker creates a tracker. b may be nil when stops are only
// tracked locally.
func NewPositionTracker(b broker.Broker, precision int32) *PositionTracker {
	return &PositionTracker{broker: b, precision: precision}
}

// Open records pos as the current position, replacing any previous one.
func (pt *PositionTracker) Open(pos models.Position) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.position = &pos
}

// OpenFromOrder records the position created by a submitted request.
func (pt *PositionTracker) OpenFromOrder(req models.OrderRequest, res *models.OrderResult) models.Position {
	pos := models.Position{
		Symbol:     req.Symbol,
		Side:       req.Side,
		Volume:     req.Volume,
		EntryPrice: req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenedAt:   req.CreatedAt,
	}
	if res != nil {
		pos.OrderID = res.OrderID
		if res.Price > 0 {
			pos.EntryPrice = res.Price
		}
		if res.Volume > 0 {
			pos.Volume = res.Volume
		}
	}
	pt.Open(pos)
	return pos
}

// Current returns the tracked position.
func (pt *PositionTracker) Current() (models.Position, bool) {
	pt.mu.RLock()
	defer pt.mu.RUnlock()
	if pt.position == nil {
		return models.Position{}, false
	}
	return *pt.position, true
}

// Clear forgets the tracked position.
func (pt *PositionTracker) Clear() {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.position = nil
}

// ApplyTrailingStop moves the stop to candidate if that tightens it. When the
// broker can modify stops the move is sent first and only recorded once the
// broker accepts it.
func (pt *PositionTracker) ApplyTrailingStop(ctx context.Context, candidate float64) (TrailResult, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.position == nil {
		return TrailResult{}, apperrors.ErrNoPosition
	}

	pos := pt.position
	result := TrailResult{Symbol: pos.Symbol, Previous: pos.StopLoss, Candidate: candidate}
	if !finite(candidate) {
		return result, nil
	}
	candidate = RoundPrice(candidate, pt.precision)
	result.Candidate = candidate

	if !Tightens(pos.Side, pos.StopLoss, candidate) {
		return result, nil
	}

	if modifier, ok := pt.broker.(broker.StopModifier); ok {
		if err := modifier.ModifyStop(ctx, pos.Symbol, candidate); err != nil {
			return result, fmt.Errorf("moving stop for %s: %w", pos.Symbol, err)
		}
		result.Pushed = true
	}

	pos.StopLoss = candidate
	result.Moved = true
	return result, nil
}
