package trading

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trend-trader/internal/broker"
	"trend-trader/internal/config"
	apperrors "trend-trader/internal/errors"
	"trend-trader/internal/models"
)

// RoundPrice rounds p half away from zero to precision decimal places.
// Rounding an already rounded price returns it unchanged. NaN and infinities
// are returned as is.
func RoundPrice(p float64, precision int32) float64 {
	if !finite(p) {
		return p
	}
	f, _ := decimal.NewFromFloat(p).Round(precision).Float64()
	return f
}

// ProtectiveLevels converts pip distances into stop-loss and take-profit
// prices around ref. Stops sit below a buy and above a sell; targets mirror them.
// The returned prices are rounded to precision. Non-finite inputs yield NaN levels.
func ProtectiveLevels(side models.Side, ref, stopLossPips, takeProfitPips, pipSize float64, precision int32) (stopLoss, takeProfit float64) {
	if !finite(ref) || !finite(stopLossPips) || !finite(takeProfitPips) || !finite(pipSize) {
		return math.NaN(), math.NaN()
	}
	price := decimal.NewFromFloat(ref)
	pip := decimal.NewFromFloat(pipSize)
	slDist := decimal.NewFromFloat(stopLossPips).Mul(pip)
	tpDist := decimal.NewFromFloat(takeProfitPips).Mul(pip)

	sl, tp := price.Sub(slDist), price.Add(tpDist)
	if side == models.SideSell {
		sl, tp = price.Add(slDist), price.Sub(tpDist)
	}

	stopLoss, _ = sl.Round(precision).Float64()
	takeProfit, _ = tp.Round(precision).Float64()
	return stopLoss, takeProfit
}

// NormalizeVolume floors lots to the instrument's volume step and raises the
// result to the minimum volume.
func NormalizeVolume(lots float64, info models.InstrumentInfo) float64 {
	if !finite(lots) {
		return info.MinVolume
	}
	v := decimal.NewFromFloat(lots)
	if info.VolumeStep > 0 && finite(info.VolumeStep) {
		step := decimal.NewFromFloat(info.VolumeStep)
		v = v.Div(step).Floor().Mul(step)
	}
	if finite(info.MinVolume) {
		if minVol := decimal.NewFromFloat(info.MinVolume); v.LessThan(minVol) {
			v = minVol
		}
	}
	f, _ := v.Float64()
	return f
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ReferencePrice picks the quote side an order on side would execute against.
func ReferencePrice(side models.Side, q models.Quote) float64 {
	if side == models.SideSell {
		return q.Bid
	}
	return q.Ask
}

// OrderBuilder turns a signal into a fully parameterized order request.
type OrderBuilder struct {
	symbol string
	cfg    config.OrderConfig
	broker broker.Broker
	now    func() time.Time
}

// NewOrderBuilder creates an order builder for symbol.
func NewOrderBuilder(symbol string, cfg config.OrderConfig, b broker.Broker) *OrderBuilder {
	return &OrderBuilder{
		symbol: symbol,
		cfg:    cfg,
		broker: b,
		now:    time.Now,
	}
}

// Build fetches instrument metadata and the current quote and assembles the
// request for signal. A Hold signal is rejected. When metadata cannot be
// retrieved the returned error wraps errors.ErrSymbolUnavailable and no
// request is produced.
func (ob *OrderBuilder) Build(ctx context.Context, signal models.Signal) (*models.OrderRequest, error) {
	side, ok := signal.Side()
	if !ok {
		return nil, fmt.Errorf("signal %s is not actionable", signal)
	}

	info, err := ob.broker.InstrumentInfo(ctx, ob.symbol)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSymbolUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("instrument metadata for %s: %v: %w", ob.symbol, err, apperrors.ErrSymbolUnavailable)
	}

	quote, err := ob.broker.CurrentQuote(ctx, ob.symbol)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrQuoteUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("quote for %s: %v: %w", ob.symbol, err, apperrors.ErrQuoteUnavailable)
	}

	ref := ReferencePrice(side, quote)
	if !finite(ref) || ref <= 0 {
		return nil, fmt.Errorf("%s %s reference price %v: %w", ob.symbol, side, ref, apperrors.ErrQuoteUnavailable)
	}

	req := ob.Request(side, ref, info)
	return &req, nil
}

// Request assembles an order request from an already known reference price
// and instrument metadata without contacting the broker.
func (ob *OrderBuilder) Request(side models.Side, ref float64, info models.InstrumentInfo) models.OrderRequest {
	sl, tp := ProtectiveLevels(side, ref, ob.cfg.StopLossPips, ob.cfg.TakeProfitPips, ob.cfg.PipSize, ob.cfg.PricePrecision)

	return models.OrderRequest{
		ClientID:   uuid.NewString(),
		Action:     models.OrderActionDeal,
		Symbol:     ob.symbol,
		Side:       side,
		Type:       models.OrderTypeFor(side),
		Volume:     NormalizeVolume(ob.cfg.LotSize, info),
		Price:      RoundPrice(ref, ob.cfg.PricePrecision),
		StopLoss:   sl,
		TakeProfit: tp,
		Deviation:  ob.cfg.Slippage,
		Magic:      ob.cfg.Magic,
		Comment:    ob.cfg.Comment,
		Fill:       models.FillPolicy(ob.cfg.FillPolicy),
		Time:       models.TimePolicy(ob.cfg.TimePolicy),
		CreatedAt:  ob.now(),
	}
}
