package indicators

import (
	"fmt"

	"trend-trader/internal/models"
)

// RangeATR is an ATR-style volatility measure: the rolling mean of each
// bar's high-low range. Gaps between bars are ignored.
type RangeATR struct {
	period int
}

// NewRangeATR creates a new RangeATR indicator.
func NewRangeATR(period int) *RangeATR {
	return &RangeATR{period: period}
}

func (a *RangeATR) Name() string {
	return fmt.Sprintf("ATR_%d", a.period)
}

func (a *RangeATR) Period() int {
	return a.period
}

func (a *RangeATR) Calculate(candles []models.Candle) ([]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < a.period {
		return nil, ErrInsufficientData
	}

	return rollingMean(ranges(candles), a.period), nil
}
