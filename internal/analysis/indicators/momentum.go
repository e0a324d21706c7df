package indicators

import (
	"fmt"
	"math"

	"trend-trader/internal/models"
)

// RSI calculates the Relative Strength Index from simple rolling means of
// close-to-close gains and losses (no Wilder smoothing).
//
// The first close has no prior close, so the first defined value is at
// index period. A window with no losses yields 100, including a window where
// price did not move at all.
type RSI struct {
	period int
}

// NewRSI creates a new RSI indicator.
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string {
	return fmt.Sprintf("RSI_%d", r.period)
}

// Period returns the number of candles needed for the first value.
func (r *RSI) Period() int {
	return r.period + 1
}

func (r *RSI) Calculate(candles []models.Candle) ([]float64, error) {
	if r.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < r.Period() {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	closes := closePrices(candles)

	// gains[i-1], losses[i-1] hold the move from close i-1 to close i
	gains := make([]float64, n-1)
	losses := make([]float64, n-1)
	for i := 1; i < n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}

	avgGain := rollingMean(gains, r.period)
	avgLoss := rollingMean(losses, r.period)

	result := undefined(n)
	for i := r.period; i < n; i++ {
		result[i] = rsiValue(avgGain[i-1], avgLoss[i-1])
	}

	return result, nil
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if math.IsNaN(avgGain) || math.IsNaN(avgLoss) {
		return math.NaN()
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}
