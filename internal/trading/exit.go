package trading

import (
	"math"

	"trend-trader/internal/models"
)

// TrailingStop returns the stop-loss implied by the current volatility for a
// position opened at entry: entry - volatility*k for a long, entry +
// volatility*k for a short. It does not look at the existing stop; callers
// decide whether to apply the result. An undefined volatility yields NaN.
func TrailingStop(side models.Side, entry, volatility, k float64) float64 {
	if math.IsNaN(volatility) || math.IsNaN(entry) {
		return math.NaN()
	}
	if side == models.SideSell {
		return entry + volatility*k
	}
	return entry - volatility*k
}

// Tightens reports whether candidate is a tighter stop than current for side.
// A zero current stop means no stop is set, so any defined candidate tightens.
func Tightens(side models.Side, current, candidate float64) bool {
	if math.IsNaN(candidate) {
		return false
	}
	if current == 0 {
		return true
	}
	if side == models.SideSell {
		return candidate < current
	}
	return candidate > current
}
