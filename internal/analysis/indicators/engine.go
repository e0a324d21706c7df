// Package indicators provides technical indicator calculations with parallel processing.
package indicators

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"trend-trader/internal/models"
)

// Indicator defines the interface for single-value technical indicators.
// Calculate returns one value per candle; entries before the window is
// full are NaN.
type Indicator interface {
	Name() string
	Calculate(candles []models.Candle) ([]float64, error)
	Period() int
}

// Role identifies which slot of a Set an indicator fills.
type Role string

const (
	RoleMALong  Role = "ma_long"
	RoleMAShort Role = "ma_short"
	RoleRSI     Role = "rsi"
	RoleATR     Role = "atr"
)

// Windows holds the four window lengths used by the strategy.
type Windows struct {
	MALong  int
	MAShort int
	RSI     int
	ATR     int
}

// DefaultWindows returns the strategy's standard windows.
func DefaultWindows() Windows {
	return Windows{MALong: 50, MAShort: 10, RSI: 14, ATR: 14}
}

// Row is one candle's worth of indicator values.
type Row struct {
	Timestamp time.Time
	Close     float64
	MALong    float64
	MAShort   float64
	RSI       float64
	ATR       float64
}

// Defined reports whether every value in the row has been computed.
func (r Row) Defined() bool {
	return IsDefined(r.Close) && IsDefined(r.MALong) && IsDefined(r.MAShort) &&
		IsDefined(r.RSI) && IsDefined(r.ATR)
}

// UndefinedRow returns a row whose indicator values are all NaN.
func UndefinedRow() Row {
	nan := math.NaN()
	return Row{Close: nan, MALong: nan, MAShort: nan, RSI: nan, ATR: nan}
}

// Set is an indicator set aligned one-to-one with a candle series.
type Set struct {
	Symbol    string
	Timeframe models.Timeframe
	Times     []time.Time
	Close     []float64
	MALong    []float64
	MAShort   []float64
	RSI       []float64
	ATR       []float64
}

// Len returns the number of rows.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Close)
}

// Row returns the values at index i.
func (s *Set) Row(i int) Row {
	if i < 0 || i >= s.Len() {
		return UndefinedRow()
	}
	return Row{
		Timestamp: s.Times[i],
		Close:     s.Close[i],
		MALong:    s.MALong[i],
		MAShort:   s.MAShort[i],
		RSI:       s.RSI[i],
		ATR:       s.ATR[i],
	}
}

// Latest returns the most recent row, or an undefined row for an empty set.
func (s *Set) Latest() Row {
	return s.Row(s.Len() - 1)
}

// Engine computes the strategy's indicators using a worker pool.
type Engine struct {
	workers    int
	windows    Windows
	indicators map[Role]Indicator
	mu         sync.RWMutex
}

// NewEngine creates an engine for the given windows with the specified number of workers.
func NewEngine(windows Windows, workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	e := &Engine{
		workers:    workers,
		windows:    windows,
		indicators: make(map[Role]Indicator),
	}
	e.Register(RoleMALong, NewSMA(windows.MALong))
	e.Register(RoleMAShort, NewSMA(windows.MAShort))
	e.Register(RoleRSI, NewRSI(windows.RSI))
	e.Register(RoleATR, NewRangeATR(windows.ATR))
	return e
}

// Register replaces the indicator filling role.
func (e *Engine) Register(role Role, ind Indicator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.indicators[role] = ind
}

// Windows returns the engine's window configuration.
func (e *Engine) Windows() Windows {
	return e.windows
}

// MinCandles returns the shortest series for which every indicator has a value.
func (e *Engine) MinCandles() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	need := 0
	for _, ind := range e.indicators {
		if p := ind.Period(); p > need {
			need = p
		}
	}
	return need
}

type roleResult struct {
	role   Role
	values []float64
	err    error
}

// Compute calculates all indicators for the series in parallel. A series
// shorter than MinCandles yields ErrInsufficientData and a nil set.
func (e *Engine) Compute(ctx context.Context, series models.Series) (*Set, error) {
	candles := series.Candles
	if need := e.MinCandles(); len(candles) < need {
		return nil, fmt.Errorf("%s %s: have %d candles, need %d: %w",
			series.Symbol, series.Timeframe, len(candles), need, ErrInsufficientData)
	}

	e.mu.RLock()
	roles := make([]Role, 0, len(e.indicators))
	inds := make([]Indicator, 0, len(e.indicators))
	for role, ind := range e.indicators {
		roles = append(roles, role)
		inds = append(inds, ind)
	}
	e.mu.RUnlock()

	type job struct {
		role Role
		ind  Indicator
	}

	work := make(chan job, len(inds))
	results := make(chan roleResult, len(inds))
	var wg sync.WaitGroup

	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range work {
				select {
				case <-ctx.Done():
					results <- roleResult{role: j.role, err: ctx.Err()}
				default:
					values, err := j.ind.Calculate(candles)
					results <- roleResult{role: j.role, values: values, err: err}
				}
			}
		}()
	}

	for i := range inds {
		work <- job{role: roles[i], ind: inds[i]}
	}
	close(work)
	wg.Wait()
	close(results)

	set := &Set{
		Symbol:    series.Symbol,
		Timeframe: series.Timeframe,
		Times:     make([]time.Time, len(candles)),
		Close:     closePrices(candles),
		MALong:    undefined(len(candles)),
		MAShort:   undefined(len(candles)),
		RSI:       undefined(len(candles)),
		ATR:       undefined(len(candles)),
	}
	for i, c := range candles {
		set.Times[i] = c.Timestamp
	}

	for r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("calculating %s: %w", r.role, r.err)
		}
		switch r.role {
		case RoleMALong:
			set.MALong = r.values
		case RoleMAShort:
			set.MAShort = r.values
		case RoleRSI:
			set.RSI = r.values
		case RoleATR:
			set.ATR = r.values
		}
	}

	return set, nil
}
