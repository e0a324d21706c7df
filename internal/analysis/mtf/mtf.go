// Package mtf fuses an entry timeframe with a higher confirmation timeframe
// into a single trade signal.
package mtf

import (
	"context"
	"errors"

	"trend-trader/internal/analysis/indicators"
	apperrors "trend-trader/internal/errors"
	"trend-trader/internal/models"
)

// RSIMidline separates bullish from bearish momentum.
const RSIMidline = 50.0

// Condition is one clause of the entry rule and whether it held.
type Condition struct {
	Name string
	Buy  bool
	Sell bool
}

// Fuse returns Buy, Sell or Hold from the latest entry-timeframe and
// confirmation-timeframe rows. Every condition on one side must hold for a
// non-hold result; any undefined value yields Hold.
func Fuse(entry, confirm indicators.Row) models.Signal {
	for _, v := range []float64{entry.Close, entry.MALong, entry.MAShort, entry.RSI, confirm.Close, confirm.MALong} {
		if !indicators.IsDefined(v) {
			return models.SignalHold
		}
	}

	buy, sell := true, true
	for _, c := range Conditions(entry, confirm) {
		buy = buy && c.Buy
		sell = sell && c.Sell
	}

	switch {
	case buy:
		return models.SignalBuy
	case sell:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}

// Conditions evaluates each clause of the rule for both sides.
// Comparisons against NaN are false, so undefined values fail every clause.
func Conditions(entry, confirm indicators.Row) []Condition {
	return []Condition{
		{Name: "close vs ma_long", Buy: entry.Close > entry.MALong, Sell: entry.Close < entry.MALong},
		{Name: "rsi vs midline", Buy: entry.RSI > RSIMidline, Sell: entry.RSI < RSIMidline},
		{Name: "ma_short vs ma_long", Buy: entry.MAShort > entry.MALong, Sell: entry.MAShort < entry.MALong},
		{Name: "higher close vs ma_long", Buy: confirm.Close > confirm.MALong, Sell: confirm.Close < confirm.MALong},
	}
}

// Evaluation is the outcome of one multi-timeframe evaluation.
type Evaluation struct {
	Symbol     string
	Signal     models.Signal
	Entry      indicators.Row
	Confirm    indicators.Row
	Conditions []Condition
	// Err is set when either series was too short; Signal is then Hold.
	Err error
}

// Analyzer runs the indicator engine over both timeframes and fuses the result.
type Analyzer struct {
	engine *indicators.Engine
}

// NewAnalyzer creates a new MTF analyzer.
func NewAnalyzer(windows indicators.Windows) *Analyzer {
	return NewAnalyzerWithEngine(indicators.NewEngine(windows, 4))
}

// NewAnalyzerWithEngine creates a new MTF analyzer with a custom indicator engine.
func NewAnalyzerWithEngine(engine *indicators.Engine) *Analyzer {
	return &Analyzer{engine: engine}
}

// Evaluate computes indicators for both series and returns the fused signal.
// Insufficient data on either series is recorded on the Evaluation and
// produces Hold; any other failure is returned as an error.
func (a *Analyzer) Evaluate(ctx context.Context, entry, confirm models.Series) (*Evaluation, error) {
	eval := &Evaluation{
		Symbol:  entry.Symbol,
		Signal:  models.SignalHold,
		Entry:   indicators.UndefinedRow(),
		Confirm: indicators.UndefinedRow(),
	}

	entrySet, err := a.engine.Compute(ctx, entry)
	if err != nil && !errors.Is(err, indicators.ErrInsufficientData) {
		return nil, apperrors.NewDataError(entry.Symbol, string(entry.Timeframe), "entry timeframe", err)
	}
	if err != nil {
		eval.Err = apperrors.NewDataError(entry.Symbol, string(entry.Timeframe), "entry timeframe", err)
	}

	confirmSet, err := a.engine.Compute(ctx, confirm)
	if err != nil && !errors.Is(err, indicators.ErrInsufficientData) {
		return nil, apperrors.NewDataError(confirm.Symbol, string(confirm.Timeframe), "confirmation timeframe", err)
	}
	if err != nil && eval.Err == nil {
		eval.Err = apperrors.NewDataError(confirm.Symbol, string(confirm.Timeframe), "confirmation timeframe", err)
	}

	eval.Entry = entrySet.Latest()
	eval.Confirm = confirmSet.Latest()
	eval.Conditions = Conditions(eval.Entry, eval.Confirm)
	if eval.Err == nil {
		eval.Signal = Fuse(eval.Entry, eval.Confirm)
	}

	return eval, nil
}
