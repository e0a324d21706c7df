package mtf

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-trader/internal/analysis/indicators"
	apperrors "trend-trader/internal/errors"
	"trend-trader/internal/models"
)

func bullishEntry() indicators.Row {
	return indicators.Row{Close: 1.10050, MALong: 1.10000, MAShort: 1.10020, RSI: 55, ATR: 0.0008}
}

func bullishConfirm() indicators.Row {
	return indicators.Row{Close: 1.10100, MALong: 1.10050, MAShort: 1.10080, RSI: 60, ATR: 0.0015}
}

func TestFuse(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name    string
		entry   indicators.Row
		confirm indicators.Row
		want    models.Signal
	}{
		{
			name:    "all bullish conditions",
			entry:   bullishEntry(),
			confirm: bullishConfirm(),
			want:    models.SignalBuy,
		},
		{
			name:    "rsi below midline blocks buy",
			entry:   indicators.Row{Close: 1.10050, MALong: 1.10000, MAShort: 1.10020, RSI: 45},
			confirm: bullishConfirm(),
			want:    models.SignalHold,
		},
		{
			name:    "all bearish conditions",
			entry:   indicators.Row{Close: 1.09950, MALong: 1.10000, MAShort: 1.09980, RSI: 40},
			confirm: indicators.Row{Close: 1.09900, MALong: 1.10000},
			want:    models.SignalSell,
		},
		{
			name:    "higher timeframe disagrees",
			entry:   bullishEntry(),
			confirm: indicators.Row{Close: 1.09900, MALong: 1.10000},
			want:    models.SignalHold,
		},
		{
			name:    "short ma below long ma",
			entry:   indicators.Row{Close: 1.10050, MALong: 1.10000, MAShort: 1.09990, RSI: 55},
			confirm: bullishConfirm(),
			want:    models.SignalHold,
		},
		{
			name:    "rsi exactly at midline",
			entry:   indicators.Row{Close: 1.10050, MALong: 1.10000, MAShort: 1.10020, RSI: 50},
			confirm: bullishConfirm(),
			want:    models.SignalHold,
		},
		{
			name:    "undefined entry ma",
			entry:   indicators.Row{Close: 1.10050, MALong: nan, MAShort: 1.10020, RSI: 55},
			confirm: bullishConfirm(),
			want:    models.SignalHold,
		},
		{
			name:    "undefined confirmation ma",
			entry:   bullishEntry(),
			confirm: indicators.Row{Close: 1.10100, MALong: nan},
			want:    models.SignalHold,
		},
		{
			name:    "fully undefined rows",
			entry:   indicators.UndefinedRow(),
			confirm: indicators.UndefinedRow(),
			want:    models.SignalHold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fuse(tt.entry, tt.confirm))
		})
	}
}

func rowGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(indicators.Row{}), map[string]gopter.Gen{
		"Close":   gen.Float64Range(1.09, 1.11),
		"MALong":  gen.Float64Range(1.09, 1.11),
		"MAShort": gen.Float64Range(1.09, 1.11),
		"RSI":     gen.Float64Range(0, 100),
		"ATR":     gen.Float64Range(0, 0.01),
	})
}

func TestProperty_FuseIsPure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("identical inputs give identical signals", prop.ForAll(
		func(entry, confirm indicators.Row) bool {
			return Fuse(entry, confirm) == Fuse(entry, confirm)
		},
		rowGen(), rowGen(),
	))

	properties.Property("flipping the higher timeframe never turns buy into sell", prop.ForAll(
		func(entry, confirm indicators.Row) bool {
			before := Fuse(entry, confirm)
			flipped := confirm
			flipped.Close, flipped.MALong = confirm.MALong, confirm.Close
			after := Fuse(entry, flipped)

			if before == models.SignalBuy {
				return after != models.SignalSell
			}
			if before == models.SignalSell {
				return after != models.SignalBuy
			}
			return true
		},
		rowGen(), rowGen(),
	))

	properties.TestingRun(t)
}

func trendingSeries(tf models.Timeframe, n int, start, step float64) models.Series {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	for i := range candles {
		c := start + float64(i)*step
		// every fifth bar retraces so RSI stays below 100
		if i%5 == 4 {
			c = start + float64(i-2)*step
		}
		candles[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * tf.Duration()),
			Open:      c,
			High:      c + 0.0005,
			Low:       c - 0.0005,
			Close:     c,
		}
	}
	return models.NewSeries("AUDUSD", tf, candles)
}

func TestAnalyzer_Evaluate(t *testing.T) {
	a := NewAnalyzer(indicators.DefaultWindows())
	ctx := context.Background()

	t.Run("uptrend on both timeframes", func(t *testing.T) {
		entry := trendingSeries(models.Timeframe15Min, 100, 0.6500, 0.0002)
		confirm := trendingSeries(models.Timeframe1Hour, 100, 0.6400, 0.0004)

		eval, err := a.Evaluate(ctx, entry, confirm)
		require.NoError(t, err)
		assert.NoError(t, eval.Err)
		assert.Equal(t, models.SignalBuy, eval.Signal)
		assert.True(t, eval.Entry.Defined())
		assert.Len(t, eval.Conditions, 4)
	})

	t.Run("downtrend on both timeframes", func(t *testing.T) {
		entry := trendingSeries(models.Timeframe15Min, 100, 0.7000, -0.0002)
		confirm := trendingSeries(models.Timeframe1Hour, 100, 0.7200, -0.0004)

		eval, err := a.Evaluate(ctx, entry, confirm)
		require.NoError(t, err)
		assert.Equal(t, models.SignalSell, eval.Signal)
	})

	t.Run("short confirmation series holds", func(t *testing.T) {
		entry := trendingSeries(models.Timeframe15Min, 100, 0.6500, 0.0002)
		confirm := trendingSeries(models.Timeframe1Hour, 20, 0.6400, 0.0004)

		eval, err := a.Evaluate(ctx, entry, confirm)
		require.NoError(t, err)
		assert.ErrorIs(t, eval.Err, indicators.ErrInsufficientData)
		var derr *apperrors.DataError
		require.ErrorAs(t, eval.Err, &derr)
		assert.Equal(t, "1hour", derr.Timeframe)
		assert.Equal(t, models.SignalHold, eval.Signal)
		assert.False(t, eval.Confirm.Defined())
	})
}
