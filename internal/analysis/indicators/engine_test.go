package indicators

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-trader/internal/models"
)

func candlesFromCloses(closes ...float64) []models.Candle {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + 0.0010,
			Low:       c - 0.0010,
			Close:     c,
		}
	}
	return out
}

func TestSMA_UndefinedBeforeWindow(t *testing.T) {
	values, err := NewSMA(3).Calculate(candlesFromCloses(1, 2, 3, 4, 5))
	require.NoError(t, err)

	assert.True(t, math.IsNaN(values[0]))
	assert.True(t, math.IsNaN(values[1]))
	assert.InDelta(t, 2.0, values[2], 1e-12)
	assert.InDelta(t, 3.0, values[3], 1e-12)
	assert.InDelta(t, 4.0, values[4], 1e-12)
}

func TestSMA_Errors(t *testing.T) {
	_, err := NewSMA(0).Calculate(candlesFromCloses(1, 2))
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = NewSMA(5).Calculate(candlesFromCloses(1, 2))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRSI_Values(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"equal gains and losses", []float64{1, 2, 1, 2, 1}, 50},
		{"only gains", []float64{1, 2, 3, 4, 5}, 100},
		{"only losses", []float64{5, 4, 3, 2, 1}, 0},
		{"flat window has no losses", []float64{1, 1, 1, 1, 1}, 100},
		{"three up one down", []float64{1, 2, 3, 4, 3}, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := NewRSI(4).Calculate(candlesFromCloses(tt.closes...))
			require.NoError(t, err)
			for i := 0; i < 4; i++ {
				assert.True(t, math.IsNaN(values[i]), "index %d should be undefined", i)
			}
			assert.InDelta(t, tt.want, values[4], 1e-9)
		})
	}
}

func TestRSI_NeedsOneExtraCandle(t *testing.T) {
	_, err := NewRSI(4).Calculate(candlesFromCloses(1, 2, 3, 4))
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRangeATR(t *testing.T) {
	candles := []models.Candle{
		{High: 1.1010, Low: 1.1000},
		{High: 1.1030, Low: 1.1000},
		{High: 1.1050, Low: 1.1000},
	}
	values, err := NewRangeATR(2).Calculate(candles)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(values[0]))
	assert.InDelta(t, 0.0020, values[1], 1e-12)
	assert.InDelta(t, 0.0040, values[2], 1e-12)
}

func TestEngine_Compute(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 1.1000 + float64(i)*0.0001
	}
	series := models.NewSeries("AUDUSD", models.Timeframe15Min, candlesFromCloses(closes...))

	engine := NewEngine(DefaultWindows(), 4)
	assert.Equal(t, 50, engine.MinCandles())

	set, err := engine.Compute(context.Background(), series)
	require.NoError(t, err)
	require.Equal(t, 60, set.Len())

	assert.False(t, set.Row(48).Defined())
	latest := set.Latest()
	assert.True(t, latest.Defined())
	assert.InDelta(t, closes[59], latest.Close, 1e-12)
	assert.Greater(t, latest.MAShort, latest.MALong)
	assert.InDelta(t, 100, latest.RSI, 1e-9)
	assert.InDelta(t, 0.0020, latest.ATR, 1e-12)
	assert.Equal(t, series.Candles[59].Timestamp, latest.Timestamp)
}

func TestEngine_InsufficientData(t *testing.T) {
	series := models.NewSeries("AUDUSD", models.Timeframe1Hour, candlesFromCloses(1, 2, 3))

	set, err := NewEngine(DefaultWindows(), 1).Compute(context.Background(), series)
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.Nil(t, set)
	assert.False(t, set.Latest().Defined())
}

func TestEngine_RSIWindowDrivesMinimum(t *testing.T) {
	engine := NewEngine(Windows{MALong: 10, MAShort: 5, RSI: 14, ATR: 14}, 1)
	assert.Equal(t, 15, engine.MinCandles())
}
