package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(minute int, close float64) Candle {
	ts := time.Date(2024, 3, 1, 9, minute, 0, 0, time.UTC)
	return Candle{Timestamp: ts, Open: close, High: close, Low: close, Close: close}
}

func closes(s Series) []float64 {
	out := make([]float64, 0, s.Len())
	for _, c := range s.Candles {
		out = append(out, c.Close)
	}
	return out
}

func TestNewSeries(t *testing.T) {
	tests := []struct {
		name  string
		input []Candle
		want  []float64
	}{
		{"empty", nil, []float64{}},
		{"ascending unchanged", []Candle{bar(0, 1), bar(15, 2), bar(30, 3)}, []float64{1, 2, 3}},
		{"newest first is reversed", []Candle{bar(30, 3), bar(15, 2), bar(0, 1)}, []float64{1, 2, 3}},
		{"shuffled", []Candle{bar(15, 2), bar(45, 4), bar(0, 1), bar(30, 3)}, []float64{1, 2, 3, 4}},
		{"later duplicate wins", []Candle{bar(0, 1), bar(15, 2), bar(15, 2.5)}, []float64{1, 2.5}},
		{
			"later duplicate wins when newest first",
			[]Candle{bar(30, 3), bar(15, 2), bar(15, 2.5), bar(0, 1)},
			[]float64{1, 2.5, 3},
		},
		{"all duplicates", []Candle{bar(0, 1), bar(0, 2), bar(0, 3)}, []float64{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSeries("AUDUSD", Timeframe15Min, tt.input)
			assert.Equal(t, tt.want, closes(s))
			assert.Equal(t, "AUDUSD", s.Symbol)
			assert.Equal(t, Timeframe15Min, s.Timeframe)
			for i := 1; i < s.Len(); i++ {
				assert.True(t, s.Candles[i-1].Timestamp.Before(s.Candles[i].Timestamp))
			}
		})
	}
}

func TestNewSeriesLeavesInputAlone(t *testing.T) {
	input := []Candle{bar(30, 3), bar(15, 2), bar(15, 2.5), bar(0, 1)}
	NewSeries("AUDUSD", Timeframe15Min, input)
	assert.Equal(t, []Candle{bar(30, 3), bar(15, 2), bar(15, 2.5), bar(0, 1)}, input)
}

func TestSeriesTail(t *testing.T) {
	s := NewSeries("AUDUSD", Timeframe15Min, []Candle{bar(0, 1), bar(15, 2), bar(30, 3), bar(45, 4)})

	assert.Equal(t, []float64{3, 4}, closes(s.Tail(2)))
	assert.Equal(t, []float64{1, 2, 3, 4}, closes(s.Tail(4)))
	assert.Equal(t, []float64{1, 2, 3, 4}, closes(s.Tail(10)))
	assert.Equal(t, []float64{1, 2, 3, 4}, closes(s.Tail(0)))
	assert.Equal(t, Timeframe15Min, s.Tail(2).Timeframe)
}

func TestParseTimeframe(t *testing.T) {
	for _, in := range []string{"15min", "M15", " m15 "} {
		tf, err := ParseTimeframe(in)
		require.NoError(t, err, in)
		assert.Equal(t, Timeframe15Min, tf)
	}
	tf, err := ParseTimeframe("h1")
	require.NoError(t, err)
	assert.Equal(t, Timeframe1Hour, tf)

	_, err = ParseTimeframe("2hour")
	require.Error(t, err)
	for _, tf := range AllTimeframes() {
		assert.Contains(t, err.Error(), string(tf))
	}
}

func TestOrderJSONKeys(t *testing.T) {
	req := OrderRequest{Symbol: "AUDUSD", Side: SideBuy, Price: 1.1, StopLoss: 1.09, TakeProfit: 1.12, Volume: 0.01}
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"client_id", "symbol", "side", "price", "stop_loss", "take_profit", "volume", "created_at"} {
		assert.Contains(t, fields, key)
	}
	assert.NotContains(t, fields, "StopLoss")

	data, err = json.Marshal(OrderResult{OrderID: "T-1", Status: "FILLED"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"order_id":"T-1","status":"FILLED","price":0,"volume":0,"comment":""}`, string(data))
}
