// Package models provides domain models for the trading application.
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Timeframe represents the bar period of a candle series.
type Timeframe string

const (
	Timeframe1Min  Timeframe = "1min"
	Timeframe5Min  Timeframe = "5min"
	Timeframe15Min Timeframe = "15min"
	Timeframe30Min Timeframe = "30min"
	Timeframe1Hour Timeframe = "1hour"
	Timeframe4Hour Timeframe = "4hour"
	Timeframe1Day  Timeframe = "1day"
)

// AllTimeframes returns every supported timeframe, shortest first.
func AllTimeframes() []Timeframe {
	return []Timeframe{
		Timeframe1Min, Timeframe5Min, Timeframe15Min, Timeframe30Min,
		Timeframe1Hour, Timeframe4Hour, Timeframe1Day,
	}
}

// Duration returns the wall-clock length of one bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1Min:
		return time.Minute
	case Timeframe5Min:
		return 5 * time.Minute
	case Timeframe15Min:
		return 15 * time.Minute
	case Timeframe30Min:
		return 30 * time.Minute
	case Timeframe1Hour:
		return time.Hour
	case Timeframe4Hour:
		return 4 * time.Hour
	case Timeframe1Day:
		return 24 * time.Hour
	default:
		return 0
	}
}

// ParseTimeframe parses a timeframe label. A few common aliases are accepted.
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1min", "m1", "minute":
		return Timeframe1Min, nil
	case "5min", "m5":
		return Timeframe5Min, nil
	case "15min", "m15":
		return Timeframe15Min, nil
	case "30min", "m30":
		return Timeframe30Min, nil
	case "1hour", "h1", "60min":
		return Timeframe1Hour, nil
	case "4hour", "h4":
		return Timeframe4Hour, nil
	case "1day", "d1", "day":
		return Timeframe1Day, nil
	}
	valid := make([]string, 0, len(AllTimeframes()))
	for _, tf := range AllTimeframes() {
		valid = append(valid, string(tf))
	}
	return "", fmt.Errorf("unknown timeframe %q (valid: %s)", s, strings.Join(valid, ", "))
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Series is one instrument's candle history on one timeframe, ascending by time.
// A Series is rebuilt every polling cycle and never mutated in place.
type Series struct {
	Symbol    string
	Timeframe Timeframe
	Candles   []Candle
}

// NewSeries copies candles into a Series sorted ascending by timestamp with
// duplicate timestamps removed. When two candles share a timestamp the one
// appearing later in the input wins.
func NewSeries(symbol string, tf Timeframe, candles []Candle) Series {
	sorted := make([]Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := sorted[:0]
	for _, c := range sorted {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(c.Timestamp) {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}

	return Series{Symbol: symbol, Timeframe: tf, Candles: out}
}

// Len returns the number of candles in the series.
func (s Series) Len() int {
	return len(s.Candles)
}

// Last returns the most recent candle.
func (s Series) Last() (Candle, bool) {
	if len(s.Candles) == 0 {
		return Candle{}, false
	}
	return s.Candles[len(s.Candles)-1], true
}

// Tail returns a series holding at most the n most recent candles.
func (s Series) Tail(n int) Series {
	if n <= 0 || n >= len(s.Candles) {
		return s
	}
	return Series{Symbol: s.Symbol, Timeframe: s.Timeframe, Candles: s.Candles[len(s.Candles)-n:]}
}

// Quote is the current top of book for an instrument.
type Quote struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

// Spread returns ask minus bid.
func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// InstrumentInfo holds the broker's trading constraints for an instrument.
type InstrumentInfo struct {
	Symbol         string
	MinVolume      float64
	VolumeStep     float64
	PriceIncrement float64
}
