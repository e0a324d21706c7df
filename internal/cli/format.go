package cli

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FormatPrice formats a price at the instrument's precision.
func FormatPrice(price float64, precision int32) string {
	if math.IsNaN(price) {
		return "-"
	}
	return fmt.Sprintf("%.*f", int(precision), price)
}

// FormatIndicator formats an indicator value, showing undefined values as "-".
func FormatIndicator(v float64, decimals int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.*f", decimals, v)
}

// FormatPips expresses a price distance in pips.
func FormatPips(distance, pipSize float64) string {
	if pipSize <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f pips", distance/pipSize)
}

// FormatVolume formats a lot size without trailing zeros.
func FormatVolume(lots float64) string {
	s := fmt.Sprintf("%.4f", lots)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// FormatAge formats how long ago t was, relative to now.
func FormatAge(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return FormatDuration(now.Sub(t)) + " ago"
}

// FormatDuration formats a duration compactly.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}

// FormatTime formats a candle or order timestamp in UTC.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
