package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trend-trader/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func configDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := config.WriteTemplate(dir)
	require.NoError(t, err)
	return dir
}

// writeTrendCSV writes n candles rising by step per bar.
func writeTrendCSV(t *testing.T, dir, name string, tf time.Duration, n int, start, step float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := start + float64(i)*step
		fmt.Fprintf(&b, "%s,%.5f,%.5f,%.5f,%.5f,100\n",
			t0.Add(time.Duration(i)*tf).Format(time.RFC3339), c-step/2, c+0.0002, c-0.0002, c)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func seedCandles(t *testing.T, dir string) {
	t.Helper()
	entry := writeTrendCSV(t, dir, "m15.csv", 15*time.Minute, 120, 1.0900, 0.0001)
	confirm := writeTrendCSV(t, dir, "h1.csv", time.Hour, 120, 1.0800, 0.0002)

	_, err := execute(t, "--config", dir, "data", "import", entry, "--timeframe", "15min")
	require.NoError(t, err)
	_, err = execute(t, "--config", dir, "data", "import", confirm, "--timeframe", "1hour")
	require.NoError(t, err)
}

func TestVersionSkipsConfig(t *testing.T) {
	out, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing"), "--json", "version")
	require.NoError(t, err)

	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, Version, v["version"])
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "--config", dir, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, config.Path(dir))
	assert.FileExists(t, config.Path(dir))

	_, err = execute(t, "--config", dir, "config", "init")
	assert.Error(t, err)

	_, err = execute(t, "--config", dir, "config", "init", "--force")
	assert.NoError(t, err)
}

func TestConfigValidateAndShow(t *testing.T) {
	dir := configDir(t)

	out, err := execute(t, "--config", dir, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	out, err = execute(t, "--config", dir, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "AUDUSD")
	assert.Contains(t, out, "15min entry, 1hour confirmation")
}

func TestTrailCommand(t *testing.T) {
	dir := configDir(t)

	out, err := execute(t, "--config", dir, "--json", "trail", "--side", "buy", "--entry", "1.10000", "--atr", "0.0010", "--k", "2", "--current", "1.09700")
	require.NoError(t, err)

	var res struct {
		StopLoss float64 `json:"stop_loss"`
		Tightens bool    `json:"tightens"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDelta(t, 1.098, res.StopLoss, 1e-9)
	assert.True(t, res.Tightens)

	out, err = execute(t, "--config", dir, "--json", "trail", "--side", "sell", "--entry", "1.10000", "--atr", "0.0010", "--k", "2", "--current", "1.10100")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDelta(t, 1.102, res.StopLoss, 1e-9)
	assert.False(t, res.Tightens)

	_, err = execute(t, "--config", dir, "trail", "--side", "flat", "--entry", "1.1", "--atr", "0.001")
	assert.Error(t, err)

	for _, atr := range []string{"NaN", "+Inf"} {
		require.NotPanics(t, func() {
			_, err = execute(t, "--config", dir, "--json", "trail", "--side", "buy", "--entry", "1.1", "--atr", atr)
		})
		assert.ErrorContains(t, err, "finite")
	}
}

func TestDataImportAndStatus(t *testing.T) {
	dir := configDir(t)
	seedCandles(t, dir)

	out, err := execute(t, "--config", dir, "--json", "data", "status")
	require.NoError(t, err)

	var rows []struct {
		Timeframe string `json:"timeframe"`
		Bars      int    `json:"bars"`
		Ready     bool   `json:"ready"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "15min", rows[0].Timeframe)
	assert.Equal(t, 100, rows[0].Bars)
	assert.True(t, rows[0].Ready)
	assert.Equal(t, "1hour", rows[1].Timeframe)
	assert.True(t, rows[1].Ready)
}

func TestDataImportRejectsBadTimeframe(t *testing.T) {
	dir := configDir(t)
	path := writeTrendCSV(t, dir, "m15.csv", 15*time.Minute, 5, 1.1, 0.0001)

	_, err := execute(t, "--config", dir, "data", "import", path, "--timeframe", "fortnight")
	assert.Error(t, err)
}

func TestSignalCommand(t *testing.T) {
	dir := configDir(t)
	seedCandles(t, dir)

	out, err := execute(t, "--config", dir, "--json", "signal")
	require.NoError(t, err)

	var eval struct {
		Symbol     string `json:"symbol"`
		Signal     string `json:"signal"`
		Conditions []struct {
			Buy bool `json:"buy"`
		} `json:"conditions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &eval))
	assert.Equal(t, "AUDUSD", eval.Symbol)
	assert.Equal(t, "BUY", eval.Signal)
	require.Len(t, eval.Conditions, 4)
	for _, c := range eval.Conditions {
		assert.True(t, c.Buy)
	}
}

func TestSignalWithoutDataHolds(t *testing.T) {
	dir := configDir(t)

	out, err := execute(t, "--config", dir, "--json", "signal")
	require.NoError(t, err)

	var eval struct {
		Signal string `json:"signal"`
		Error  string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &eval))
	assert.Equal(t, "HOLD", eval.Signal)
	assert.Contains(t, eval.Error, "insufficient")
}

func TestOrderPreview(t *testing.T) {
	dir := configDir(t)
	seedCandles(t, dir)

	out, err := execute(t, "--config", dir, "--json", "order", "preview", "--side", "sell")
	require.NoError(t, err)

	var req struct {
		Side       string  `json:"side"`
		Price      float64 `json:"price"`
		StopLoss   float64 `json:"stop_loss"`
		TakeProfit float64 `json:"take_profit"`
		Volume     float64 `json:"volume"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &req))
	assert.Equal(t, "SELL", req.Side)
	assert.Greater(t, req.StopLoss, req.Price)
	assert.Less(t, req.TakeProfit, req.Price)
	assert.InDelta(t, 0.01, req.Volume, 1e-9)
}

func TestRunOnce(t *testing.T) {
	dir := configDir(t)
	seedCandles(t, dir)

	out, err := execute(t, "--config", dir, "--json", "run", "--once")
	require.NoError(t, err)

	var report struct {
		Outcome string `json:"outcome"`
		Signal  string `json:"signal"`
		Result  *struct {
			Status string `json:"status"`
		} `json:"result"`
		Breaker struct {
			State       string  `json:"state"`
			Requests    int64   `json:"requests"`
			FailureRate float64 `json:"failure_rate"`
		} `json:"breaker"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "order_placed", report.Outcome)
	assert.Equal(t, "BUY", report.Signal)
	require.NotNil(t, report.Result)
	assert.Equal(t, "FILLED", report.Result.Status)
	assert.Equal(t, "CLOSED", report.Breaker.State)
	assert.Positive(t, report.Breaker.Requests)
	assert.Zero(t, report.Breaker.FailureRate)
}
