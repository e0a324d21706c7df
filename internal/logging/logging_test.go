package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogSignal(t *testing.T) {
	var buf bytes.Buffer
	logger := WithCycle(zerolog.New(&buf), "c-1")

	LogSignal(logger, "AUDUSD", "BUY", 1.1006, 1.1, 1.101, 62)

	entry := decode(t, &buf)
	assert.Equal(t, "signal", entry["event"])
	assert.Equal(t, "BUY", entry["signal"])
	assert.Equal(t, "c-1", entry["cycle"])
	assert.Equal(t, 62.0, entry["rsi"])
}

func TestLogOrderResult_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	LogOrderResult(zerolog.New(&buf), "", "AUDUSD", "", 0, errors.New("rejected"))

	entry := decode(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "rejected", entry["error"])
}

func TestLogCycle(t *testing.T) {
	var buf bytes.Buffer
	LogCycle(zerolog.New(&buf), "hold", 2*time.Second, nil)

	entry := decode(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "hold", entry["outcome"])
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf))

	logger := FromContext(ctx)
	logger.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")

	// A bare context yields a no-op logger.
	nop := FromContext(context.Background())
	nop.Info().Msg("dropped")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("bogus"))
}

func TestMaskCredential(t *testing.T) {
	assert.Equal(t, "", MaskCredential(""))
	assert.Equal(t, "***", MaskCredential("abc"))
	assert.Equal(t, "ab****", MaskCredential("abcdef"))
	assert.Equal(t, "abcd****mnop", MaskCredential("abcdefghmnop"))
}

func TestRedactError(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("kite request failed access_token=abcdefghmnop: %w", cause)

	redacted := RedactError(err)
	assert.Equal(t, "kite request failed access_token=abcd****mnop: boom", redacted.Error())
	assert.ErrorIs(t, redacted, cause)

	plain := errors.New("connection reset")
	assert.Same(t, plain, RedactError(plain))
	assert.NoError(t, RedactError(nil))
}

func TestLogAPICallRedactsErrors(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	LogAPICall(logger, "broker", "fetch_candles", time.Millisecond, errors.New("api_key: kitekey1234567"))

	entry := decode(t, &buf)
	assert.Equal(t, "api_key: kite******4567", entry["error"])
}
