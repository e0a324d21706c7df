// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "trend-trader", "logs", "trader.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	// Console writer on stderr
	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	// File writer with rotation
	if cfg.File {
		// Ensure log directory exists
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	// Create multi-writer
	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stderr
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	// Set log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Create logger
	logger := zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
	// CycleKey is the context key for the scheduler cycle ID.
	CycleKey ContextKey = "cycle"
	// SymbolKey is the context key for symbol.
	SymbolKey ContextKey = "symbol"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithSymbol adds a symbol to the logger context.
func WithSymbol(logger zerolog.Logger, symbol string) zerolog.Logger {
	return logger.With().Str("symbol", symbol).Logger()
}

// WithCycle adds a scheduler cycle ID to the logger context.
func WithCycle(logger zerolog.Logger, cycleID string) zerolog.Logger {
	return logger.With().Str("cycle", cycleID).Logger()
}

// WithTimeframes adds the entry and confirmation timeframes to the logger context.
func WithTimeframes(logger zerolog.Logger, entry, confirm string) zerolog.Logger {
	return logger.With().Str("entry_tf", entry).Str("confirm_tf", confirm).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogSignal logs the fused signal and the latest indicator values behind it.
func LogSignal(logger zerolog.Logger, symbol, signal string, close, maLong, maShort, rsi float64) {
	logger.Info().
		Str("event", "signal").
		Str("symbol", symbol).
		Str("signal", signal).
		Float64("close", close).
		Float64("ma_long", maLong).
		Float64("ma_short", maShort).
		Float64("rsi", rsi).
		Msg("Signal evaluated")
}

// LogOrder logs an order about to be submitted.
func LogOrder(logger zerolog.Logger, clientID, symbol, side string, volume, price, stopLoss, takeProfit float64) {
	logger.Info().
		Str("event", "order").
		Str("client_id", clientID).
		Str("symbol", symbol).
		Str("side", side).
		Float64("volume", volume).
		Float64("price", price).
		Float64("sl", stopLoss).
		Float64("tp", takeProfit).
		Msg("Submitting order")
}

// LogOrderResult logs the broker's answer to an order.
func LogOrderResult(logger zerolog.Logger, orderID, symbol, status string, price float64, err error) {
	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(RedactError(err))
	}
	event.
		Str("event", "order_result").
		Str("order_id", orderID).
		Str("symbol", symbol).
		Str("status", status).
		Float64("price", price).
		Msg("Order result")
}

// LogTrailingStop logs a trailing stop adjustment.
func LogTrailingStop(logger zerolog.Logger, symbol string, previous, next float64, moved bool) {
	logger.Info().
		Str("event", "trailing_stop").
		Str("symbol", symbol).
		Float64("previous", previous).
		Float64("stop", next).
		Bool("moved", moved).
		Msg("Trailing stop evaluated")
}

// LogCycle logs the outcome of a scheduler cycle.
func LogCycle(logger zerolog.Logger, outcome string, duration time.Duration, err error) {
	event := logger.Info()
	if err != nil {
		event = logger.Warn().Err(RedactError(err))
	}
	event.
		Str("event", "cycle").
		Str("outcome", outcome).
		Dur("duration", duration).
		Msg("Cycle finished")
}

// LogAPICall logs an API call.
func LogAPICall(logger zerolog.Logger, method, endpoint string, duration time.Duration, err error) {
	event := logger.Debug().
		Str("event", "api_call").
		Str("method", method).
		Str("endpoint", endpoint).
		Dur("duration", duration)

	if err != nil {
		event.Err(RedactError(err)).Msg("API call failed")
	} else {
		event.Msg("API call completed")
	}
}
