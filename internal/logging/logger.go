// =============================================================================
// GST Tally Vouchers - Logging
// =============================================================================
//
// A thin wrapper around zap. A nil *Logger, or one built without a zap core,
// falls back to a no-op logger, so packages can accept a *Logger without
// checking it.
//
// FIELD KEYS:
//   file, schema, transactions, vouchers, parties, warnings, errors, rule,
//   document, party
//
// Amounts are never logged. Counts are.
//
// =============================================================================

package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured logging field.
type Field = zap.Field

// Field constructors for the stable keys.
func File(path string) Field       { return zap.String("file", path) }
func Schema(tag string) Field      { return zap.String("schema", tag) }
func Transactions(n int) Field     { return zap.Int("transactions", n) }
func Vouchers(n int) Field         { return zap.Int("vouchers", n) }
func Parties(n int) Field          { return zap.Int("parties", n) }
func Warnings(n int) Field         { return zap.Int("warnings", n) }
func Errors(n int) Field           { return zap.Int("errors", n) }
func Rule(rule string) Field       { return zap.String("rule", rule) }
func Document(number string) Field { return zap.String("document", number) }
func Party(name string) Field      { return zap.String("party", name) }
func Stage(name string) Field      { return zap.String("stage", name) }
func Err(err error) Field          { return zap.Error(err) }

// Options configures New.
type Options struct {
	// Level is debug, info, warn or error. Default info.
	Level string

	// Format is console or json. Default console.
	Format string

	// File, when set, receives a copy of every line.
	File string
}

// Logger is the structured logger used across the module.
type Logger struct {
	logger *zap.Logger
}

// New builds a Logger writing to stderr and optionally to a file.
func New(opts Options) (*Logger, error) {
	level := zapcore.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		if err := level.Set(strings.ToLower(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "", "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format %q (expected console or json)", opts.Format)
	}

	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sinks = append(sinks, zapcore.AddSync(f))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	return &Logger{logger: zap.New(core)}, nil
}

// FromZap wraps an existing zap logger.
func FromZap(l *zap.Logger) *Logger {
	return &Logger{logger: l}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zap.NewNop()}
}

func (l *Logger) must() *zap.Logger {
	if l == nil || l.logger == nil {
		return zap.NewNop()
	}
	return l.logger
}

// With returns a child logger with additional fields.
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{logger: l.must().With(fields...)}
}

// Debug logs a message with debug severity.
func (l *Logger) Debug(message string, fields ...Field) {
	l.must().Debug(message, fields...)
}

// Info logs a message with info severity.
func (l *Logger) Info(message string, fields ...Field) {
	l.must().Info(message, fields...)
}

// Warn logs a message with warn severity.
func (l *Logger) Warn(message string, fields ...Field) {
	l.must().Warn(message, fields...)
}

// Error logs a message with error severity.
func (l *Logger) Error(message string, fields ...Field) {
	l.must().Error(message, fields...)
}

// Sync flushes buffered output. Errors from syncing a terminal are ignored.
func (l *Logger) Sync() {
	_ = l.must().Sync()
}
