// internal/observability/logger.go
package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// SLogger is a wrapper for a zap sugared logger with OpenTelemetry integration
type SLogger struct {
	*zap.SugaredLogger
}

const (
	traceIDKey = "trace_id"
	spanIDKey  = "span_id"
)

// NewLogger constructs a new sugared logger with OpenTelemetry integration
func NewLogger(level zapcore.Level, options ...zap.Option) (*SLogger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	baseLogger, err := config.Build(options...)
	if err != nil {
		return nil, err
	}

	logger := wrapLogger(baseLogger)
	logger.Info("Initialized Logger level:" + config.Level.String())

	return logger, nil
}

func wrapLogger(logger *zap.Logger) *SLogger {
	return &SLogger{logger.Sugar()}
}

// With returns a child logger carrying the given key/value pairs.
func (l *SLogger) With(keyValues ...interface{}) *SLogger {
	return &SLogger{l.SugaredLogger.With(keyValues...)}
}

// traceFields returns trace_id/span_id pairs for the span in ctx, or nil.
func traceFields(ctx context.Context) []interface{} {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []interface{}{traceIDKey, sc.TraceID().String(), spanIDKey, sc.SpanID().String()}
}

// LogWithContext logs msg at level, adding trace context and the given key/value pairs.
func (l *SLogger) LogWithContext(ctx context.Context, level zapcore.Level, msg string, keyValues ...interface{}) {
	kv := append(traceFields(ctx), keyValues...)

	switch level {
	case zapcore.DebugLevel:
		l.Debugw(msg, kv...)
	case zapcore.WarnLevel:
		l.Warnw(msg, kv...)
	case zapcore.ErrorLevel:
		l.Errorw(msg, kv...)
	default:
		l.Infow(msg, kv...)
	}
}

// InfoCtx logs a message with trace context
func (l *SLogger) InfoCtx(ctx context.Context, msg string, keyValues ...interface{}) {
	l.LogWithContext(ctx, zapcore.InfoLevel, msg, keyValues...)
}

// WarnCtx logs a warning with trace context
func (l *SLogger) WarnCtx(ctx context.Context, msg string, keyValues ...interface{}) {
	l.LogWithContext(ctx, zapcore.WarnLevel, msg, keyValues...)
}

// ErrorCtx logs an error with trace context
func (l *SLogger) ErrorCtx(ctx context.Context, err error, keyValues ...interface{}) {
	l.LogWithContext(ctx, zapcore.ErrorLevel, err.Error(), keyValues...)
}

// GetTraceID returns the trace ID from context
func GetTraceID(ctx context.Context) (string, bool) {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return "", false
	}
	return span.SpanContext().TraceID().String(), true
}

// NewTestLogger creates a logger for testing
func NewTestLogger() (*SLogger, *observer.ObservedLogs, error) {
	core, observedLogs := observer.New(zapcore.DebugLevel)
	observedOpt := zap.WrapCore(func(zapcore.Core) zapcore.Core {
		return core
	})

	baseLogger, err := zap.NewDevelopment(observedOpt)
	if err != nil {
		return nil, nil, err
	}

	return wrapLogger(baseLogger), observedLogs, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *SLogger {
	return wrapLogger(zap.NewNop())
}
