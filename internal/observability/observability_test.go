// internal/observability/observability_test.go
package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
)

func TestLogger(t *testing.T) {
	t.Run("NewLogger", func(t *testing.T) {
		logger, err := NewLogger(zapcore.InfoLevel)
		require.NoError(t, err)
		require.NotNil(t, logger)
	})

	t.Run("LogLevels", func(t *testing.T) {
		logger, logs, err := NewTestLogger()
		require.NoError(t, err)
		logs.TakeAll()

		tests := []struct {
			level   zapcore.Level
			logFunc func(args ...interface{})
			message string
		}{
			{zapcore.DebugLevel, logger.Debug, "debug message"},
			{zapcore.InfoLevel, logger.Info, "info message"},
			{zapcore.WarnLevel, logger.Warn, "warn message"},
			{zapcore.ErrorLevel, logger.Error, "error message"},
		}

		for _, tt := range tests {
			t.Run(tt.level.String(), func(t *testing.T) {
				tt.logFunc(tt.message)
				require.Equal(t, 1, logs.Len())
				entry := logs.All()[0]
				assert.Equal(t, tt.level, entry.Level)
				assert.Equal(t, tt.message, entry.Message)
				logs.TakeAll()
			})
		}
	})
}

func TestMetrics(t *testing.T) {
	logger, _ := createTestLogger()
	cfg := Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
	}

	metrics, err := NewMetricsClient(cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	metrics.Increment(ctx, "editwarning.decisions", 1, "kind", "granted")
	metrics.Increment(ctx, "editwarning.decisions", 1, "kind", "refreshed")
	assert.Len(t, metrics.counters, 1, "counters are created once per name")

	err = metrics.RecordLatency(ctx, 100*time.Millisecond, "route", "/edit", "status", "success")
	require.NoError(t, err)
}

func TestInitProviderDisabled(t *testing.T) {
	logger, _ := createTestLogger()

	shutdown, err := InitProvider(context.Background(), Config{Disabled: true}, logger)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestRecordSpanError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := provider.Tracer("test").Start(context.Background(), "op")
	RecordSpanError(span, assert.AnError)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, assert.AnError.Error(), ended[0].Status().Description)
	assert.Len(t, ended[0].Events(), 1)
}
