// internal/observability/observabilityconfig_test.go
package observability

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const sampleConfig = `
observability:
  serviceName: editwarning
  serviceVersion: 1.2.0
  environment: staging
  otelEndpoint: collector:4317
  disabled: true
logger:
  level: LOG_LEVELS_WARNLEVEL
`

func TestGetZapLevel(t *testing.T) {
	levels := map[LogLevel]zapcore.Level{
		LogLevelDebug:           zapcore.DebugLevel,
		LogLevelInfo:            zapcore.InfoLevel,
		LogLevelWarn:            zapcore.WarnLevel,
		LogLevelError:           zapcore.ErrorLevel,
		"":                      zapcore.InfoLevel,
		"debug":                 zapcore.InfoLevel,
		"LOG_LEVELS_FATALLEVEL": zapcore.InfoLevel,
	}
	for level, want := range levels {
		assert.Equal(t, want, level.GetZapLevel(), "level %q", level)
	}
}

func TestConfigDecodesWithViper(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(sampleConfig)))

	var cfg Config
	require.NoError(t, v.UnmarshalKey("observability", &cfg))
	assert.Equal(t, Config{
		ServiceName:    "editwarning",
		ServiceVersion: "1.2.0",
		Environment:    "staging",
		OTelEndpoint:   "collector:4317",
		Disabled:       true,
	}, cfg)

	var logCfg LoggerConfig
	require.NoError(t, v.UnmarshalKey("logger", &logCfg))
	assert.Equal(t, LogLevelWarn, logCfg.Level)
	assert.Equal(t, zapcore.WarnLevel, logCfg.Level.GetZapLevel())
}

func TestConfigDisabledOverride(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString("observability:\n  serviceName: editwarning\n")))

	var cfg Config
	require.NoError(t, v.UnmarshalKey("observability", &cfg))
	assert.False(t, cfg.Disabled)

	// Environment overrides arrive as strings.
	v.Set("observability.disabled", "true")
	var overridden Config
	require.NoError(t, v.UnmarshalKey("observability", &overridden))
	assert.True(t, overridden.Disabled)
}

func TestConfigDecodesWithYAML(t *testing.T) {
	var doc struct {
		Observability Config       `yaml:"observability"`
		Logger        LoggerConfig `yaml:"logger"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(sampleConfig), &doc))
	assert.True(t, doc.Observability.Disabled)
	assert.Equal(t, "collector:4317", doc.Observability.OTelEndpoint)
	assert.Equal(t, LogLevelWarn, doc.Logger.Level)
}
