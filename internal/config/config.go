// internal/config/config.go
// Package config handles configuration loading and watching
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
	"github.com/avivl/editwarning/internal/store/dynamodb"
	"github.com/avivl/editwarning/internal/store/etcd"
	"github.com/avivl/editwarning/internal/store/memory"
	"github.com/avivl/editwarning/internal/store/redis"
	"github.com/avivl/editwarning/internal/store/scylladb"
)

// EnvPrefix prefixes every environment override, e.g. EDITWARNING_STORE_HOST.
const EnvPrefix = "EDITWARNING"

// ConfigLoader handles loading of configurations
type ConfigLoader struct {
	v             *viper.Viper
	mu            sync.RWMutex
	watchers      []func(interface{})
	currentConfig interface{}
	lastError     error
	closed        bool
	logger        *observability.SLogger
	reload        func() (interface{}, error)
}

// NewConfigLoader creates a new configuration loader
func NewConfigLoader() *ConfigLoader {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &ConfigLoader{
		v:        v,
		watchers: make([]func(interface{}), 0),
		logger:   observability.NewNopLogger(),
	}
}

// SetLogger replaces the loader's logger once one has been built from the configuration
func (cl *ConfigLoader) SetLogger(logger *observability.SLogger) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.logger = logger
}

// AddWatcher adds a callback function that will be called when configuration changes
func (cl *ConfigLoader) AddWatcher(callback func(interface{})) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.watchers = append(cl.watchers, callback)
}

// OnReload registers fn for reloads, handing it the backend-independent view of the configuration
func (cl *ConfigLoader) OnReload(fn func(*GlobalConfig[store.StoreConfig])) {
	cl.AddWatcher(func(c interface{}) {
		if e, ok := c.(interface {
			Erase() *GlobalConfig[store.StoreConfig]
		}); ok {
			fn(e.Erase())
		}
	})
}

// GetCurrentConfig returns the current configuration
func (cl *ConfigLoader) GetCurrentConfig() interface{} {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.currentConfig
}

// GetLastError returns the last error encountered while reloading
func (cl *ConfigLoader) GetLastError() error {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.lastError
}

// Close stops delivering reloads to watchers
func (cl *ConfigLoader) Close() error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.closed = true
	return nil
}

// notifyWatchers calls all registered watchers with the new configuration
func (cl *ConfigLoader) notifyWatchers(newConfig interface{}) {
	cl.mu.RLock()
	watchers := append([]func(interface{}){}, cl.watchers...)
	cl.mu.RUnlock()
	for _, watcher := range watchers {
		watcher(newConfig)
	}
}

// LoadConfig loads the complete application configuration including store config.
// configPath may name a file or a directory holding one. Without a file the
// configuration comes from defaults and the environment, and nothing is watched.
func LoadConfig[T store.StoreConfig](configPath string, loadFn ConfigLoadFn[T]) (*ConfigLoader, *GlobalConfig[T], error) {
	cl := NewConfigLoader()
	setDefaults(cl.v)

	file, err := resolveConfigFilePath(configPath)
	switch {
	case err == nil:
		cl.v.SetConfigFile(file)
		if err := cl.v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("error reading config file: %w", err)
		}
	case errors.Is(err, errNoConfigFile):
		// defaults and environment only
	default:
		return nil, nil, err
	}

	config, err := loadConfiguration(cl.v, loadFn)
	if err != nil {
		return nil, nil, err
	}

	cl.mu.Lock()
	cl.currentConfig = config
	cl.mu.Unlock()

	if file != "" {
		cl.reload = func() (interface{}, error) {
			if err := cl.v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			return loadConfiguration(cl.v, loadFn)
		}
		cl.v.OnConfigChange(func(e fsnotify.Event) {
			cl.handleChange(e)
		})
		cl.v.WatchConfig()
	}

	return cl, config, nil
}

// Load detects the backend and loads its configuration.
func Load(configPath string) (*ConfigLoader, *GlobalConfig[store.StoreConfig], error) {
	backend, err := DetectBackendType(configPath)
	if err != nil {
		return nil, nil, err
	}

	switch backend {
	case memory.StoreName:
		cl, cfg, err := LoadConfig[*memory.MemoryConfig](configPath, MemoryConfigLoader)
		return erased(cl, cfg, err)
	case dynamodb.StoreName:
		cl, cfg, err := LoadConfig[*dynamodb.DynamoDBConfig](configPath, DynamoConfigLoader)
		return erased(cl, cfg, err)
	case scylladb.StoreName:
		cl, cfg, err := LoadConfig[*scylladb.ScyllaDBConfig](configPath, ScyllaConfigLoader)
		return erased(cl, cfg, err)
	case redis.StoreName:
		cl, cfg, err := LoadConfig[*redis.RedisConfig](configPath, RedisConfigLoader)
		return erased(cl, cfg, err)
	case etcd.StoreName:
		cl, cfg, err := LoadConfig[*etcd.EtcdConfig](configPath, EtcdConfigLoader)
		return erased(cl, cfg, err)
	default:
		return nil, nil, fmt.Errorf("unsupported backend type %q", backend)
	}
}

func erased[T store.StoreConfig](cl *ConfigLoader, cfg *GlobalConfig[T], err error) (*ConfigLoader, *GlobalConfig[store.StoreConfig], error) {
	if err != nil {
		return nil, nil, err
	}
	return cl, cfg.Erase(), nil
}

// loadConfiguration loads configuration using the provided loader function
func loadConfiguration[T store.StoreConfig](v *viper.Viper, loadFn ConfigLoadFn[T]) (*GlobalConfig[T], error) {
	storeConfig, err := loadFn(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load store config: %w", err)
	}

	config := &GlobalConfig[T]{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode global config: %w", err)
	}
	config.Store = storeConfig
	config.Backend.Type = normalizeBackendType(config.Backend.Type)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// OpenTelemetry defaults
	v.SetDefault("observability.serviceName", "editwarning")
	v.SetDefault("observability.serviceVersion", "0.1.0")
	v.SetDefault("observability.environment", "development")
	v.SetDefault("observability.otelEndpoint", "localhost:4317")
	v.SetDefault("observability.disabled", false)

	// Logger defaults
	v.SetDefault("logger.level", string(observability.LogLevelInfo))

	// Server defaults
	v.SetDefault("serverAddress", "localhost:8080")

	// Lock defaults
	v.SetDefault("locks.timeout", "10m")
	v.SetDefault("locks.sweepSchedule", "@every 1m")
}
