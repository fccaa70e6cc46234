// internal/config/types.go
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
)

// GlobalConfig represents the application configuration with generic store config
type GlobalConfig[T store.StoreConfig] struct {
	ServerAddress string                     `yaml:"serverAddress" mapstructure:"serverAddress" validate:"required,hostname_port"`
	Store         T                          `yaml:"store" mapstructure:"-"`
	Logger        observability.LoggerConfig `yaml:"logger" mapstructure:"logger"`
	Observability observability.Config       `yaml:"observability" mapstructure:"observability"`
	Backend       BackendConfig              `yaml:"backend" mapstructure:"backend"`
	Locks         LocksConfig                `yaml:"locks" mapstructure:"locks"`
}

// Erase returns the same configuration with the store behind the StoreConfig interface.
func (c *GlobalConfig[T]) Erase() *GlobalConfig[store.StoreConfig] {
	return &GlobalConfig[store.StoreConfig]{
		ServerAddress: c.ServerAddress,
		Store:         c.Store,
		Logger:        c.Logger,
		Observability: c.Observability,
		Backend:       c.Backend,
		Locks:         c.Locks,
	}
}

// BackendConfig represents the backend configuration section
type BackendConfig struct {
	Type string `yaml:"type" mapstructure:"type" validate:"required,oneof=memory dynamodb scylladb redis etcd"`
}

// LocksConfig controls lock expiry
type LocksConfig struct {
	// Timeout after which a lock is treated as abandoned. Zero disables expiry.
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	SweepSchedule string        `yaml:"sweepSchedule" mapstructure:"sweepSchedule" validate:"required,cron"`
}

// ConfigLoadFn loads the store section of a configuration
type ConfigLoadFn[T store.StoreConfig] func(*viper.Viper) (T, error)

// RootConfig is the part of the file read before the backend is known
type RootConfig struct {
	Backend BackendConfig `yaml:"backend"`
}
