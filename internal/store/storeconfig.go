package store

import "time"

type StoreConfig interface {
	// Common configuration methods
	GetTableName() string
	GetEndpoints() []string
	GetMaxRetries() int
	GetRetryInterval() time.Duration

	// Database specific methods
	Validate() error
}

// BaseStoreConfig carries the settings shared by every backend.
type BaseStoreConfig struct {
	TableName     string        `yaml:"table" mapstructure:"table"`
	MaxRetries    int           `yaml:"maxRetries" mapstructure:"maxRetries"`
	RetryInterval time.Duration `yaml:"retryInterval" mapstructure:"retryInterval"`
}

// Common implementation of the interface methods
func (b *BaseStoreConfig) GetTableName() string {
	return b.TableName
}

func (b *BaseStoreConfig) GetMaxRetries() int {
	return b.MaxRetries
}

func (b *BaseStoreConfig) GetRetryInterval() time.Duration {
	return b.RetryInterval
}
