// internal/store/memory/memoryconfig.go
package memory

import (
	"errors"

	"github.com/avivl/editwarning/internal/store"
)

// MemoryConfig configures the in-process store. It keeps nothing across restarts.
type MemoryConfig struct {
	store.BaseStoreConfig `yaml:",inline" mapstructure:",squash"`
}

// NewMemoryConfig returns a config with defaults applied.
func NewMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		BaseStoreConfig: store.BaseStoreConfig{
			TableName:     "memory",
			MaxRetries:    0,
			RetryInterval: 0,
		},
	}
}

// Validate implements store.StoreConfig.
func (c *MemoryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("store validation failed: maxRetries must be non-negative")
	}
	if c.RetryInterval < 0 {
		return errors.New("store validation failed: retryInterval must be non-negative")
	}
	return nil
}

// GetEndpoints implements store.StoreConfig. The memory store has none.
func (c *MemoryConfig) GetEndpoints() []string {
	return nil
}
