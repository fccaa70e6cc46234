// internal/store/redis/redisconfig.go

package redis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avivl/editwarning/internal/store"
)

// RedisConfig holds Redis-specific configuration. TableName is used as the key prefix.
type RedisConfig struct {
	store.BaseStoreConfig `yaml:",inline" mapstructure:",squash"`
	Host                  string `yaml:"host" mapstructure:"host"`
	Port                  int    `yaml:"port" mapstructure:"port"`
	Password              string `yaml:"password,omitempty" mapstructure:"password"`
	DB                    int    `yaml:"db" mapstructure:"db"`
}

// NewRedisConfig creates a new Redis configuration with default values
func NewRedisConfig() *RedisConfig {
	return &RedisConfig{
		BaseStoreConfig: store.BaseStoreConfig{
			TableName:     "editwarning",
			MaxRetries:    5,
			RetryInterval: 20 * time.Millisecond,
		},
		Host: "localhost",
		Port: 6379,
	}
}

// Validate ensures the Redis configuration is valid
func (c *RedisConfig) Validate() error {
	var errs []string

	if c.Host == "" {
		errs = append(errs, "host is required")
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.DB < 0 {
		errs = append(errs, "DB number must be non-negative")
	}

	if c.TableName == "" {
		errs = append(errs, "table (key prefix) is required")
	}

	if c.MaxRetries < 0 {
		errs = append(errs, "maxRetries must be non-negative")
	}

	if len(errs) > 0 {
		return errors.New("store validation failed: " + strings.Join(errs, "; "))
	}

	return nil
}

// String returns a string representation of the Redis configuration
func (c *RedisConfig) String() string {
	return fmt.Sprintf(
		"RedisConfig{Host: %s, Port: %d, DB: %d, Prefix: %s}",
		c.Host,
		c.Port,
		c.DB,
		c.TableName,
	)
}

// GetEndpoints returns the Redis address
func (c *RedisConfig) GetEndpoints() []string {
	return []string{fmt.Sprintf("%s:%d", c.Host, c.Port)}
}
