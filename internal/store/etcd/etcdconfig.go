package etcd

import (
	"errors"
	"strings"
	"time"

	"github.com/avivl/editwarning/internal/store"
)

// EtcdConfig configures the etcd store. TableName is the key prefix.
type EtcdConfig struct {
	store.BaseStoreConfig `yaml:",inline" mapstructure:",squash"`
	Endpoints             []string      `yaml:"endpoints" mapstructure:"endpoints"`
	DialTimeout           time.Duration `yaml:"dialTimeout" mapstructure:"dialTimeout"`
	Username              string        `yaml:"username,omitempty" mapstructure:"username"`
	Password              string        `yaml:"password,omitempty" mapstructure:"password"`
}

func (c *EtcdConfig) GetEndpoints() []string {
	return c.Endpoints
}

func (c *EtcdConfig) Validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("at least one endpoint is required")
	}
	for _, ep := range c.Endpoints {
		if strings.TrimSpace(ep) == "" {
			return errors.New("endpoints cannot be empty")
		}
	}
	if !strings.HasPrefix(c.TableName, "/") {
		return errors.New("table must be a key prefix starting with /")
	}
	if c.DialTimeout <= 0 {
		return errors.New("dialTimeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("maxRetries must be non-negative")
	}
	if (c.Username == "") != (c.Password == "") {
		return errors.New("username and password must be provided together")
	}
	return nil
}

// NewEtcdConfig returns defaults for a local etcd
func NewEtcdConfig() *EtcdConfig {
	return &EtcdConfig{
		BaseStoreConfig: store.BaseStoreConfig{
			TableName:     "/editwarning/locks",
			MaxRetries:    5,
			RetryInterval: 20 * time.Millisecond,
		},
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
	}
}
