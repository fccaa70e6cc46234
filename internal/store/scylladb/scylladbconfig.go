package scylladb

import (
	"errors"
	"strconv"
	"time"

	"github.com/avivl/editwarning/internal/store"
)

type ScyllaDBConfig struct {
	store.BaseStoreConfig `yaml:",inline" mapstructure:",squash"`
	Host                  string `yaml:"host" mapstructure:"host"`
	Port                  int32  `yaml:"port" mapstructure:"port"`
	Keyspace              string `yaml:"keyspace" mapstructure:"keyspace"`
	Consistency           string `yaml:"consistency" mapstructure:"consistency"`
	ReplicationFactor     int    `yaml:"replicationFactor" mapstructure:"replicationFactor"`
}

func (c *ScyllaDBConfig) GetEndpoints() []string {
	return []string{c.Host + ":" + strconv.Itoa(int(c.Port))}
}

func (c *ScyllaDBConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	if c.Keyspace == "" {
		return errors.New("keyspace is required")
	}
	if c.TableName == "" {
		return errors.New("table is required")
	}
	if c.ReplicationFactor < 1 {
		return errors.New("replicationFactor must be at least 1")
	}
	if c.MaxRetries < 0 {
		return errors.New("maxRetries must be non-negative")
	}
	return nil
}

// NewScyllaDBConfig returns a configuration for a local single node cluster
func NewScyllaDBConfig() *ScyllaDBConfig {
	return &ScyllaDBConfig{
		BaseStoreConfig: store.BaseStoreConfig{
			TableName:     "edit_locks",
			MaxRetries:    5,
			RetryInterval: 50 * time.Millisecond,
		},
		Host:              "127.0.0.1",
		Port:              9042,
		Keyspace:          "editwarning",
		Consistency:       "CONSISTENCY_QUORUM",
		ReplicationFactor: 1,
	}
}
