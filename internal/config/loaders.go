// internal/config/loaders.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/avivl/editwarning/internal/store/dynamodb"
	"github.com/avivl/editwarning/internal/store/etcd"
	"github.com/avivl/editwarning/internal/store/memory"
	"github.com/avivl/editwarning/internal/store/redis"
	"github.com/avivl/editwarning/internal/store/scylladb"
)

// decodeStore fills cfg from the store section. Going through Unmarshal keeps
// defaults, file values and environment overrides merged per key.
func decodeStore[T any](v *viper.Viper, cfg T) error {
	holder := struct {
		Store T `mapstructure:"store"`
	}{Store: cfg}
	return v.Unmarshal(&holder)
}

// MemoryConfigLoader loads the in-process store configuration
func MemoryConfigLoader(v *viper.Viper) (*memory.MemoryConfig, error) {
	v.SetDefault("backend.type", memory.StoreName)
	v.SetDefault("store.table", "memory")
	v.SetDefault("store.maxRetries", 0)
	v.SetDefault("store.retryInterval", time.Duration(0))

	config := memory.NewMemoryConfig()
	if err := decodeStore(v, config); err != nil {
		return nil, fmt.Errorf("unable to decode memory config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid memory configuration: %w", err)
	}
	return config, nil
}

// DynamoConfigLoader loads DynamoDB configuration
func DynamoConfigLoader(v *viper.Viper) (*dynamodb.DynamoDBConfig, error) {
	defaults := dynamodb.NewDynamoDBConfig()
	v.SetDefault("backend.type", dynamodb.StoreName)
	v.SetDefault("store.region", defaults.Region)
	v.SetDefault("store.table", defaults.TableName)
	v.SetDefault("store.maxRetries", defaults.MaxRetries)
	v.SetDefault("store.retryInterval", defaults.RetryInterval)
	v.SetDefault("store.endpoints", []string{})
	v.SetDefault("store.profile", "")
	v.SetDefault("store.accessKeyId", "")
	v.SetDefault("store.secretAccessKey", "")

	config := dynamodb.NewDynamoDBConfig()
	if err := decodeStore(v, config); err != nil {
		return nil, fmt.Errorf("unable to decode DynamoDB config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid DynamoDB configuration: %w", err)
	}
	return config, nil
}

// ScyllaConfigLoader loads ScyllaDB configuration
func ScyllaConfigLoader(v *viper.Viper) (*scylladb.ScyllaDBConfig, error) {
	defaults := scylladb.NewScyllaDBConfig()
	v.SetDefault("backend.type", scylladb.StoreName)
	v.SetDefault("store.host", defaults.Host)
	v.SetDefault("store.port", defaults.Port)
	v.SetDefault("store.keyspace", defaults.Keyspace)
	v.SetDefault("store.table", defaults.TableName)
	v.SetDefault("store.consistency", defaults.Consistency)
	v.SetDefault("store.replicationFactor", defaults.ReplicationFactor)
	v.SetDefault("store.maxRetries", defaults.MaxRetries)
	v.SetDefault("store.retryInterval", defaults.RetryInterval)

	config := scylladb.NewScyllaDBConfig()
	if err := decodeStore(v, config); err != nil {
		return nil, fmt.Errorf("unable to decode ScyllaDB config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ScyllaDB configuration: %w", err)
	}
	return config, nil
}

// RedisConfigLoader loads Redis configuration
func RedisConfigLoader(v *viper.Viper) (*redis.RedisConfig, error) {
	defaults := redis.NewRedisConfig()
	v.SetDefault("backend.type", redis.StoreName)
	v.SetDefault("store.host", defaults.Host)
	v.SetDefault("store.port", defaults.Port)
	v.SetDefault("store.password", "")
	v.SetDefault("store.db", defaults.DB)
	v.SetDefault("store.table", defaults.TableName)
	v.SetDefault("store.maxRetries", defaults.MaxRetries)
	v.SetDefault("store.retryInterval", defaults.RetryInterval)

	config := redis.NewRedisConfig()
	if err := decodeStore(v, config); err != nil {
		return nil, fmt.Errorf("unable to decode Redis config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid Redis configuration: %w", err)
	}
	return config, nil
}

// EtcdConfigLoader loads etcd configuration
func EtcdConfigLoader(v *viper.Viper) (*etcd.EtcdConfig, error) {
	defaults := etcd.NewEtcdConfig()
	v.SetDefault("backend.type", etcd.StoreName)
	v.SetDefault("store.endpoints", defaults.Endpoints)
	v.SetDefault("store.dialTimeout", defaults.DialTimeout)
	v.SetDefault("store.table", defaults.TableName)
	v.SetDefault("store.username", "")
	v.SetDefault("store.password", "")
	v.SetDefault("store.maxRetries", defaults.MaxRetries)
	v.SetDefault("store.retryInterval", defaults.RetryInterval)

	config := etcd.NewEtcdConfig()
	if err := decodeStore(v, config); err != nil {
		return nil, fmt.Errorf("unable to decode etcd config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid etcd configuration: %w", err)
	}
	return config, nil
}
