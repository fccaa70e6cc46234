// internal/store/redis/mock_redis_test.go
package redis

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avivl/editwarning/internal/observability"
)

// MockRedisClient is a mock for the Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	a := m.Called(ctx, script, keys, args)
	return a.Get(0).(*redis.Cmd)
}

func (m *MockRedisClient) EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	a := m.Called(ctx, sha1, keys, args)
	return a.Get(0).(*redis.Cmd)
}

func (m *MockRedisClient) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	a := m.Called(ctx, script, keys, args)
	return a.Get(0).(*redis.Cmd)
}

func (m *MockRedisClient) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	a := m.Called(ctx, sha1, keys, args)
	return a.Get(0).(*redis.Cmd)
}

func (m *MockRedisClient) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	a := m.Called(ctx, hashes)
	return a.Get(0).(*redis.BoolSliceCmd)
}

func (m *MockRedisClient) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	a := m.Called(ctx, script)
	return a.Get(0).(*redis.StringCmd)
}

// HGetAll mocks the HGetAll method
func (m *MockRedisClient) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	a := m.Called(ctx, key)
	return a.Get(0).(*redis.MapStringStringCmd)
}

// SMembers mocks the SMembers method
func (m *MockRedisClient) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	a := m.Called(ctx, key)
	return a.Get(0).(*redis.StringSliceCmd)
}

// Ping mocks the Ping method
func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	a := m.Called(ctx)
	return a.Get(0).(*redis.StatusCmd)
}

// Close mocks the Close method
func (m *MockRedisClient) Close() error {
	a := m.Called()
	return a.Error(0)
}

// setupMockStore returns a store whose client is a mock
func setupMockStore(t *testing.T) (*Store, *MockRedisClient) {
	t.Helper()
	client := new(MockRedisClient)
	logger, _, err := observability.NewTestLogger()
	require.NoError(t, err)

	config := NewRedisConfig()
	config.TableName = "test"
	config.MaxRetries = 2
	config.RetryInterval = 0

	return &Store{client: client, prefix: config.TableName, l: logger, config: config}, client
}
