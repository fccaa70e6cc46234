package scylladb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avivl/editwarning/internal/observability"
)

// MockSession is a mock implementation of session
type MockSession struct {
	mock.Mock
}

func (m *MockSession) Exec(ctx context.Context, stmt string, values ...interface{}) error {
	args := m.Called(ctx, stmt, values)
	return args.Error(0)
}

func (m *MockSession) Select(ctx context.Context, stmt string, values ...interface{}) ([]map[string]interface{}, error) {
	args := m.Called(ctx, stmt, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}

func (m *MockSession) ExecuteCAS(ctx context.Context, stmts []statement) (bool, error) {
	args := m.Called(ctx, stmts)
	return args.Bool(0), args.Error(1)
}

func (m *MockSession) Close() {
	m.Called()
}

func setupMockStore(t *testing.T) (*Store, *MockSession) {
	t.Helper()
	sess := new(MockSession)
	logger, _, err := observability.NewTestLogger()
	require.NoError(t, err)

	config := NewScyllaDBConfig()
	config.Keyspace = "test_ks"
	config.TableName = "test_locks"
	config.MaxRetries = 2
	config.RetryInterval = 0

	return newWithSession(sess, config, logger), sess
}
