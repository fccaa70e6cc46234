// internal/lockservice/mock_test.go
package lockservice

import (
	"context"
	"time"

	"github.com/avivl/editwarning/internal/observability"
	"github.com/avivl/editwarning/internal/store"
)

const testStoreName = "mock"

// MockConfig implements store.StoreConfig
type MockConfig struct {
	Endpoints []string
	Table     string
}

func (c *MockConfig) Validate() error                 { return nil }
func (c *MockConfig) GetEndpoints() []string          { return c.Endpoints }
func (c *MockConfig) GetTableName() string            { return c.Table }
func (c *MockConfig) GetMaxRetries() int              { return 0 }
func (c *MockConfig) GetRetryInterval() time.Duration { return 0 }

func newStore(ctx context.Context, options Config, logger *observability.SLogger) (store.LockStore, error) {
	cfg, ok := options.(*MockConfig)
	if !ok {
		return nil, &store.InvalidConfigurationError{Store: testStoreName, Config: options}
	}
	return &Mock{cfg: cfg}, nil
}

// Mock is a LockStore that keeps nothing.
type Mock struct {
	cfg *MockConfig
}

func (m *Mock) Load(_ context.Context, documentID int64) (store.LockSet, error) {
	return store.NewLockSet(documentID, nil), nil
}

func (m *Mock) Save(context.Context, store.LockRecord) error { return nil }
func (m *Mock) Remove(context.Context, int64, int) error     { return nil }
func (m *Mock) RemoveAll(context.Context, int64) error       { return nil }
func (m *Mock) RemoveByUser(context.Context, int64) error    { return nil }
func (m *Mock) Close()                                       {}
func (m *Mock) GetConfig() store.StoreConfig                 { return m.cfg }

func (m *Mock) Update(ctx context.Context, documentID int64, fn func(tx *store.Tx) error) error {
	set, err := m.Load(ctx, documentID)
	if err != nil {
		return err
	}
	return fn(store.NewTx(set))
}

func (m *Mock) RemoveExpired(context.Context, time.Time) (int, error) { return 0, nil }
