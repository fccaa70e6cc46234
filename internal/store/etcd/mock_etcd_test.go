package etcd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/avivl/editwarning/internal/observability"
)

// MockKV is a mock implementation of clientv3.KV
type MockKV struct {
	mock.Mock
}

func (m *MockKV) Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	args := m.Called(ctx, key, val)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clientv3.PutResponse), args.Error(1)
}

func (m *MockKV) Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clientv3.GetResponse), args.Error(1)
}

func (m *MockKV) Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clientv3.DeleteResponse), args.Error(1)
}

func (m *MockKV) Compact(ctx context.Context, rev int64, opts ...clientv3.CompactOption) (*clientv3.CompactResponse, error) {
	args := m.Called(ctx, rev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clientv3.CompactResponse), args.Error(1)
}

func (m *MockKV) Do(ctx context.Context, op clientv3.Op) (clientv3.OpResponse, error) {
	args := m.Called(ctx, op)
	return args.Get(0).(clientv3.OpResponse), args.Error(1)
}

func (m *MockKV) Txn(ctx context.Context) clientv3.Txn {
	args := m.Called(ctx)
	return args.Get(0).(clientv3.Txn)
}

// fakeTxn records what the store asked for and answers with a canned response.
type fakeTxn struct {
	cmps    []clientv3.Cmp
	ops     []clientv3.Op
	resp    *clientv3.TxnResponse
	err     error
	commits int
}

func (f *fakeTxn) If(cs ...clientv3.Cmp) clientv3.Txn {
	f.cmps = append(f.cmps, cs...)
	return f
}

func (f *fakeTxn) Then(ops ...clientv3.Op) clientv3.Txn {
	f.ops = append(f.ops, ops...)
	return f
}

func (f *fakeTxn) Else(ops ...clientv3.Op) clientv3.Txn {
	return f
}

func (f *fakeTxn) Commit() (*clientv3.TxnResponse, error) {
	f.commits++
	return f.resp, f.err
}

func setupMockStore(t *testing.T) (*Store, *MockKV) {
	t.Helper()
	kv := new(MockKV)
	logger, _, err := observability.NewTestLogger()
	require.NoError(t, err)

	config := NewEtcdConfig()
	config.TableName = "/test"
	config.MaxRetries = 2
	config.RetryInterval = 0

	return newWithKV(kv, config, logger), kv
}
