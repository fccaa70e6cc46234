// internal/sweeper/sweeper_test.go
package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/avivl/editwarning/internal/metrics"
	"github.com/avivl/editwarning/internal/observability"
)

type MockPurger struct {
	mock.Mock
}

func (m *MockPurger) PurgeExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(&MockPurger{}, "every now and then", observability.NewNopLogger())
	assert.ErrorContains(t, err, "invalid sweep schedule")
}

func TestSweep(t *testing.T) {
	logger, logs, err := observability.NewTestLogger()
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		p := &MockPurger{}
		p.On("PurgeExpired", mock.Anything).Return(3, nil).Once()
		s, err := New(p, "@every 1m", logger)
		require.NoError(t, err)

		before := testutil.ToFloat64(metrics.SweepsTotal.WithLabelValues("success"))
		n, err := s.Sweep(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 3, n)
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.SweepsTotal.WithLabelValues("success")))
		assert.Equal(t, 1, logs.FilterMessage("expired locks swept").Len())
		p.AssertExpectations(t)
	})

	t.Run("failure", func(t *testing.T) {
		p := &MockPurger{}
		p.On("PurgeExpired", mock.Anything).Return(0, errors.New("store down")).Once()
		s, err := New(p, "@every 1m", logger)
		require.NoError(t, err)

		before := testutil.ToFloat64(metrics.SweepsTotal.WithLabelValues("failed"))
		_, err = s.Sweep(context.Background())
		assert.EqualError(t, err, "store down")
		assert.Equal(t, before+1, testutil.ToFloat64(metrics.SweepsTotal.WithLabelValues("failed")))
		assert.Equal(t, 1, logs.FilterMessage("store down").Len())
	})

	t.Run("nothing_expired_is_quiet", func(t *testing.T) {
		p := &MockPurger{}
		p.On("PurgeExpired", mock.Anything).Return(0, nil).Once()
		s, err := New(p, "@every 1m", logger)
		require.NoError(t, err)

		logs.TakeAll()
		_, err = s.Sweep(context.Background())
		require.NoError(t, err)
		assert.Zero(t, logs.FilterMessage("expired locks swept").Len())
	})
}

func TestReschedule(t *testing.T) {
	s, err := New(&MockPurger{}, "@every 1m", observability.NewNopLogger())
	require.NoError(t, err)
	first := s.entry

	require.NoError(t, s.Reschedule("@every 1m"))
	assert.Equal(t, first, s.entry)

	require.NoError(t, s.Reschedule("*/5 * * * *"))
	assert.NotEqual(t, first, s.entry)
	assert.Equal(t, "*/5 * * * *", s.Schedule())
	assert.Len(t, s.cron.Entries(), 1)

	assert.Error(t, s.Reschedule("bogus"))
	assert.Equal(t, "*/5 * * * *", s.Schedule())
	assert.Len(t, s.cron.Entries(), 1)
}

func TestStartStopsWithContext(t *testing.T) {
	s, err := New(&MockPurger{}, "@every 1h", observability.NewNopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	assert.Eventually(t, func() bool { return !s.Next().IsZero() }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
