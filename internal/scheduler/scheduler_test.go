package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type mockExpirer struct{ mock.Mock }

func (m *mockExpirer) ExpireStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestScheduler_Tick_ExpiresStale(t *testing.T) {
	expirer := &mockExpirer{}
	s := New(expirer, 30*time.Millisecond, zap.NewNop())

	expirer.On("ExpireStale", mock.Anything).Return(2, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	s.Start(ctx)

	expirer.AssertCalled(t, "ExpireStale", mock.Anything)
}

func TestScheduler_Tick_HandlesError(t *testing.T) {
	expirer := &mockExpirer{}
	s := New(expirer, 30*time.Millisecond, zap.NewNop())

	expirer.On("ExpireStale", mock.Anything).Return(0, errors.New("db error"))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	s.Start(ctx)

	assert.GreaterOrEqual(t, len(expirer.Calls), 1)
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := New(&mockExpirer{}, time.Second, zap.NewNop()) // interval longer than test

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}

func TestScheduler_NonPositiveIntervalUsesDefault(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		s := New(&mockExpirer{}, d, zap.NewNop())
		assert.Equal(t, DefaultInterval, s.interval)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NotPanics(t, func() { s.Start(ctx) })
	}
}
