package paywatch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = 10 * time.Millisecond

func TestWatcher_AlreadySettledConfirmsImmediately(t *testing.T) {
	var calls, effects int32
	check := func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	}

	w := New("ORDER123", check,
		WithInterval(testInterval),
		WithAmount(500000),
		WithOnConfirmed(func(context.Context) { atomic.AddInt32(&effects, 1) }),
	)
	require.NoError(t, w.Start(context.Background()))

	// the first check fires before the first interval tick
	require.Eventually(t, func() bool {
		return w.Status() == StatusConfirmed
	}, time.Second, time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&effects))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestWatcher_PendingThenConfirmed(t *testing.T) {
	var calls, effects int32
	check := func(ctx context.Context) (bool, error) {
		return atomic.AddInt32(&calls, 1) >= 2, nil
	}

	w := New("ORDER123", check,
		WithInterval(testInterval),
		WithAmount(500000),
		WithOnConfirmed(func(context.Context) { atomic.AddInt32(&effects, 1) }),
	)
	require.NoError(t, w.Start(context.Background()))

	require.Eventually(t, func() bool {
		return w.Status() == StatusConfirmed
	}, time.Second, time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&effects))
	assert.NoError(t, w.LastError())

	// no further checks may be issued once confirmed
	time.Sleep(5 * testInterval)
	settledCalls := atomic.LoadInt32(&calls)
	time.Sleep(10 * testInterval)
	assert.Equal(t, settledCalls, atomic.LoadInt32(&calls))
}

func TestWatcher_SideEffectFiresOnceUnderOverlappingChecks(t *testing.T) {
	var effects int32
	// every check is slower than the interval, so several settled results
	// resolve concurrently
	check := func(ctx context.Context) (bool, error) {
		time.Sleep(4 * testInterval)
		return true, nil
	}

	w := New("ORDER123", check,
		WithInterval(testInterval),
		WithOnConfirmed(func(context.Context) { atomic.AddInt32(&effects, 1) }),
	)
	require.NoError(t, w.Start(context.Background()))

	require.Eventually(t, func() bool {
		return w.Status() == StatusConfirmed
	}, time.Second, time.Millisecond)

	// let stragglers resolve
	time.Sleep(10 * testInterval)
	assert.Equal(t, int32(1), atomic.LoadInt32(&effects))
}

func TestWatcher_PersistentPending(t *testing.T) {
	var calls int32
	check := func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	}

	w := New("ORDER123", check, WithInterval(testInterval), WithAmount(500000))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 10
	}, time.Second, time.Millisecond)

	assert.Equal(t, StatusPending, w.Status())
	assert.NoError(t, w.LastError())
}

func TestWatcher_TransientErrorDoesNotStopPolling(t *testing.T) {
	var calls, effects int32
	check := func(ctx context.Context) (bool, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return false, errors.New("connection refused")
		}
		return true, nil
	}

	w := New("ORDER123", check,
		WithInterval(testInterval),
		WithOnConfirmed(func(context.Context) { atomic.AddInt32(&effects, 1) }),
	)
	require.NoError(t, w.Start(context.Background()))

	// the failed first check is advisory only
	require.Eventually(t, func() bool {
		return w.LastError() != nil || w.Status() == StatusConfirmed
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		return w.Status() == StatusConfirmed
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&effects))
}

func TestWatcher_InvalidSubjectNeverChecks(t *testing.T) {
	var calls int32
	check := func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	}

	tests := []struct {
		name    string
		watcher *Watcher
	}{
		{"empty subject", New("", check, WithInterval(testInterval))},
		{"zero amount", New("ORDER123", check, WithInterval(testInterval), WithAmount(0))},
		{"negative amount", New("ORDER123", check, WithInterval(testInterval), WithAmount(-1))},
		{"nil check", New("ORDER123", nil, WithInterval(testInterval))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.watcher.Start(context.Background())
			require.ErrorIs(t, err, ErrInvalidSubject)
		})
	}

	time.Sleep(5 * testInterval)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestWatcher_StopDiscardsInFlightResult(t *testing.T) {
	var effects int32
	release := make(chan struct{})
	check := func(ctx context.Context) (bool, error) {
		<-release
		return true, nil
	}

	w := New("ORDER123", check,
		WithInterval(time.Hour), // only the immediate first check runs
		WithOnConfirmed(func(context.Context) { atomic.AddInt32(&effects, 1) }),
	)
	require.NoError(t, w.Start(context.Background()))

	// stop while the first check is still in flight, then let it resolve
	w.Stop()
	close(release)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StatusPending, w.Status())
	assert.Equal(t, int32(0), atomic.LoadInt32(&effects))
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New("ORDER123", func(ctx context.Context) (bool, error) { return false, nil },
		WithInterval(testInterval))
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()
	assert.Equal(t, StatusPending, w.Status())
}

func TestWatcher_StopAfterConfirmationIsNoOp(t *testing.T) {
	w := New("ORDER123", func(ctx context.Context) (bool, error) { return true, nil },
		WithInterval(testInterval))
	require.NoError(t, w.Start(context.Background()))

	require.Eventually(t, func() bool {
		return w.Status() == StatusConfirmed
	}, time.Second, time.Millisecond)

	w.Stop()
	assert.Equal(t, StatusConfirmed, w.Status())
}

func TestWatcher_ContextCancelStopsPolling(t *testing.T) {
	var calls int32
	check := func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := New("ORDER123", check, WithInterval(testInterval))
	require.NoError(t, w.Start(ctx))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) >= 2
	}, time.Second, time.Millisecond)

	cancel()
	time.Sleep(5 * testInterval)
	stopped := atomic.LoadInt32(&calls)
	time.Sleep(10 * testInterval)
	assert.Equal(t, stopped, atomic.LoadInt32(&calls))
}

func TestWatcher_StartTwiceFails(t *testing.T) {
	w := New("ORDER123", func(ctx context.Context) (bool, error) { return false, nil },
		WithInterval(testInterval))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.ErrorIs(t, w.Start(context.Background()), ErrAlreadyStarted)
}
