package paywatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SharesWatcherPerSubject(t *testing.T) {
	r := NewRegistry(testInterval)
	defer r.Close()

	var calls int32
	check := func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	}

	w1, release1, err := r.Watch("order:1", check)
	require.NoError(t, err)
	w2, release2, err := r.Watch("order:1", check)
	require.NoError(t, err)

	assert.Same(t, w1, w2)
	assert.Equal(t, 1, r.Subjects())

	release1()
	assert.Equal(t, 1, r.Subjects(), "watcher must survive while a subscriber remains")

	release2()
	assert.Equal(t, 0, r.Subjects())

	// no more checks once the last subscriber is gone
	time.Sleep(5 * testInterval)
	stopped := atomic.LoadInt32(&calls)
	time.Sleep(10 * testInterval)
	assert.Equal(t, stopped, atomic.LoadInt32(&calls))
}

func TestRegistry_ReleaseIsIdempotent(t *testing.T) {
	r := NewRegistry(testInterval)
	defer r.Close()

	check := func(ctx context.Context) (bool, error) { return false, nil }

	_, release1, err := r.Watch("order:1", check)
	require.NoError(t, err)
	_, release2, err := r.Watch("order:1", check)
	require.NoError(t, err)

	release1()
	release1() // repeat must not steal the second subscriber's reference
	assert.Equal(t, 1, r.Subjects())

	release2()
	assert.Equal(t, 0, r.Subjects())
}

func TestRegistry_InvalidOptionsRejectedOnExistingSubject(t *testing.T) {
	r := NewRegistry(testInterval)
	defer r.Close()

	check := func(ctx context.Context) (bool, error) { return false, nil }

	_, release, err := r.Watch("order:1", check, WithAmount(500000))
	require.NoError(t, err)

	// joining an existing watch goes through the same validation as
	// starting one
	_, _, err = r.Watch("order:1", check, WithAmount(0))
	require.ErrorIs(t, err, ErrInvalidSubject)
	_, _, err = r.Watch("order:1", nil, WithAmount(500000))
	require.ErrorIs(t, err, ErrInvalidSubject)

	assert.Equal(t, 1, r.Subjects())
	release()
	assert.Equal(t, 0, r.Subjects(), "a rejected call must not hold a reference")
}

func TestRegistry_InvalidSubjectRejected(t *testing.T) {
	r := NewRegistry(testInterval)
	defer r.Close()

	check := func(ctx context.Context) (bool, error) { return true, nil }

	_, _, err := r.Watch("", check)
	require.ErrorIs(t, err, ErrInvalidSubject)

	_, _, err = r.Watch("order:1", check, WithAmount(0))
	require.ErrorIs(t, err, ErrInvalidSubject)
	assert.Equal(t, 0, r.Subjects())
}

func TestRegistry_LateSubscriberSeesConfirmedState(t *testing.T) {
	r := NewRegistry(testInterval)
	defer r.Close()

	check := func(ctx context.Context) (bool, error) { return true, nil }

	w1, release1, err := r.Watch("order:1", check)
	require.NoError(t, err)
	defer release1()

	require.Eventually(t, func() bool {
		return w1.Status() == StatusConfirmed
	}, time.Second, time.Millisecond)

	w2, release2, err := r.Watch("order:1", check)
	require.NoError(t, err)
	defer release2()

	assert.Same(t, w1, w2)
	assert.Equal(t, StatusConfirmed, w2.Status())
}

func TestRegistry_CloseStopsAllWatchers(t *testing.T) {
	r := NewRegistry(testInterval)

	var calls int32
	check := func(ctx context.Context) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return false, nil
	}

	_, _, err := r.Watch("order:1", check)
	require.NoError(t, err)
	_, _, err = r.Watch("order:2", check)
	require.NoError(t, err)

	r.Close()
	assert.Equal(t, 0, r.Subjects())

	time.Sleep(5 * testInterval)
	stopped := atomic.LoadInt32(&calls)
	time.Sleep(10 * testInterval)
	assert.Equal(t, stopped, atomic.LoadInt32(&calls))
}
