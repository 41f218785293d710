// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import (
	"context"
	"testing"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt/retry"
	"github.com/stretchr/testify/require"
)

func present(s string) Value {
	return Value{Data: []byte(s), Present: true}
}

func TestNewSessionValidatesOptions(t *testing.T) {
	store := newFakeStore()

	_, err := NewSession(nil)
	require.ErrorIs(t, err, ErrInvalidOption)

	_, err = NewSession(store, WithCapacity(0))
	require.ErrorIs(t, err, ErrInvalidOption)

	_, err = NewSession(store, WithInterval(0))
	require.ErrorIs(t, err, ErrInvalidOption)

	_, err = NewSession(store, WithWeightKey(""))
	require.ErrorIs(t, err, ErrInvalidOption)

	s, err := NewSession(store, WithCapacity(20))
	require.NoError(t, err)
	require.Equal(t, 20, s.Snapshot().Capacity)
}

func TestSubscriberUpdatesDoNotTouchHistory(t *testing.T) {
	s := newTestSession(t, newFakeStore())
	ctx := context.Background()

	require.True(t, s.Subscriber().Handle(ctx, present("600")))
	require.True(t, s.Subscriber().Handle(ctx, present("540")))

	snap := s.Snapshot()
	require.Equal(t, 540.0, snap.RemainingSeconds)
	require.Equal(t, "≤ 10 min", snap.RemainingText)
	require.Empty(t, snap.Values)
	require.Empty(t, snap.Labels)
	require.Zero(t, snap.Weight)
}

func TestSubscriberKeepsLastValue(t *testing.T) {
	s := newTestSession(t, newFakeStore())
	ctx := context.Background()

	require.True(t, s.Subscriber().Handle(ctx, present("600")))
	require.False(t, s.Subscriber().Handle(ctx, Value{}))
	require.False(t, s.Subscriber().Handle(ctx, present("soon")))
	require.Equal(t, 600.0, s.Snapshot().RemainingSeconds)
}

func TestSubscriberNegativeMeansNoEstimate(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	require.True(t, s.Subscriber().Handle(context.Background(), present("-1")))
	require.Equal(t, "no estimate", s.Snapshot().RemainingText)
}

func TestSessionLifecycle(t *testing.T) {
	store := newFakeStore()
	rec := newFakeRecorder()
	s := newTestSession(t, store,
		WithInterval(10*time.Millisecond),
		WithCapacity(5),
		WithRecorder(rec),
	)
	store.set(DefaultWeightKey, "500")

	changes, stop := s.Watch()
	defer stop()

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrSessionStarted)

	require.Eventually(t, func() bool {
		return store.subscribed(DefaultRemainingKey)
	}, time.Second, 5*time.Millisecond)
	store.push(DefaultRemainingKey, present("1500"))

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return len(snap.Values) == 5 && snap.RemainingSeconds == 1500
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case <-changes:
	case <-time.After(time.Second):
		require.Fail(t, "no change signal")
	}

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Equal(t, 1, store.unsubscribes(DefaultRemainingKey))
	require.ErrorIs(t, s.Start(context.Background()), ErrSessionClosed)

	// Drain buffered signals; the channel is closed by Close.
	for range changes {
	}

	before := s.Snapshot()
	reads := store.readCount()
	store.set(DefaultWeightKey, "400")
	store.push(DefaultRemainingKey, present("60"))
	s.SetConnected(true)
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, before, s.Snapshot())
	require.Equal(t, reads, store.readCount())
	require.Equal(t, 5, rec.lastHistoryLen())
}

func TestSessionStopsWithContext(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool {
		return store.subscribed(DefaultRemainingKey)
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, s.Close())
	require.Equal(t, 1, store.unsubscribes(DefaultRemainingKey))

	require.False(t, s.Subscriber().Handle(context.Background(), present("60")))
}

func TestSessionRetriesSubscribe(t *testing.T) {
	store := newFakeStore()
	store.subscribeErrs = []error{errTransport, errTransport}

	s := newTestSession(t, store,
		WithInterval(time.Hour),
		WithSubscribeRetry(&retry.ExponentialBackoff{
			MinInterval: time.Millisecond,
			MaxInterval: 5 * time.Millisecond,
			NoJitter:    true,
		}),
	)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool {
		return store.subscribed(DefaultRemainingKey)
	}, time.Second, 5*time.Millisecond)

	store.push(DefaultRemainingKey, present("90"))
	require.Eventually(t, func() bool {
		return s.Snapshot().RemainingSeconds == 90
	}, time.Second, 5*time.Millisecond)
}

func TestSessionWatch(t *testing.T) {
	s := newTestSession(t, newFakeStore())

	changes, stop := s.Watch()

	s.SetConnected(true)
	s.SetConnected(true)
	s.SetConnected(false)

	// Signals coalesce into a single pending wake.
	_, ok := <-changes
	require.True(t, ok)
	select {
	case <-changes:
		require.Fail(t, "signals did not coalesce")
	default:
	}
	require.False(t, s.Snapshot().Connected)

	stop()
	stop()
	_, ok = <-changes
	require.False(t, ok)

	require.NoError(t, s.Close())
	closed, _ := s.Watch()
	_, ok = <-closed
	require.False(t, ok)
}
