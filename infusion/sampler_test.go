// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, store Store, opts ...SessionOption) *Session {
	s, err := NewSession(store, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSamplerKeepsTrailingWindow(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store, WithCapacity(20))
	ctx := context.Background()

	for i := 1; i <= 25; i++ {
		store.set(DefaultWeightKey, fmt.Sprint(i))
		require.Equal(t, TickAppended, s.Sampler().Tick(ctx))
	}

	snap := s.Snapshot()
	require.Len(t, snap.Values, 20)
	require.Len(t, snap.Labels, 20)
	require.Equal(t, 6.0, snap.Values[0])
	require.Equal(t, 25.0, snap.Values[19])
	require.Equal(t, 25.0, snap.Weight)
	require.Equal(t, 20, snap.Capacity)
}

func TestSamplerLeavesRemainingUntouched(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store, WithCapacity(20))
	ctx := context.Background()

	require.True(t, s.Subscriber().Handle(ctx, present("321")))

	for i := 0; i < 25; i++ {
		store.set(DefaultWeightKey, fmt.Sprint(100-float64(i)/2))
		require.Equal(t, TickAppended, s.Sampler().Tick(ctx))
		require.Equal(t, 321.0, s.Snapshot().RemainingSeconds)
	}

	// Interleaved pushes only move the remaining time.
	require.True(t, s.Subscriber().Handle(ctx, present("300")))
	store.set(DefaultWeightKey, "87")
	require.Equal(t, TickAppended, s.Sampler().Tick(ctx))

	snap := s.Snapshot()
	require.Equal(t, 300.0, snap.RemainingSeconds)
	require.Equal(t, "≤ 5 min", snap.RemainingText)
	require.Len(t, snap.Values, 20)
	require.Equal(t, 97.0, snap.Values[0])
	require.Equal(t, 87.0, snap.Values[19])
	require.Equal(t, 87.0, snap.Weight)
}

func TestSamplerSkipsAbsentValues(t *testing.T) {
	store := newFakeStore()
	rec := newFakeRecorder()
	s := newTestSession(t, store, WithRecorder(rec))
	ctx := context.Background()

	store.set(DefaultWeightKey, "50")
	require.Equal(t, TickAppended, s.Sampler().Tick(ctx))

	store.del(DefaultWeightKey)
	require.Equal(t, TickSkipped, s.Sampler().Tick(ctx))

	store.set(DefaultWeightKey, "49")
	require.Equal(t, TickAppended, s.Sampler().Tick(ctx))

	snap := s.Snapshot()
	require.Equal(t, []float64{50, 49}, snap.Values)
	require.Equal(t, 49.0, snap.Weight)
	require.Equal(t, 2, rec.count(TickAppended))
	require.Equal(t, 1, rec.count(TickSkipped))
}

func TestSamplerSkipsMalformedValues(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store)

	store.set(DefaultWeightKey, "4l2")
	require.Equal(t, TickSkipped, s.Sampler().Tick(context.Background()))
	require.Empty(t, s.Snapshot().Values)
}

func TestSamplerLabelsUseLayout(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store, WithLabelFormat("2006"))

	store.set(DefaultWeightKey, "300")
	require.Equal(t, TickAppended, s.Sampler().Tick(context.Background()))
	require.Equal(t, []string{fmt.Sprint(time.Now().Year())}, s.Snapshot().Labels)
}

func TestSamplerDropsOverlappingTick(t *testing.T) {
	store := newFakeStore()
	rec := newFakeRecorder()
	s := newTestSession(t, store, WithRecorder(rec), WithInterval(time.Minute))

	entered := make(chan struct{})
	release := make(chan struct{})
	store.block = func(context.Context) error {
		close(entered)
		<-release
		return nil
	}
	store.set(DefaultWeightKey, "480")

	first := make(chan TickOutcome)
	go func() { first <- s.Sampler().Tick(context.Background()) }()
	<-entered

	require.Equal(t, TickDropped, s.Sampler().Tick(context.Background()))
	require.Equal(t, 1, store.readCount())

	close(release)
	require.Equal(t, TickAppended, <-first)
	require.Equal(t, []float64{480}, s.Snapshot().Values)
	require.Equal(t, 1, rec.count(TickDropped))
}

func TestSamplerReadTimesOut(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store, WithInterval(20*time.Millisecond))

	store.block = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	store.set(DefaultWeightKey, "480")

	require.Equal(t, TickFailed, s.Sampler().Tick(context.Background()))
	require.Empty(t, s.Snapshot().Values)
}

func TestSamplerTransportFailure(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store)

	store.block = func(context.Context) error { return errTransport }
	require.Equal(t, TickFailed, s.Sampler().Tick(context.Background()))

	// The next tick proceeds normally.
	store.block = nil
	store.set(DefaultWeightKey, "12")
	require.Equal(t, TickAppended, s.Sampler().Tick(context.Background()))
}

func TestSamplerStopsAfterClose(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store)
	store.set(DefaultWeightKey, "480")

	require.NoError(t, s.Close())
	require.Equal(t, TickStopped, s.Sampler().Tick(context.Background()))
	require.Zero(t, store.readCount())
	require.Empty(t, s.Snapshot().Values)
}

func TestSamplerDiscardsReadResolvingAfterClose(t *testing.T) {
	store := newFakeStore()
	s := newTestSession(t, store, WithInterval(time.Minute))

	entered := make(chan struct{})
	release := make(chan struct{})
	store.block = func(context.Context) error {
		close(entered)
		<-release
		return nil
	}
	store.set(DefaultWeightKey, "480")

	done := make(chan TickOutcome)
	go func() { done <- s.Sampler().Tick(context.Background()) }()
	<-entered

	require.NoError(t, s.Close())
	close(release)
	require.Equal(t, TickStopped, <-done)
	require.Empty(t, s.Snapshot().Values)
	require.Zero(t, s.Snapshot().Weight)
}
