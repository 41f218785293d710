// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/wallclock"
)

type (
	// Sampler reads the weight key once per interval and appends each present
	// value to the session history. At most one read is in flight; a tick that
	// fires while the previous read is unresolved is dropped.
	Sampler struct {
		store    Store
		key      string
		interval time.Duration
		layout   string
		sink     sink
		recorder Recorder
		log      log.Logger

		inflight atomic.Bool
	}

	sink interface {
		appendWeight(Point) bool
		setRemaining(float64) bool
		setNurseCall(bool) bool
		isClosed() bool
	}
)

// Run ticks every interval until ctx is done, then waits for an in-flight
// read to resolve.
func (s *Sampler) Run(ctx context.Context) {
	ticker := wallclock.Instance.NewTicker(s.interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Tick(ctx)
			}()
		}
	}
}

// Tick performs one sampling step and returns its outcome.
func (s *Sampler) Tick(ctx context.Context) TickOutcome {
	if !s.inflight.CompareAndSwap(false, true) {
		s.log.Log(ctx, slog.LevelDebug, "previous read in flight; tick dropped",
			slog.String("key", s.key),
		)
		s.recorder.Tick(TickDropped)
		return TickDropped
	}
	defer s.inflight.Store(false)

	outcome := s.tick(ctx)
	s.recorder.Tick(outcome)
	return outcome
}

func (s *Sampler) tick(ctx context.Context) TickOutcome {
	if s.sink.isClosed() || ctx.Err() != nil {
		return TickStopped
	}

	// Bounded by the interval so the read resolves before the next tick.
	rctx, cancel := wallclock.Instance.WithTimeout(ctx, s.interval)
	defer cancel()

	val, err := s.store.ReadOnce(rctx, s.key)
	switch {
	case err != nil && ctx.Err() != nil:
		return TickStopped
	case errors.Is(err, context.DeadlineExceeded):
		s.log.Warn(ctx, "weight read timed out", err, slog.String("key", s.key))
		return TickFailed
	case err != nil:
		s.log.Warn(ctx, "weight read failed", err, slog.String("key", s.key))
		return TickFailed
	case !val.Present:
		s.log.Log(ctx, slog.LevelDebug, "weight absent; tick skipped",
			slog.String("key", s.key),
		)
		return TickSkipped
	}

	weight, err := ParseValue(val.Data)
	if err != nil {
		s.log.Warn(ctx, "ignoring weight", err, slog.String("key", s.key))
		return TickSkipped
	}

	label := wallclock.Instance.Now().Format(s.layout)
	if !s.sink.appendWeight(Point{Label: label, Value: weight}) {
		return TickStopped
	}
	return TickAppended
}
