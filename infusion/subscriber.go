// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import (
	"context"
	"log/slog"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/wallclock"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/mqtt/retry"
)

// Subscriber keeps one session field current from a push subscription:
// the remaining time, or the nurse-call flag. Updates are applied on the
// goroutine running Run.
type Subscriber struct {
	store    Store
	key      string
	apply    func(*Subscriber, context.Context, Value) bool
	sink     sink
	retry    retry.Policy
	recorder Recorder
	log      log.Logger
}

// Run establishes the subscription, retrying transport failures, and applies
// updates until ctx is done. The subscription is released on every exit path.
func (s *Subscriber) Run(ctx context.Context) error {
	updates := make(chan Value)
	callback := func(v Value) {
		select {
		case updates <- v:
		case <-ctx.Done():
		}
	}

	var sub Subscription
	err := s.retry.Start(ctx, "subscribe", func(actx context.Context) (bool, error) {
		var err error
		sub, err = s.store.Subscribe(actx, s.key, callback)
		if err != nil {
			s.log.Warn(ctx, "subscribing failed", err, slog.String("key", s.key))
		}
		return true, err
	})
	if err != nil {
		return err
	}
	s.log.Log(ctx, slog.LevelInfo, "subscribed", slog.String("key", s.key))

	defer func() {
		uctx, cancel := wallclock.Instance.WithTimeout(
			context.Background(),
			unsubscribeTimeout,
		)
		defer cancel()
		if err := sub.Unsubscribe(uctx); err != nil {
			s.log.Warn(uctx, "unsubscribe failed", err, slog.String("key", s.key))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-updates:
			s.Handle(ctx, v)
		}
	}
}

// Handle applies one pushed value and reports whether the session changed.
// For the remaining time, absent and malformed values leave the reading
// unchanged. An absent nurse-call flag clears the call.
func (s *Subscriber) Handle(ctx context.Context, v Value) bool {
	s.recorder.Notification(s.key)
	return s.apply(s, ctx, v)
}

func (s *Subscriber) remaining(ctx context.Context, v Value) bool {
	if !v.Present {
		s.log.Log(ctx, slog.LevelDebug, "remaining time absent",
			slog.String("key", s.key),
		)
		return false
	}

	remaining, err := ParseValue(v.Data)
	if err != nil {
		s.log.Warn(ctx, "ignoring remaining time", err, slog.String("key", s.key))
		return false
	}
	return s.sink.setRemaining(remaining)
}

func (s *Subscriber) nurseCall(ctx context.Context, v Value) bool {
	if !v.Present {
		return s.sink.setNurseCall(false)
	}

	on, err := ParseFlag(v.Data)
	if err != nil {
		s.log.Warn(ctx, "ignoring nurse call flag", err, slog.String("key", s.key))
		return false
	}
	return s.sink.setNurseCall(on)
}

func defaultSubscribeRetry(logger *slog.Logger) retry.Policy {
	return &retry.ExponentialBackoff{
		MinInterval: 250 * time.Millisecond,
		MaxInterval: 10 * time.Second,
		Logger:      logger,
	}
}
