// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package retry

import (
	"cmp"
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/wallclock"
)

type (
	// Task is one attempt of a retried operation. It reports whether a
	// failure is worth retrying.
	Task = func(context.Context) (shouldRetry bool, err error)

	// Policy runs a task until it succeeds or the policy gives up.
	Policy interface {
		Start(ctx context.Context, name string, task Task) error
	}
)

// ExponentialBackoff implements a retry policy with exponential backoff and
// optional jitter.
type ExponentialBackoff struct {
	// MaxAttempts sets the maximum number of attempts. The default value of 0
	// indicates unlimited attempts; setting this to 1 will disable retries.
	MaxAttempts uint64

	// MinInterval is the minimum interval between retries (before jitter).
	// Will be set to a default of 1/8s if unspecified.
	MinInterval time.Duration

	// MaxInterval is the maximum interval between retries (before jitter).
	// Will be set to a default of 30s if unspecified.
	MaxInterval time.Duration

	// Timeout is the total timeout for all retries.
	Timeout time.Duration

	// NoJitter removes the default jitter.
	NoJitter bool

	// Logger provides a logger which will be used to log retry attempts and
	// results.
	Logger *slog.Logger
}

// Start initiates the retry executions.
func (e *ExponentialBackoff) Start(
	ctx context.Context,
	name string,
	task Task,
) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = wallclock.Instance.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	l := logger{log.Wrap(e.Logger)}

	for attempt := uint64(1); ; attempt++ {
		l.attempt(ctx, name, attempt)
		retry, err := task(ctx)
		if err == nil {
			l.complete(ctx, name, attempt, nil)
			return nil
		}

		interval := e.Interval(attempt, retry && ctx.Err() == nil)
		if interval == 0 {
			l.complete(ctx, name, attempt, err)
			return err
		}
		l.wait(ctx, name, attempt, interval, err)

		select {
		case <-wallclock.Instance.After(interval):
		case <-ctx.Done():
			l.complete(ctx, name, attempt, ctx.Err())
			return ctx.Err()
		}
	}
}

// Interval returns how long to wait after the given attempt, or zero if no
// further attempt should be made. The wait doubles per attempt from
// MinInterval up to MaxInterval.
func (e *ExponentialBackoff) Interval(attempt uint64, retry bool) time.Duration {
	if !retry || attempt == e.MaxAttempts {
		return 0
	}

	lo := cmp.Or(e.MinInterval, time.Second/8)
	hi := max(cmp.Or(e.MaxInterval, 30*time.Second), lo)

	wait := lo
	for i := uint64(1); i < attempt && wait < hi; i++ {
		wait *= 2
	}
	wait = min(wait, hi)

	if e.NoJitter {
		return wait
	}
	// Spread reconnecting clients across 95%-105% of the nominal wait.
	// #nosec G404
	return time.Duration(float64(wait) * (0.95 + 0.1*rand.Float64()))
}
