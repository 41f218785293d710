// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
)

type logger struct{ log.Logger }

// Attempts are logged at debug; a broker outage would otherwise flood the
// console once per backoff step.
func (l *logger) attempt(
	ctx context.Context,
	task string,
	attempt uint64,
) {
	l.Log(ctx, slog.LevelDebug, "retry",
		slog.String("task", task),
		slog.Uint64("attempt", attempt),
	)
}

func (l *logger) wait(
	ctx context.Context,
	task string,
	attempt uint64,
	interval time.Duration,
	err error,
) {
	l.Log(ctx, slog.LevelDebug, "retry scheduled",
		slog.String("task", task),
		slog.Uint64("attempt", attempt),
		slog.Duration("interval", interval),
		slog.String("error", err.Error()),
	)
}

func (l *logger) complete(
	ctx context.Context,
	task string,
	attempt uint64,
	err error,
) {
	if err != nil {
		l.Log(ctx, slog.LevelWarn, "retry failed",
			slog.String("task", task),
			slog.Uint64("attempt", attempt),
			slog.String("error", err.Error()),
		)
	} else if attempt > 1 {
		l.Log(ctx, slog.LevelInfo, "retry succeeded",
			slog.String("task", task),
			slog.Uint64("attempt", attempt),
		)
	}
}
