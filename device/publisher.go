// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package device

import (
	"context"
	"log/slog"
	"time"

	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/log"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/wallclock"
	"github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/statestore"
	"github.com/shopspring/decimal"
)

type (
	// StateStoreClient is the subset of the state store client the device
	// writes through.
	StateStoreClient interface {
		Set(
			ctx context.Context,
			key string,
			val []byte,
			opt ...statestore.SetOption,
		) (bool, error)
	}

	// Publisher writes estimates to the state store.
	Publisher struct {
		client       StateStoreClient
		weightKey    string
		remainingKey string
		expiry       time.Duration
	}

	// Simulator samples a load cell and publishes one estimate per window.
	Simulator struct {
		Cell      *LoadCell
		Estimator *Estimator
		Publisher *Publisher

		// SampleInterval is the time between raw reads.
		SampleInterval time.Duration
		Logger         *slog.Logger
	}
)

// NewPublisher creates a publisher for the given keys. A positive expiry
// makes the values disappear when the device stops publishing.
func NewPublisher(
	client StateStoreClient,
	weightKey, remainingKey string,
	expiry time.Duration,
) *Publisher {
	return &Publisher{
		client:       client,
		weightKey:    weightKey,
		remainingKey: remainingKey,
		expiry:       expiry,
	}
}

// Publish writes the weight then the remaining time. The weight is rounded
// half away from zero to 0.1 g and the remaining time to whole seconds.
func (p *Publisher) Publish(ctx context.Context, est Estimate) error {
	var opt []statestore.SetOption
	if p.expiry > 0 {
		opt = append(opt, statestore.WithExpiry(p.expiry))
	}

	weight := decimal.NewFromFloat(est.Weight).StringFixed(1)
	if _, err := p.client.Set(ctx, p.weightKey, []byte(weight), opt...); err != nil {
		return err
	}

	remaining := decimal.NewFromFloat(est.RemainingSeconds).StringFixed(0)
	_, err := p.client.Set(ctx, p.remainingKey, []byte(remaining), opt...)
	return err
}

// Run samples until ctx is done. Publish failures are logged and the next
// window is published as usual.
func (s *Simulator) Run(ctx context.Context) {
	l := log.Wrap(s.Logger)
	ticker := wallclock.Instance.NewTicker(s.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			est, ok := s.Estimator.Add(now, s.Cell.Read(now))
			if !ok {
				continue
			}

			l.Log(ctx, slog.LevelDebug, "estimate",
				slog.Float64("weight", est.Weight),
				slog.Float64("rate", est.Rate),
				slog.Float64("remaining_sec", est.RemainingSeconds),
			)

			pctx, cancel := wallclock.Instance.WithTimeout(ctx, s.Estimator.window)
			if err := s.Publisher.Publish(pctx, est); err != nil && ctx.Err() == nil {
				l.Warn(ctx, "publishing estimate failed", err)
			}
			cancel()
		}
	}
}
