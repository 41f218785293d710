// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package device

import "time"

// SmoothingWindow is the number of window rates averaged into the flow rate.
const SmoothingWindow = 5

// minFlowRate is the slowest draining rate (g/s, negative) that still yields
// an estimate.
const minFlowRate = -0.1

type (
	// Estimate is the result of one completed averaging window.
	Estimate struct {
		// Weight is the mean of the raw samples in the window (g).
		Weight float64

		// Rate is the smoothed flow rate (g/s); negative while draining.
		Rate float64

		// RemainingSeconds is the time until Weight reaches the target, or -1
		// when the flow is too slow to estimate.
		RemainingSeconds float64
	}

	// Estimator turns raw load cell samples into weight and remaining-time
	// estimates, once per window.
	Estimator struct {
		target float64
		window time.Duration

		sum   float64
		count int
		first float64
		start time.Time

		rates [SmoothingWindow]float64
		next  int
	}
)

// NewEstimator creates an estimator draining toward target grams and
// reporting once every window.
func NewEstimator(target float64, window time.Duration) *Estimator {
	return &Estimator{target: target, window: window}
}

// Add records a sample taken at the given time. When the sample closes the
// current window the estimate is returned with ok set.
func (e *Estimator) Add(at time.Time, weight float64) (est Estimate, ok bool) {
	if e.start.IsZero() {
		e.start = at
	}
	if e.count == 0 {
		e.first = weight
	}
	e.sum += weight
	e.count++

	if at.Sub(e.start) < e.window {
		return Estimate{}, false
	}

	avg := e.sum / float64(e.count)
	e.rates[e.next] = (avg - e.first) / e.window.Seconds()
	e.next = (e.next + 1) % SmoothingWindow

	var rate float64
	for _, r := range e.rates {
		rate += r
	}
	rate /= SmoothingWindow

	e.sum, e.count, e.start = 0, 0, at
	return Estimate{
		Weight:           avg,
		Rate:             rate,
		RemainingSeconds: remaining(avg, e.target, rate),
	}, true
}

func remaining(weight, target, rate float64) float64 {
	if rate >= minFlowRate {
		return -1
	}
	if weight <= target {
		return 0
	}
	return (weight - target) / -rate
}
