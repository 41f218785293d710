// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package device

import (
	"math/rand"
	"time"
)

// LoadCell simulates the scale under an IV bag draining at a constant rate.
type LoadCell struct {
	weight float64
	rate   float64
	noise  float64
	last   time.Time
	rand   *rand.Rand
}

// NewLoadCell creates a load cell holding initial grams and draining at rate
// grams per second. Each read is perturbed by uniform noise of up to ±noise
// grams.
func NewLoadCell(initial, rate, noise float64, seed int64) *LoadCell {
	return &LoadCell{
		weight: initial,
		rate:   rate,
		noise:  noise,
		rand:   rand.New(rand.NewSource(seed)),
	}
}

// Read returns the weight at the given time.
func (c *LoadCell) Read(at time.Time) float64 {
	if !c.last.IsZero() {
		c.weight -= c.rate * at.Sub(c.last).Seconds()
		c.weight = max(c.weight, 0)
	}
	c.last = at

	if c.noise == 0 {
		return c.weight
	}
	return c.weight + (c.rand.Float64()*2-1)*c.noise
}
