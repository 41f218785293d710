// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import "github.com/Wake-Up-It-s-a-Hospital/Smart-Feature/internal/iso"

type (
	// Reading holds the latest scalar values. Weight is written only by the
	// sampler and RemainingSeconds only by the subscriber.
	Reading struct {
		Weight           float64 `json:"weight"`
		RemainingSeconds float64 `json:"remaining_sec"`
	}

	// Snapshot is a consistent copy of the session state for rendering.
	// Labels and Values always have equal length.
	Snapshot struct {
		Reading
		RemainingText string       `json:"remaining_text"`
		Status        Status       `json:"status"`
		NurseCall     bool         `json:"nurse_call"`
		Alerts        []Alert      `json:"alerts"`
		Labels        []string     `json:"labels"`
		Values        []float64    `json:"values"`
		Capacity      int          `json:"capacity"`
		Connected     bool         `json:"connected"`
		UpdatedAt     iso.DateTime `json:"updated_at"`
	}
)
