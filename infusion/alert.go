// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type (
	// Status summarizes the bag state shown on the dashboard.
	Status string

	// AlertKind identifies one condition the ward should act on.
	AlertKind string

	// Alert is an active condition with its display text. Alerts are derived
	// from the current reading, so an alert clears once its condition does.
	Alert struct {
		Kind    AlertKind `json:"kind"`
		Message string    `json:"message"`
	}

	// Thresholds are the weights, in grams, at which the bag is reported as
	// almost done and done.
	Thresholds struct {
		AlmostDone float64
		Done       float64
	}
)

const (
	// StatusOK means the infusion is running with weight to spare.
	StatusOK Status = "ok"

	// StatusAlmostDone means the weight is at or below the almost-done
	// threshold.
	StatusAlmostDone Status = "almost_done"

	// StatusDone means the weight is at or below the done threshold.
	StatusDone Status = "done"

	// StatusNotConnected means the scale reads zero and the device has no
	// estimate, i.e. no bag is hanging.
	StatusNotConnected Status = "iv_not_connected"
)

const (
	AlertNurseCall    AlertKind = "nurse_call"
	AlertDone         AlertKind = "done"
	AlertAlmostDone   AlertKind = "almost_done"
	AlertNotConnected AlertKind = "iv_not_connected"
)

// Default weight thresholds in grams.
const (
	DefaultAlmostDoneWeight = 300
	DefaultDoneWeight       = 150
)

// StatusOf classifies a reading against the thresholds.
func StatusOf(r Reading, t Thresholds) Status {
	switch {
	case r.Weight == 0 && r.RemainingSeconds < 0:
		return StatusNotConnected
	case r.Weight > 0 && r.Weight <= t.Done:
		return StatusDone
	case r.Weight > 0 && r.Weight <= t.AlmostDone:
		return StatusAlmostDone
	default:
		return StatusOK
	}
}

// Alerts lists the active alerts, most urgent first.
func Alerts(status Status, r Reading, nurseCall bool) []Alert {
	alerts := []Alert{}
	if nurseCall {
		alerts = append(alerts, Alert{
			Kind:    AlertNurseCall,
			Message: "Nurse call from the IV pole",
		})
	}

	switch status {
	case StatusDone:
		alerts = append(alerts, Alert{
			Kind:    AlertDone,
			Message: "Infusion complete",
		})
	case StatusAlmostDone:
		alerts = append(alerts, Alert{
			Kind: AlertAlmostDone,
			Message: fmt.Sprintf(
				"Infusion almost complete (%s, %.1f g left)",
				FormatRemaining(r.RemainingSeconds),
				r.Weight,
			),
		})
	case StatusNotConnected:
		alerts = append(alerts, Alert{
			Kind:    AlertNotConnected,
			Message: "IV bag not connected",
		})
	}
	return alerts
}

// ParseFlag decodes a stored boolean. It accepts the forms strconv.ParseBool
// does, bare or as a JSON string.
func ParseFlag(data []byte) (bool, error) {
	text := bytes.TrimSpace(data)
	if len(text) > 0 && text[0] == '"' {
		var s string
		if err := json.Unmarshal(text, &s); err != nil {
			return false, fmt.Errorf("%w: %q", ErrMalformed, text)
		}
		text = bytes.TrimSpace([]byte(s))
	}

	on, err := strconv.ParseBool(string(text))
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrMalformed, text)
	}
	return on, nil
}
