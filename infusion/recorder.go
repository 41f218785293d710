// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package infusion

// TickOutcome is the result of one sampler tick.
type TickOutcome string

const (
	// TickAppended means a value was read and appended to the history.
	TickAppended TickOutcome = "appended"

	// TickSkipped means the key was absent or malformed.
	TickSkipped TickOutcome = "skipped"

	// TickDropped means the previous read was still in flight.
	TickDropped TickOutcome = "dropped"

	// TickFailed means the read failed in transport.
	TickFailed TickOutcome = "error"

	// TickStopped means the session was torn down during the read.
	TickStopped TickOutcome = "stopped"
)

// Recorder observes session activity, e.g. for metrics.
type Recorder interface {
	Tick(outcome TickOutcome)
	Notification(key string)
	HistoryLen(n int)
}

type nopRecorder struct{}

func (nopRecorder) Tick(TickOutcome)    {}
func (nopRecorder) Notification(string) {}
func (nopRecorder) HistoryLen(int)      {}
