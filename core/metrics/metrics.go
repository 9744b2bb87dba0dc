package metrics

import (
	"time"

	"github.com/BusBom/rpi-server/core/events"
)

// MetricsSink records control loop cycles for observability purposes.
type MetricsSink interface {
	RecordCycle(ev events.CycleEvent) error
}

// PlatformEventRecorder records confirmed platform transitions.
type PlatformEventRecorder interface {
	RecordPlatformEvents(evs []events.PlatformEvent) error
}

// AssignmentRecorder records platform assignments and expirations.
type AssignmentRecorder interface {
	RecordAssignments(evs []events.AssignmentEvent) error
}

// StationState is a snapshot of the stop after a cycle.
type StationState struct {
	StationID string
	Platforms int
	Occupied  int
	Pending   int
	Departed  int
	Time      time.Time
}

// StationStateRecorder records station snapshots.
type StationStateRecorder interface {
	RecordStationState(ev StationState) error
}

// FetchEvent describes one call to an upstream source.
type FetchEvent struct {
	Source   string
	Duration time.Duration
	Err      error
	Time     time.Time
}

// FetchRecorder records upstream fetch latency and failures.
type FetchRecorder interface {
	RecordFetch(ev FetchEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordCycle(events.CycleEvent) error               { return nil }
func (NopSink) RecordPlatformEvents([]events.PlatformEvent) error { return nil }
func (NopSink) RecordAssignments([]events.AssignmentEvent) error  { return nil }
func (NopSink) RecordStationState(StationState) error             { return nil }
func (NopSink) RecordFetch(FetchEvent) error                      { return nil }
