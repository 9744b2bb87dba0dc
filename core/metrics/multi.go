package metrics

import (
	"errors"
	"io"

	"github.com/BusBom/rpi-server/core/events"
)

// MultiSink fans records out to multiple sinks. Optional recorder methods are
// forwarded only to sinks that implement them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCycle forwards the cycle to every sink and joins their errors.
func (m *MultiSink) RecordCycle(ev events.CycleEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordCycle(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordPlatformEvents forwards platform transitions.
func (m *MultiSink) RecordPlatformEvents(evs []events.PlatformEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(PlatformEventRecorder); ok {
			if err := rec.RecordPlatformEvents(evs); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordAssignments forwards assignment events.
func (m *MultiSink) RecordAssignments(evs []events.AssignmentEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(AssignmentRecorder); ok {
			if err := rec.RecordAssignments(evs); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordStationState forwards station snapshots.
func (m *MultiSink) RecordStationState(ev StationState) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(StationStateRecorder); ok {
			if err := rec.RecordStationState(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordFetch forwards upstream fetch records.
func (m *MultiSink) RecordFetch(ev FetchEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(FetchRecorder); ok {
			if err := rec.RecordFetch(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink implementing io.Closer.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
