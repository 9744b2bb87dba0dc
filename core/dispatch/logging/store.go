package logging

import (
	"context"
	"time"
)

// CycleRecord captures one control loop cycle that changed the stop.
type CycleRecord struct {
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	StationID   string             `json:"station_id"`
	Status      []int              `json:"status"`
	Stable      bool               `json:"stable"`
	Events      []EventRecord      `json:"events,omitempty"`
	Assignments []AssignmentRecord `json:"assignments,omitempty"`
	Expired     []AssignmentRecord `json:"expired,omitempty"`
	Displays    []string           `json:"displays"`
	EmitError   string             `json:"emit_error,omitempty"`
}

// EventRecord is a classified platform transition.
type EventRecord struct {
	Kind     string `json:"kind"`
	Platform int    `json:"platform"`
	BusID    string `json:"bus_id"`
}

// AssignmentRecord is a pending instruction issued or expired.
type AssignmentRecord struct {
	Platform int    `json:"platform"`
	BusID    string `json:"bus_id"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start time.Time
	End   time.Time
	BusID string
}

// LogStore persists CycleRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec CycleRecord) error
	Query(ctx context.Context, q LogQuery) ([]CycleRecord, error)
	Close() error
}

// Matches reports whether r satisfies the time range and bus filter of q.
func (q LogQuery) Matches(r CycleRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.BusID == "" {
		return true
	}
	return r.Involves(q.BusID)
}

// Involves reports whether the record mentions the bus in an event, an
// assignment or a display.
func (r CycleRecord) Involves(busID string) bool {
	for _, e := range r.Events {
		if e.BusID == busID {
			return true
		}
	}
	for _, a := range r.Assignments {
		if a.BusID == busID {
			return true
		}
	}
	for _, a := range r.Expired {
		if a.BusID == busID {
			return true
		}
	}
	for _, d := range r.Displays {
		if d == busID {
			return true
		}
	}
	return false
}
