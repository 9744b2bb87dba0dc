package events

import "time"

// CycleEvent summarises one control loop iteration.
type CycleEvent struct {
	ID        string
	StationID string
	Stable    bool
	Skipped   bool
	Reason    string
	Platforms int
	Emitted   bool
	Duration  time.Duration
	Time      time.Time
}
