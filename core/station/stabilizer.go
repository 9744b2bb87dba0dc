package station

import (
	"time"

	"github.com/BusBom/rpi-server/core/model"
)

// Stabilizer debounces raw occupancy vectors against a confirmation window.
type Stabilizer struct {
	window     time.Duration
	now        func() time.Time
	lastSeen   model.Status
	lastChange time.Time
}

// NewStabilizer returns a Stabilizer whose timer starts at construction.
// A nil clock defaults to time.Now.
func NewStabilizer(window time.Duration, now func() time.Time) *Stabilizer {
	if now == nil {
		now = time.Now
	}
	return &Stabilizer{window: window, now: now, lastChange: now()}
}

// Update records the latest raw vector. The previously seen vector is
// zero-padded or truncated to the new length before comparison, so a length
// change alone does not reset the timer. It reports whether the vector
// changed.
func (s *Stabilizer) Update(current model.Status) bool {
	if len(s.lastSeen) != len(current) {
		resized := make(model.Status, len(current))
		copy(resized, s.lastSeen)
		s.lastSeen = resized
	}
	if s.lastSeen.Equal(current) {
		return false
	}
	s.lastSeen = current.Clone()
	s.lastChange = s.now()
	return true
}

// IsStable reports whether the last seen vector has been unchanged for at
// least the confirmation window.
func (s *Stabilizer) IsStable() bool {
	return s.now().Sub(s.lastChange) >= s.window
}

// Snapshot returns a copy of the last seen vector.
func (s *Stabilizer) Snapshot() model.Status {
	return s.lastSeen.Clone()
}

// LastChange returns the time of the last observed change.
func (s *Stabilizer) LastChange() time.Time {
	return s.lastChange
}

// Window returns the confirmation window.
func (s *Stabilizer) Window() time.Duration {
	return s.window
}
