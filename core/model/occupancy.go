package model

import "fmt"

// OccupancyCode is the per-platform value reported by the occupancy sensors.
type OccupancyCode int

const (
	Unused   OccupancyCode = -1
	Empty    OccupancyCode = 0
	Occupied OccupancyCode = 1
)

// String returns a human-readable representation of the code.
func (c OccupancyCode) String() string {
	switch c {
	case Unused:
		return "unused"
	case Empty:
		return "empty"
	case Occupied:
		return "occupied"
	default:
		return "invalid"
	}
}

// Valid reports whether c is one of the known codes.
func (c OccupancyCode) Valid() bool {
	return c == Unused || c == Empty || c == Occupied
}

// Status is an ordered occupancy vector, one entry per platform slot.
type Status []OccupancyCode

// StatusFromInts converts raw sensor integers into a Status.
func StatusFromInts(raw []int) Status {
	s := make(Status, len(raw))
	for i, v := range raw {
		s[i] = OccupancyCode(v)
	}
	return s
}

// Ints returns the raw integer form of the vector.
func (s Status) Ints() []int {
	out := make([]int, len(s))
	for i, c := range s {
		out[i] = int(c)
	}
	return out
}

// TotalValid returns one past the index of the last non-unused entry, or 0
// when every entry is unused. Trailing unused slots shrink the count.
func (s Status) TotalValid() int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != Unused {
			return i + 1
		}
	}
	return 0
}

// Equal reports whether both vectors hold the same codes.
func (s Status) Equal(o Status) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the vector.
func (s Status) Clone() Status {
	if s == nil {
		return nil
	}
	out := make(Status, len(s))
	copy(out, s)
	return out
}

// At returns the code at i, treating out-of-range indices as unused.
func (s Status) At(i int) OccupancyCode {
	if i < 0 || i >= len(s) {
		return Unused
	}
	return s[i]
}

// Validate checks every entry is a known occupancy code.
func (s Status) Validate() error {
	for i, c := range s {
		if !c.Valid() {
			return fmt.Errorf("platform %d: invalid occupancy code %d", i, int(c))
		}
	}
	return nil
}

// StopStatus is one poll of the occupancy sampler.
type StopStatus struct {
	StationID string `json:"station_id"`
	Platforms Status `json:"platform_status"`
	// UpdatedAt is opaque and only passed through for logging.
	UpdatedAt string `json:"updated_at"`
}
