package model

import (
	"strings"
	"time"
)

// BlankDisplay is shown on platforms with no bus to announce.
const BlankDisplay = " "

// Instructions is the full display mapping for a stop. Displays has one entry
// per valid platform, indexed by platform.
type Instructions struct {
	CycleID   string    `json:"cycle_id" msgpack:"cycle_id"`
	StationID string    `json:"station_id" msgpack:"station_id"`
	Displays  []string  `json:"platforms" msgpack:"platforms"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// NewInstructions returns instructions for n platforms, all blank.
func NewInstructions(n int) Instructions {
	d := make([]string, n)
	for i := range d {
		d[i] = BlankDisplay
	}
	return Instructions{Displays: d}
}

// Set writes the display text for a platform. Unknown buses and
// out-of-range platforms are ignored.
func (in Instructions) Set(platform int, id BusID) {
	if platform < 0 || platform >= len(in.Displays) || !id.Known() {
		return
	}
	in.Displays[platform] = string(id)
}

// Render formats the instructions as the display driver expects:
// every platform quoted, colon separated.
func (in Instructions) Render() string {
	var b strings.Builder
	for i, d := range in.Displays {
		if i > 0 {
			b.WriteByte(':')
		}
		if d == "" {
			d = BlankDisplay
		}
		b.WriteByte('"')
		b.WriteString(d)
		b.WriteByte('"')
	}
	return b.String()
}

// Equal reports whether both instruction sets show the same displays.
func (in Instructions) Equal(o Instructions) bool {
	if len(in.Displays) != len(o.Displays) {
		return false
	}
	for i := range in.Displays {
		if in.Displays[i] != o.Displays[i] {
			return false
		}
	}
	return true
}
