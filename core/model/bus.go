package model

import "strings"

// BusID identifies a bus. Identifiers are supplied by external collaborators
// and are opaque to the dispatch core.
type BusID string

// UnknownBus marks a platform occupied by a bus that could not be identified.
const UnknownBus BusID = "-1"

// NormalizeBusID trims whitespace around a raw identifier.
func NormalizeBusID(raw string) BusID {
	return BusID(strings.TrimSpace(raw))
}

// Known reports whether id refers to an identified bus.
func (id BusID) Known() bool {
	return id != "" && id != UnknownBus
}

func (id BusID) String() string { return string(id) }
