package events

import (
	"time"

	"github.com/BusBom/rpi-server/core/model"
)

// Kind names a classified platform transition.
type Kind string

const (
	KindDeparture     Kind = "departure"
	KindReentry       Kind = "reentry"
	KindArrival       Kind = "arrival"
	KindTrulyDeparted Kind = "truly_departed"
)

// PlatformEvent is published for every transition committed by the
// reconciler.
type PlatformEvent struct {
	Kind     Kind
	Platform int
	BusID    model.BusID
	// Identified is false for arrivals bound to model.UnknownBus.
	Identified bool
	Time       time.Time
}
