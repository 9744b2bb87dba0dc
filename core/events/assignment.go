package events

import (
	"time"

	"github.com/BusBom/rpi-server/core/model"
)

// AssignmentEvent is published when a bus is given a pending platform, or
// when a pending instruction expires unconfirmed.
type AssignmentEvent struct {
	Platform int
	BusID    model.BusID
	Expired  bool
	Time     time.Time
}
