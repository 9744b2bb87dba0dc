package station

import (
	"sort"

	"github.com/BusBom/rpi-server/core/model"
)

// ConfirmedActions is the outcome of analysing a stable snapshot.
type ConfirmedActions struct {
	// Reentries maps the platform a departed bus re-parked on to its id.
	Reentries map[int]model.BusID
	// NewArrivals lists platforms that became occupied by a bus that is not
	// in the departed pool.
	NewArrivals []int
	// TrulyDeparted maps the platform a bus left to its id once the reentry
	// cooldown has elapsed.
	TrulyDeparted map[int]model.BusID
	// Expired lists every departed record past the cooldown, oldest first.
	// Several records may share a platform in TrulyDeparted; Apply removes
	// all of them.
	Expired []DepartedRecord
	// NewDepartures maps platforms that just emptied to the bus that left.
	NewDepartures map[int]model.BusID
	// Identified holds ids resolved by the caller for NewArrivals before
	// Apply. Arrivals without an entry are bound to model.UnknownBus.
	Identified map[int]model.BusID
}

// NewConfirmedActions returns an empty set of actions.
func NewConfirmedActions() ConfirmedActions {
	return ConfirmedActions{
		Reentries:     make(map[int]model.BusID),
		TrulyDeparted: make(map[int]model.BusID),
		NewDepartures: make(map[int]model.BusID),
		Identified:    make(map[int]model.BusID),
	}
}

// Empty reports whether no event was classified.
func (a ConfirmedActions) Empty() bool {
	return len(a.Reentries) == 0 && len(a.NewArrivals) == 0 &&
		len(a.Expired) == 0 && len(a.NewDepartures) == 0
}

// Identify records the bus id resolved for a new arrival.
func (a *ConfirmedActions) Identify(platform int, id model.BusID) {
	if a.Identified == nil {
		a.Identified = make(map[int]model.BusID)
	}
	a.Identified[platform] = id
}

// ArrivalID returns the id bound to a new arrival on Apply.
func (a ConfirmedActions) ArrivalID(platform int) model.BusID {
	if id, ok := a.Identified[platform]; ok && id != "" {
		return id
	}
	return model.UnknownBus
}

func sortedPlatforms(m map[int]model.BusID) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
