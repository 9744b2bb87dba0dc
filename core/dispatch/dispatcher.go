package dispatch

import (
	"sort"
	"time"

	"github.com/BusBom/rpi-server/core/model"
)

// PendingAssignment is an instruction issued to a bus that has not been
// confirmed on its platform yet.
type PendingAssignment struct {
	BusID    model.BusID `json:"bus_id"`
	IssuedAt time.Time   `json:"issued_at"`
}

// Assignment pairs a platform with a bus.
type Assignment struct {
	Platform int         `json:"platform"`
	BusID    model.BusID `json:"bus_id"`
}

// Dispatcher tracks pending platform instructions. At most one pending
// entry exists per platform and per bus.
type Dispatcher struct {
	now     func() time.Time
	pending map[int]PendingAssignment
}

// NewDispatcher returns an empty Dispatcher. A nil clock defaults to
// time.Now.
func NewDispatcher(now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{now: now, pending: make(map[int]PendingAssignment)}
}

// ResolveNewArrival identifies the bus that just parked on platform by
// looking for a pending instruction at platform, platform-1 and
// platform+1, in that order. The matched entry is consumed. On a miss it
// returns model.UnknownBus and false.
func (d *Dispatcher) ResolveNewArrival(platform int) (model.BusID, bool) {
	for _, p := range []int{platform, platform - 1, platform + 1} {
		if pa, ok := d.pending[p]; ok {
			delete(d.pending, p)
			return pa.BusID, true
		}
	}
	return model.UnknownBus, false
}

// SetPending issues an instruction for id on platform. It supersedes any
// instruction already on the platform and any other instruction for id.
func (d *Dispatcher) SetPending(platform int, id model.BusID) {
	d.DropBus(id)
	d.pending[platform] = PendingAssignment{BusID: id, IssuedAt: d.now()}
}

// Assign pops buses from the front of queue onto slots in ascending
// order and returns the instructions issued. Extra slots stay open.
func (d *Dispatcher) Assign(slots []int, queue []model.BusID) []Assignment {
	ordered := append([]int(nil), slots...)
	sort.Ints(ordered)
	var out []Assignment
	for _, slot := range ordered {
		if len(queue) == 0 {
			break
		}
		id := queue[0]
		queue = queue[1:]
		d.SetPending(slot, id)
		out = append(out, Assignment{Platform: slot, BusID: id})
	}
	return out
}

// DropBus removes every pending instruction for id.
func (d *Dispatcher) DropBus(id model.BusID) bool {
	dropped := false
	for p, pa := range d.pending {
		if pa.BusID == id {
			delete(d.pending, p)
			dropped = true
		}
	}
	return dropped
}

// Expire removes instructions older than maxAge and returns them sorted by
// platform. A zero maxAge disables expiry.
func (d *Dispatcher) Expire(maxAge time.Duration) []Assignment {
	if maxAge <= 0 {
		return nil
	}
	now := d.now()
	var out []Assignment
	for p, pa := range d.pending {
		if now.Sub(pa.IssuedAt) >= maxAge {
			delete(d.pending, p)
			out = append(out, Assignment{Platform: p, BusID: pa.BusID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}

// Truncate drops instructions for platforms >= n.
func (d *Dispatcher) Truncate(n int) bool {
	changed := false
	for p := range d.pending {
		if p >= n {
			delete(d.pending, p)
			changed = true
		}
	}
	return changed
}

// Pending returns a copy of the pending instructions.
func (d *Dispatcher) Pending() map[int]PendingAssignment {
	out := make(map[int]PendingAssignment, len(d.pending))
	for k, v := range d.pending {
		out[k] = v
	}
	return out
}

// FindAssignableSlots returns the contiguous run of empty platforms without
// a pending instruction at the far end of the stop, ascending. The scan
// starts at the last valid platform and stops at the first platform that
// is occupied, unused or pending.
func FindAssignableSlots(status model.Status, pending map[int]PendingAssignment) []int {
	var slots []int
	for i := status.TotalValid() - 1; i >= 0; i-- {
		if status[i] != model.Empty {
			break
		}
		if _, ok := pending[i]; ok {
			break
		}
		slots = append(slots, i)
	}
	sort.Ints(slots)
	return slots
}

// ManagedBusIDs returns every bus already bound to a platform or holding a
// pending instruction. The unknown sentinel is never managed.
func ManagedBusIDs(confirmed map[int]model.BusID, pending map[int]PendingAssignment) map[model.BusID]struct{} {
	managed := make(map[model.BusID]struct{}, len(confirmed)+len(pending))
	for _, id := range confirmed {
		if id.Known() {
			managed[id] = struct{}{}
		}
	}
	for _, pa := range pending {
		if pa.BusID.Known() {
			managed[pa.BusID] = struct{}{}
		}
	}
	return managed
}

// FilterQueue normalises the approach queue: blank and unknown ids are
// dropped, duplicates collapse onto their first occurrence and managed
// buses are excluded.
func FilterQueue(queue []model.BusID, managed map[model.BusID]struct{}) []model.BusID {
	seen := make(map[model.BusID]struct{}, len(queue))
	out := make([]model.BusID, 0, len(queue))
	for _, raw := range queue {
		id := model.NormalizeBusID(string(raw))
		if !id.Known() {
			continue
		}
		if _, ok := managed[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
