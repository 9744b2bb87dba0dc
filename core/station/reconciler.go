package station

import (
	"sort"
	"time"

	"github.com/BusBom/rpi-server/core/model"
)

// DepartedRecord is a bus that recently left a platform and may still
// re-park.
type DepartedRecord struct {
	BusID        model.BusID `json:"bus_id"`
	FromPlatform int         `json:"from_platform"`
	DepartedAt   time.Time   `json:"departed_at"`
}

// Reconciler holds the confirmed platform state of a stop.
type Reconciler struct {
	cfg           Config
	stab          *Stabilizer
	now           func() time.Time
	platformToBus map[int]model.BusID
	departed      []DepartedRecord
	lastConfirmed model.Status
}

// NewReconciler returns a Reconciler reading stable snapshots from stab.
// A nil clock defaults to time.Now.
func NewReconciler(cfg Config, stab *Stabilizer, now func() time.Time) *Reconciler {
	cfg.SetDefaults()
	if now == nil {
		now = time.Now
	}
	if stab == nil {
		stab = NewStabilizer(cfg.ConfirmationWindow(), now)
	}
	return &Reconciler{
		cfg:           cfg,
		stab:          stab,
		now:           now,
		platformToBus: make(map[int]model.BusID),
	}
}

// Stabilizer returns the stabilizer feeding the reconciler.
func (r *Reconciler) Stabilizer() *Stabilizer { return r.stab }

// Analyze classifies the transitions between the confirmed platform state
// and the latest stable snapshot. It does not mutate any state, so calling
// it twice without Apply yields the same actions for the same clock reading.
//
// Departed records older than the reentry cooldown are reported as truly
// departed and are no longer eligible for reentry. Each remaining record is
// matched to at most one reentry, oldest first.
func (r *Reconciler) Analyze() ConfirmedActions {
	now := r.now()
	actions := NewConfirmedActions()

	cooldown := r.cfg.ReentryCooldown()
	candidates := make([]DepartedRecord, 0, len(r.departed))
	for _, d := range r.departed {
		if now.Sub(d.DepartedAt) >= cooldown {
			actions.TrulyDeparted[d.FromPlatform] = d.BusID
			actions.Expired = append(actions.Expired, d)
			continue
		}
		candidates = append(candidates, d)
	}

	snapshot := r.stab.Snapshot()
	previous := r.OccupiedPlatforms(len(snapshot))
	for i, code := range snapshot {
		if code == model.Unused {
			continue
		}
		switch {
		case previous[i] == model.Occupied && code == model.Empty:
			if id, ok := r.platformToBus[i]; ok {
				actions.NewDepartures[i] = id
			}
		case previous[i] == model.Empty && code == model.Occupied:
			if len(candidates) > 0 {
				actions.Reentries[i] = candidates[0].BusID
				candidates = candidates[1:]
				continue
			}
			actions.NewArrivals = append(actions.NewArrivals, i)
		}
	}
	return actions
}

// Apply commits actions produced by Analyze and marks the current stable
// snapshot as confirmed. It is the only method that mutates the
// classification state.
func (r *Reconciler) Apply(actions ConfirmedActions) {
	now := r.now()

	for _, e := range actions.Expired {
		r.removeDeparted(func(d DepartedRecord) bool {
			return d.FromPlatform == e.FromPlatform && d.BusID == e.BusID && d.DepartedAt.Equal(e.DepartedAt)
		}, true)
	}

	for _, platform := range sortedPlatforms(actions.NewDepartures) {
		id := actions.NewDepartures[platform]
		delete(r.platformToBus, platform)
		r.pushDeparted(DepartedRecord{BusID: id, FromPlatform: platform, DepartedAt: now})
	}

	for _, platform := range sortedPlatforms(actions.Reentries) {
		id := actions.Reentries[platform]
		// Unknown buses share one sentinel id, so only the oldest record
		// is consumed for them.
		r.removeDeparted(func(d DepartedRecord) bool { return d.BusID == id }, !id.Known())
		r.platformToBus[platform] = id
	}

	for _, platform := range actions.NewArrivals {
		r.platformToBus[platform] = actions.ArrivalID(platform)
	}

	r.lastConfirmed = r.stab.Snapshot()
}

func (r *Reconciler) pushDeparted(rec DepartedRecord) {
	if r.cfg.MaxDeparted > 0 && len(r.departed) >= r.cfg.MaxDeparted {
		r.departed = r.departed[len(r.departed)-r.cfg.MaxDeparted+1:]
	}
	r.departed = append(r.departed, rec)
}

func (r *Reconciler) removeDeparted(match func(DepartedRecord) bool, firstOnly bool) {
	kept := r.departed[:0]
	removed := false
	for _, d := range r.departed {
		if match(d) && (!firstOnly || !removed) {
			removed = true
			continue
		}
		kept = append(kept, d)
	}
	r.departed = kept
}

// SetBusOnPlatform binds a bus to a platform directly, for operator seeding.
func (r *Reconciler) SetBusOnPlatform(platform int, id model.BusID) {
	r.platformToBus[platform] = id
}

// RemoveBusFromPlatform clears a platform without recording a departure.
func (r *Reconciler) RemoveBusFromPlatform(platform int) {
	delete(r.platformToBus, platform)
}

// BusOnPlatform returns the bus bound to a platform.
func (r *Reconciler) BusOnPlatform(platform int) (model.BusID, bool) {
	id, ok := r.platformToBus[platform]
	return id, ok
}

// Assignments returns a copy of the confirmed platform to bus mapping.
func (r *Reconciler) Assignments() map[int]model.BusID {
	out := make(map[int]model.BusID, len(r.platformToBus))
	for k, v := range r.platformToBus {
		out[k] = v
	}
	return out
}

// Departed returns a copy of the departed pool, oldest first.
func (r *Reconciler) Departed() []DepartedRecord {
	return append([]DepartedRecord(nil), r.departed...)
}

// LastConfirmed returns the last stable snapshot that was applied.
func (r *Reconciler) LastConfirmed() model.Status {
	return r.lastConfirmed.Clone()
}

// OccupiedPlatforms derives an occupancy vector of length n from the
// confirmed assignments.
func (r *Reconciler) OccupiedPlatforms(n int) model.Status {
	status := make(model.Status, n)
	for platform := range r.platformToBus {
		if platform >= 0 && platform < n {
			status[platform] = model.Occupied
		}
	}
	return status
}

// Truncate drops every platform index >= n from the assignments and the
// departed pool. It reports whether anything was removed.
func (r *Reconciler) Truncate(n int) bool {
	changed := false
	for platform := range r.platformToBus {
		if platform >= n {
			delete(r.platformToBus, platform)
			changed = true
		}
	}
	before := len(r.departed)
	r.removeDeparted(func(d DepartedRecord) bool { return d.FromPlatform >= n }, false)
	if len(r.departed) != before {
		changed = true
	}
	if len(r.lastConfirmed) > n {
		r.lastConfirmed = r.lastConfirmed[:n]
	}
	return changed
}

// Platforms returns the platform indices with a bound bus, ascending.
func (r *Reconciler) Platforms() []int {
	out := make([]int, 0, len(r.platformToBus))
	for p := range r.platformToBus {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
