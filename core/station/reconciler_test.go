package station

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BusBom/rpi-server/core/model"
)

func newTestReconciler(clk *fakeClock) *Reconciler {
	cfg := Config{ConfirmationMS: 2000, ReentryCooldownMS: 5000}
	return NewReconciler(cfg, NewStabilizer(cfg.ConfirmationWindow(), clk.Now), clk.Now)
}

// parked returns a reconciler with bus 77 confirmed on platform 2.
func parked(t *testing.T, clk *fakeClock) *Reconciler {
	t.Helper()
	r := newTestReconciler(clk)
	r.SetBusOnPlatform(2, "77")
	settle(clk, r, status(0, 0, 1, 0))
	a := r.Analyze()
	require.True(t, a.Empty(), "seeded state should match the snapshot: %+v", a)
	r.Apply(a)
	return r
}

func TestReconciler_DepartureThenReentry(t *testing.T) {
	clk := newFakeClock()
	r := parked(t, clk)

	settle(clk, r, status(0, 0, 0, 0))
	a := r.Analyze()
	assert.Equal(t, map[int]model.BusID{2: "77"}, a.NewDepartures)
	r.Apply(a)
	_, onPlatform := r.BusOnPlatform(2)
	assert.False(t, onPlatform)
	require.Len(t, r.Departed(), 1)

	// Re-park on a neighbouring platform within the cooldown.
	clk.Advance(time.Second)
	settle(clk, r, status(0, 0, 0, 1))
	a = r.Analyze()
	assert.Equal(t, map[int]model.BusID{3: "77"}, a.Reentries)
	assert.Empty(t, a.NewArrivals)
	r.Apply(a)

	id, ok := r.BusOnPlatform(3)
	assert.True(t, ok)
	assert.Equal(t, model.BusID("77"), id)
	assert.Empty(t, r.Departed())
}

func TestReconciler_CooldownExpiry(t *testing.T) {
	clk := newFakeClock()
	r := parked(t, clk)

	settle(clk, r, status(0, 0, 0, 0))
	r.Apply(r.Analyze())

	clk.Advance(4 * time.Second)
	assert.True(t, r.Analyze().Empty(), "still within cooldown")

	clk.Advance(time.Second)
	a := r.Analyze()
	assert.Equal(t, map[int]model.BusID{2: "77"}, a.TrulyDeparted)
	r.Apply(a)
	assert.Empty(t, r.Departed())
	assert.True(t, r.Analyze().Empty())
}

func TestReconciler_ExpiredRecordNotReentered(t *testing.T) {
	clk := newFakeClock()
	r := parked(t, clk)
	settle(clk, r, status(0, 0, 0, 0))
	r.Apply(r.Analyze())

	clk.Advance(5 * time.Second)
	r.Stabilizer().Update(status(0, 0, 1, 0))
	clk.Advance(2 * time.Second)
	a := r.Analyze()
	assert.Equal(t, map[int]model.BusID{2: "77"}, a.TrulyDeparted)
	assert.Empty(t, a.Reentries)
	assert.Equal(t, []int{2}, a.NewArrivals)
}

func TestReconciler_AnalyzeIsIdempotent(t *testing.T) {
	clk := newFakeClock()
	r := parked(t, clk)
	r.SetBusOnPlatform(0, "12")
	settle(clk, r, status(0, 1, 0, 1))

	first := r.Analyze()
	second := r.Analyze()
	assert.Equal(t, first, second)
	assert.False(t, first.Empty())
}

func TestReconciler_RoundTrip(t *testing.T) {
	clk := newFakeClock()
	r := parked(t, clk)
	r.SetBusOnPlatform(0, "12")
	settle(clk, r, status(0, 1, 0, 1))

	a := r.Analyze()
	a.Identify(1, "55")
	r.Apply(a)
	assert.True(t, r.Analyze().Empty(), "applied actions must not re-trigger")
	assert.Equal(t, status(0, 1, 0, 1), r.LastConfirmed())
}

func TestReconciler_UnidentifiedArrival(t *testing.T) {
	clk := newFakeClock()
	r := newTestReconciler(clk)
	settle(clk, r, status(1, 0))
	a := r.Analyze()
	assert.Equal(t, []int{0}, a.NewArrivals)
	r.Apply(a)
	id, ok := r.BusOnPlatform(0)
	assert.True(t, ok)
	assert.Equal(t, model.UnknownBus, id)
}

func TestReconciler_UnusedSkipped(t *testing.T) {
	clk := newFakeClock()
	r := newTestReconciler(clk)
	r.SetBusOnPlatform(1, "9")
	settle(clk, r, status(0, -1, 1))
	a := r.Analyze()
	assert.Empty(t, a.NewDepartures, "unused platform must not depart")
	assert.Equal(t, []int{2}, a.NewArrivals)
}

func TestReconciler_OneReentryPerRecord(t *testing.T) {
	clk := newFakeClock()
	r := newTestReconciler(clk)
	r.SetBusOnPlatform(0, "1")
	settle(clk, r, status(1, 0, 0))
	r.Apply(r.Analyze())

	settle(clk, r, status(0, 0, 0))
	r.Apply(r.Analyze())

	settle(clk, r, status(0, 1, 1))
	a := r.Analyze()
	assert.Equal(t, map[int]model.BusID{1: "1"}, a.Reentries)
	assert.Equal(t, []int{2}, a.NewArrivals)
}

func TestReconciler_Truncate(t *testing.T) {
	clk := newFakeClock()
	r := newTestReconciler(clk)
	r.SetBusOnPlatform(0, "1")
	r.SetBusOnPlatform(4, "2")
	settle(clk, r, status(1, 0, 0, 0, 1))
	r.Apply(r.Analyze())
	r.SetBusOnPlatform(3, "3")
	settle(clk, r, status(1, 0, 0, 0, 1))
	r.Apply(r.Analyze())
	require.Len(t, r.Departed(), 1)

	assert.True(t, r.Truncate(3))
	assert.Equal(t, []int{0}, r.Platforms())
	assert.Empty(t, r.Departed())
	assert.False(t, r.Truncate(3))
}

func TestReconciler_DepartedPoolBound(t *testing.T) {
	clk := newFakeClock()
	cfg := Config{ConfirmationMS: 1000, ReentryCooldownMS: 60_000, MaxDeparted: 2}
	r := NewReconciler(cfg, nil, clk.Now)
	for i, id := range []model.BusID{"a", "b", "c"} {
		r.SetBusOnPlatform(i, id)
	}
	settle(clk, r, status(0, 0, 0))
	r.Apply(r.Analyze())

	pool := r.Departed()
	require.Len(t, pool, 2)
	assert.Equal(t, model.BusID("b"), pool[0].BusID)
	assert.Equal(t, model.BusID("c"), pool[1].BusID)
}

func TestReconciler_ExpiredRecordsSharingPlatform(t *testing.T) {
	clk := newFakeClock()
	cfg := Config{ConfirmationMS: 2000, ReentryCooldownMS: 10000}
	r := NewReconciler(cfg, NewStabilizer(cfg.ConfirmationWindow(), clk.Now), clk.Now)
	r.SetBusOnPlatform(2, "A")
	r.SetBusOnPlatform(3, "B")
	settle(clk, r, status(0, 0, 1, 1))
	r.Apply(r.Analyze())

	settle(clk, r, status(0, 0, 0, 0))
	r.Apply(r.Analyze())

	// A is the oldest record and re-parks on B's former platform.
	clk.Advance(time.Second)
	settle(clk, r, status(0, 0, 0, 1))
	a := r.Analyze()
	require.Equal(t, map[int]model.BusID{3: "A"}, a.Reentries)
	r.Apply(a)

	settle(clk, r, status(0, 0, 0, 0))
	r.Apply(r.Analyze())
	require.Len(t, r.Departed(), 2)
	for _, d := range r.Departed() {
		assert.Equal(t, 3, d.FromPlatform)
	}

	clk.Advance(10 * time.Second)
	a = r.Analyze()
	assert.Len(t, a.TrulyDeparted, 1)
	require.Len(t, a.Expired, 2)
	assert.Equal(t, model.BusID("B"), a.Expired[0].BusID)
	assert.Equal(t, model.BusID("A"), a.Expired[1].BusID)

	r.Apply(a)
	assert.Empty(t, r.Departed())
	assert.True(t, r.Analyze().Empty(), "applied actions must not be reported again")
}
