package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BusBom/rpi-server/core/model"
)

func TestDispatcher_AdjacencyResolution(t *testing.T) {
	d := NewDispatcher(newFakeClock().Now)
	d.SetPending(4, "55")

	id, ok := d.ResolveNewArrival(3)
	require.True(t, ok)
	assert.Equal(t, model.BusID("55"), id)
	assert.Empty(t, d.Pending(), "pending entry at 4 must be consumed")
}

func TestDispatcher_ResolutionOrder(t *testing.T) {
	d := NewDispatcher(nil)
	d.SetPending(2, "20")
	d.SetPending(4, "40")

	id, ok := d.ResolveNewArrival(3)
	require.True(t, ok)
	assert.Equal(t, model.BusID("20"), id, "platform-1 is checked before platform+1")

	d.SetPending(3, "30")
	id, _ = d.ResolveNewArrival(3)
	assert.Equal(t, model.BusID("30"), id, "exact platform wins")
	assert.Len(t, d.Pending(), 1)
}

func TestDispatcher_ResolutionMiss(t *testing.T) {
	d := NewDispatcher(nil)
	d.SetPending(5, "55")
	id, ok := d.ResolveNewArrival(3)
	assert.False(t, ok)
	assert.Equal(t, model.UnknownBus, id)
	assert.Len(t, d.Pending(), 1)
}

func TestFindAssignableSlots(t *testing.T) {
	cases := []struct {
		name    string
		status  []int
		pending map[int]PendingAssignment
		want    []int
	}{
		{"far end run", []int{1, 1, 0, 0, 0}, nil, []int{2, 3, 4}},
		{"stops at first occupied", []int{1, 0, 1, 0, 0}, nil, []int{3, 4}},
		{"last platform occupied", []int{0, 0, 0, 0, 1}, nil, nil},
		{"pending blocks", []int{0, 0, 0}, map[int]PendingAssignment{1: {BusID: "9"}}, []int{2}},
		{"trailing unused ignored", []int{1, 0, 0, -1, -1}, nil, []int{1, 2}},
		{"inner unused stops", []int{0, -1, 0}, nil, []int{2}},
		{"all unused", []int{-1, -1}, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FindAssignableSlots(model.StatusFromInts(tc.status), tc.pending)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDispatcher_AssignAscending(t *testing.T) {
	d := NewDispatcher(nil)
	out := d.Assign([]int{4, 2, 3}, []model.BusID{"a", "b"})
	require.Equal(t, []Assignment{{Platform: 2, BusID: "a"}, {Platform: 3, BusID: "b"}}, out)
	p := d.Pending()
	assert.Equal(t, model.BusID("a"), p[2].BusID)
	assert.Equal(t, model.BusID("b"), p[3].BusID)
	_, open := p[4]
	assert.False(t, open)
}

func TestDispatcher_SetPendingSupersedes(t *testing.T) {
	d := NewDispatcher(nil)
	d.SetPending(1, "a")
	d.SetPending(1, "b")
	d.SetPending(2, "b")
	p := d.Pending()
	require.Len(t, p, 1)
	assert.Equal(t, model.BusID("b"), p[2].BusID)
}

func TestDeduplication(t *testing.T) {
	confirmed := map[int]model.BusID{0: "77", 1: model.UnknownBus}
	pending := map[int]PendingAssignment{3: {BusID: "88"}}
	managed := ManagedBusIDs(confirmed, pending)
	assert.Len(t, managed, 2)

	queue := []model.BusID{" 77", "55", "88", "55", "", "-1", "12 "}
	got := FilterQueue(queue, managed)
	assert.Equal(t, []model.BusID{"55", "12"}, got)
}

func TestDispatcher_Expire(t *testing.T) {
	clk := newFakeClock()
	d := NewDispatcher(clk.Now)
	d.SetPending(1, "old")
	clk.Advance(time.Minute)
	d.SetPending(2, "new")
	clk.Advance(30 * time.Second)

	assert.Nil(t, d.Expire(0))
	out := d.Expire(90 * time.Second)
	assert.Equal(t, []Assignment{{Platform: 1, BusID: "old"}}, out)
	assert.Len(t, d.Pending(), 1)
}

func TestDispatcher_Truncate(t *testing.T) {
	d := NewDispatcher(nil)
	d.SetPending(1, "a")
	d.SetPending(4, "b")
	assert.True(t, d.Truncate(3))
	assert.False(t, d.Truncate(3))
	assert.Len(t, d.Pending(), 1)
}
