package stationstatus

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BusBom/rpi-server/core/events"
	"github.com/BusBom/rpi-server/internal/eventbus"
)

func TestDwellTracker_Stats(t *testing.T) {
	d := NewDwellTracker(0)
	t0 := time.Unix(1000, 0)
	for i, dwell := range []time.Duration{60 * time.Second, 120 * time.Second} {
		start := t0.Add(time.Duration(i) * time.Hour)
		d.Observe(events.PlatformEvent{Kind: events.KindArrival, Platform: 2, Time: start})
		d.Observe(events.PlatformEvent{Kind: events.KindDeparture, Platform: 2, Time: start.Add(dwell)})
	}
	// departure without arrival is ignored
	d.Observe(events.PlatformEvent{Kind: events.KindDeparture, Platform: 0, Time: t0})

	stats := d.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Platform)
	assert.Equal(t, 2, stats[0].Count)
	assert.InDelta(t, 90, stats[0].MeanSeconds, 1e-9)
	assert.InDelta(t, 30*math.Sqrt2, stats[0].StdDevSeconds, 1e-9)
}

func TestDwellTracker_WindowBound(t *testing.T) {
	d := NewDwellTracker(2)
	t0 := time.Unix(0, 0)
	for i := 1; i <= 3; i++ {
		d.Observe(events.PlatformEvent{Kind: events.KindReentry, Platform: 0, Time: t0})
		d.Observe(events.PlatformEvent{Kind: events.KindDeparture, Platform: 0, Time: t0.Add(time.Duration(i) * time.Second)})
	}
	stats := d.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].Count)
	assert.InDelta(t, 2.5, stats[0].MeanSeconds, 1e-9)
}

func TestDwellTracker_Start(t *testing.T) {
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := NewDwellTracker(0)
	d.Start(ctx, bus)
	// Subscribe happens synchronously in Start.
	t0 := time.Unix(0, 0)
	bus.Publish(events.PlatformEvent{Kind: events.KindArrival, Platform: 1, Time: t0})
	bus.Publish(events.CycleEvent{ID: "ignored"})
	bus.Publish(events.PlatformEvent{Kind: events.KindDeparture, Platform: 1, Time: t0.Add(30 * time.Second)})
	require.Eventually(t, func() bool {
		s := d.Stats()
		return len(s) == 1 && s[0].Count == 1
	}, time.Second, 10*time.Millisecond)
}
