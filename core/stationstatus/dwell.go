package stationstatus

import (
	"context"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/BusBom/rpi-server/core/events"
	"github.com/BusBom/rpi-server/internal/eventbus"
)

// DwellStats summarises how long buses stay on a platform.
type DwellStats struct {
	Platform      int     `json:"platform"`
	Count         int     `json:"count"`
	MeanSeconds   float64 `json:"mean_seconds"`
	StdDevSeconds float64 `json:"stddev_seconds"`
}

const defaultDwellWindow = 256

// DwellTracker measures the time between an arrival (or reentry) and the
// following departure on each platform. Only the latest window samples
// per platform are kept.
type DwellTracker struct {
	mu       sync.Mutex
	window   int
	arrivals map[int]time.Time
	samples  map[int][]float64
}

func NewDwellTracker(window int) *DwellTracker {
	if window <= 0 {
		window = defaultDwellWindow
	}
	return &DwellTracker{
		window:   window,
		arrivals: make(map[int]time.Time),
		samples:  make(map[int][]float64),
	}
}

// Observe updates the tracker with a platform transition.
func (d *DwellTracker) Observe(ev events.PlatformEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch ev.Kind {
	case events.KindArrival, events.KindReentry:
		d.arrivals[ev.Platform] = ev.Time
	case events.KindDeparture:
		start, ok := d.arrivals[ev.Platform]
		if !ok {
			return
		}
		delete(d.arrivals, ev.Platform)
		dwell := ev.Time.Sub(start).Seconds()
		if dwell < 0 {
			return
		}
		xs := append(d.samples[ev.Platform], dwell)
		if len(xs) > d.window {
			xs = xs[len(xs)-d.window:]
		}
		d.samples[ev.Platform] = xs
	}
}

// Stats returns per-platform dwell statistics sorted by platform.
func (d *DwellTracker) Stats() []DwellStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DwellStats, 0, len(d.samples))
	for p, xs := range d.samples {
		st := DwellStats{Platform: p, Count: len(xs)}
		if len(xs) == 1 {
			st.MeanSeconds = xs[0]
		} else if len(xs) > 1 {
			st.MeanSeconds, st.StdDevSeconds = stat.MeanStdDev(xs, nil)
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}

// Start subscribes to the event bus and observes platform events until the
// context is canceled or the bus is closed.
func (d *DwellTracker) Start(ctx context.Context, bus eventbus.EventBus) {
	if bus == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if pe, ok := ev.(events.PlatformEvent); ok {
					d.Observe(pe)
				}
			}
		}
	}()
}
