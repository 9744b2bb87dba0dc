package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BusBom/rpi-server/core/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSampler struct {
	mu     sync.Mutex
	status []int
	err    error
	panics bool
	calls  int
}

func (f *fakeSampler) set(v ...int) {
	f.mu.Lock()
	f.status = v
	f.mu.Unlock()
}

func (f *fakeSampler) FetchStopStatus(context.Context) (model.StopStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panics {
		panic("sensor driver crashed")
	}
	if f.err != nil {
		return model.StopStatus{}, f.err
	}
	return model.StopStatus{StationID: "st-1", Platforms: model.StatusFromInts(f.status), UpdatedAt: "now"}, nil
}

type fakeQueue struct {
	mu  sync.Mutex
	ids []model.BusID
	err error
}

func (f *fakeQueue) set(ids ...model.BusID) {
	f.mu.Lock()
	f.ids = ids
	f.mu.Unlock()
}

func (f *fakeQueue) FetchQueue(context.Context) ([]model.BusID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.BusID(nil), f.ids...), nil
}

type recordEmitter struct {
	mu   sync.Mutex
	sent []model.Instructions
	fail bool
}

var errEmit = errors.New("display offline")

func (r *recordEmitter) Emit(_ context.Context, in model.Instructions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errEmit
	}
	r.sent = append(r.sent, in)
	return nil
}

func (r *recordEmitter) last() model.Instructions {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return model.Instructions{}
	}
	return r.sent[len(r.sent)-1]
}

func (r *recordEmitter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}
