package scenarios

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/BusBom/rpi-server/core/dispatch"
	"github.com/BusBom/rpi-server/core/events"
	"github.com/BusBom/rpi-server/core/model"
	"github.com/BusBom/rpi-server/core/station"
	"github.com/BusBom/rpi-server/infra/emitter"
	"github.com/BusBom/rpi-server/infra/logger"
	"github.com/BusBom/rpi-server/internal/eventbus"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Index    int
	Name     string
	Render   string
	Emitted  bool
	Events   []string
	Failures []string
}

// Report collects the step results of a scenario run.
type Report struct {
	Scenario string
	Steps    []StepResult
}

// Failed reports whether any expectation failed.
func (r *Report) Failed() bool {
	for _, s := range r.Steps {
		if len(s.Failures) > 0 {
			return true
		}
	}
	return false
}

// Failures returns every failure prefixed with its step.
func (r *Report) Failures() []string {
	var out []string
	for _, s := range r.Steps {
		for _, f := range s.Failures {
			out = append(out, fmt.Sprintf("step %d (%s): %s", s.Index, s.Name, f))
		}
	}
	return out
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type script struct {
	stationID  string
	status     model.Status
	queue      []model.BusID
	fetchError bool
	queueError bool
}

func (s *script) FetchStopStatus(context.Context) (model.StopStatus, error) {
	if s.fetchError {
		return model.StopStatus{}, fmt.Errorf("scripted fetch failure")
	}
	return model.StopStatus{StationID: s.stationID, Platforms: s.status.Clone()}, nil
}

func (s *script) FetchQueue(context.Context) ([]model.BusID, error) {
	if s.queueError {
		return nil, fmt.Errorf("scripted queue failure")
	}
	return append([]model.BusID(nil), s.queue...), nil
}

type lastEmitter struct {
	in *model.Instructions
}

func (l *lastEmitter) Emit(_ context.Context, in model.Instructions) error {
	l.in = &in
	return nil
}

// Run replays the scenario on a fresh control loop driven by a simulated
// clock. Every emission is rendered to out when it is non-nil.
func Run(ctx context.Context, sc *Scenario, out io.Writer) (*Report, error) {
	clk := &clock{t: time.Unix(1_700_000_000, 0)}
	rec := station.NewReconciler(station.Config{
		ConfirmationMS:    sc.Station.ConfirmationMS,
		ReentryCooldownMS: sc.Station.ReentryCooldownMS,
		MaxDeparted:       sc.Station.MaxDeparted,
	}, nil, clk.Now)
	disp := dispatch.NewDispatcher(clk.Now)
	src := &script{stationID: sc.StationID}

	last := &lastEmitter{}
	var em dispatch.Emitter = last
	if out != nil {
		em = dispatch.NewMultiEmitter(last, emitter.NewConsoleEmitter(out))
	}
	bus := eventbus.NewWithBuffer(256)
	sub := bus.Subscribe()

	mgr, err := dispatch.NewManager(dispatch.Config{
		StationID:            sc.StationID,
		PendingMaxAgeSeconds: sc.Dispatch.PendingMaxAgeSeconds,
		MaxPlatforms:         sc.Dispatch.MaxPlatforms,
		ExpectedPlatforms:    sc.Dispatch.ExpectedPlatforms,
	}, rec, disp, src, src, em, nil, bus, logger.NopLogger{})
	if err != nil {
		return nil, err
	}
	defer mgr.Close()
	mgr.SetClock(clk.Now)

	report := &Report{Scenario: sc.Name}
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		clk.advance(time.Duration(step.AdvanceMS) * time.Millisecond)
		if step.Status != nil {
			src.status = model.StatusFromInts(step.Status)
		}
		if step.Queue != nil {
			src.queue = src.queue[:0]
			for _, q := range step.Queue {
				src.queue = append(src.queue, model.NormalizeBusID(q))
			}
		}
		src.fetchError = step.FetchError
		src.queueError = step.QueueError
		last.in = nil

		res := mgr.Cycle(ctx)
		sr := StepResult{Index: i, Name: step.Name, Events: drain(sub), Emitted: last.in != nil}
		if last.in != nil {
			sr.Render = last.in.Render()
		}
		sr.Failures = check(step.Expect, res, sr, rec, disp)
		report.Steps = append(report.Steps, sr)
	}
	return report, nil
}

func drain(sub <-chan eventbus.Event) []string {
	var out []string
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return out
			}
			if pe, ok := ev.(events.PlatformEvent); ok {
				out = append(out, fmt.Sprintf("%s:%d:%s", pe.Kind, pe.Platform, pe.BusID))
			}
		default:
			return out
		}
	}
}

func check(exp Expect, res dispatch.CycleResult, sr StepResult, rec *station.Reconciler, disp *dispatch.Dispatcher) []string {
	var fails []string
	failf := func(format string, args ...any) { fails = append(fails, fmt.Sprintf(format, args...)) }

	if exp.Skipped != nil && *exp.Skipped != res.Skipped {
		failf("skipped = %t, want %t (err: %v)", res.Skipped, *exp.Skipped, res.Err)
	}
	if exp.Stable != nil && *exp.Stable != res.Stable {
		failf("stable = %t, want %t", res.Stable, *exp.Stable)
	}
	if exp.Emitted != nil && *exp.Emitted != sr.Emitted {
		failf("emitted = %t, want %t", sr.Emitted, *exp.Emitted)
	}
	if exp.Render != "" && exp.Render != sr.Render {
		failf("render = %s, want %s", sr.Render, exp.Render)
	}
	if exp.Events != nil && !equalStrings(exp.Events, sr.Events) {
		failf("events = %v, want %v", sr.Events, exp.Events)
	}
	if exp.Bindings != nil {
		got := make(map[int]string)
		for p, id := range rec.Assignments() {
			got[p] = string(id)
		}
		if !reflect.DeepEqual(got, exp.Bindings) {
			failf("bindings = %v, want %v", got, exp.Bindings)
		}
	}
	if exp.Pending != nil {
		got := make(map[int]string)
		for p, pa := range disp.Pending() {
			got[p] = string(pa.BusID)
		}
		if !reflect.DeepEqual(got, exp.Pending) {
			failf("pending = %v, want %v", got, exp.Pending)
		}
	}
	if exp.Departed != nil {
		var got []string
		for _, d := range rec.Departed() {
			got = append(got, string(d.BusID))
		}
		want := append([]string(nil), exp.Departed...)
		sort.Strings(got)
		sort.Strings(want)
		if !equalStrings(want, got) {
			failf("departed = %v, want %v", got, want)
		}
	}
	return fails
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Summary renders a one-line outcome per step.
func (r *Report) Summary(w io.Writer) {
	for _, s := range r.Steps {
		status := "ok"
		if len(s.Failures) > 0 {
			status = "FAIL " + strconv.Itoa(len(s.Failures))
		}
		fmt.Fprintf(w, "%3d %-28s %-6s %s\n", s.Index, s.Name, status, s.Render)
	}
}
