package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BusBom/rpi-server/core/dispatch/logging"
	"github.com/BusBom/rpi-server/core/events"
	"github.com/BusBom/rpi-server/core/logger"
	"github.com/BusBom/rpi-server/core/metrics"
	"github.com/BusBom/rpi-server/core/model"
	"github.com/BusBom/rpi-server/core/monitoring"
	"github.com/BusBom/rpi-server/core/station"
	"github.com/BusBom/rpi-server/core/stationstatus"
	"github.com/BusBom/rpi-server/internal/eventbus"
)

// Sampler supplies the occupancy of the stop.
type Sampler interface {
	FetchStopStatus(ctx context.Context) (model.StopStatus, error)
}

// QueueSource supplies the ids of buses approaching the stop, front first.
type QueueSource interface {
	FetchQueue(ctx context.Context) ([]model.BusID, error)
}

var (
	// ErrFetch marks a collaborator that could not answer this cycle.
	ErrFetch = errors.New("fetch failed")
	// ErrShapeMismatch marks an occupancy vector that cannot be reconciled.
	ErrShapeMismatch = errors.New("occupancy shape mismatch")
)

// CycleResult describes one control loop iteration.
type CycleResult struct {
	ID        string
	Time      time.Time
	StationID string
	Status    model.Status
	Platforms int
	Stable    bool
	// Skipped is set when nothing was reconciled; Err holds the reason.
	Skipped bool
	Err     error
	// QueueErr is set when only the assignment step was skipped.
	QueueErr     error
	Actions      station.ConfirmedActions
	Assigned     []Assignment
	Expired      []Assignment
	Changed      bool
	Instructions *model.Instructions
	EmitErr      error
}

// Manager runs the control loop of one stop. Cycles never overlap.
type Manager struct {
	cfg         Config
	reconciler  *station.Reconciler
	dispatcher  *Dispatcher
	sampler     Sampler
	queue       QueueSource
	emitter     Emitter
	logger      logger.Logger
	metrics     metrics.MetricsSink
	bus         eventbus.EventBus
	store       logging.LogStore
	statusStore stationstatus.Store
	now         func() time.Time

	mu         sync.Mutex
	platforms  int
	emitted    bool
	emitFailed bool
}

// NewManager creates a control loop manager. Emitter, sink, bus and logger
// are optional.
func NewManager(cfg Config, rec *station.Reconciler, disp *Dispatcher, sampler Sampler, queue QueueSource, emitter Emitter, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Manager, error) {
	if rec == nil || disp == nil || sampler == nil || queue == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Manager{
		cfg:        cfg,
		reconciler: rec,
		dispatcher: disp,
		sampler:    sampler,
		queue:      queue,
		emitter:    emitter,
		logger:     log.With(logger.Fields{"station_id": cfg.StationID}),
		metrics:    sink,
		bus:        bus,
		now:        time.Now,
	}, nil
}

// SetLogStore configures the store used to persist cycle records.
func (m *Manager) SetLogStore(store logging.LogStore) {
	m.mu.Lock()
	m.store = store
	m.mu.Unlock()
}

// SetStatusStore configures the store receiving station snapshots.
func (m *Manager) SetStatusStore(store stationstatus.Store) {
	m.mu.Lock()
	m.statusStore = store
	m.mu.Unlock()
}

// SetClock replaces the clock used for timestamps. It should match the
// clock given to the reconciler and dispatcher.
func (m *Manager) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Close releases the emitter, the log store and the event bus.
func (m *Manager) Close() error {
	var errs []error
	if c, ok := m.emitter.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if m.store != nil {
		errs = append(errs, m.store.Close())
	}
	if m.bus != nil {
		m.bus.Close()
	}
	return errors.Join(errs...)
}

// Run executes cycles until the context is canceled. A skipped cycle is
// followed by the retry sleep instead of the regular interval.
func (m *Manager) Run(ctx context.Context) {
	m.logger.Infof("control loop started (interval %s, retry %s)", m.cfg.Interval(), m.cfg.RetrySleep())
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Infof("control loop stopped")
			return
		case <-timer.C:
		}
		res := m.Cycle(ctx)
		wait := m.cfg.Interval()
		if res.Skipped {
			wait = m.cfg.RetrySleep()
		}
		timer.Reset(wait)
	}
}

// Cycle runs one iteration: sample, stabilise, reconcile, assign and emit.
// Collaborator failures and panics skip the cycle and are never returned
// as fatal.
func (m *Manager) Cycle(ctx context.Context) (res CycleResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	started := time.Now()
	res = CycleResult{ID: uuid.NewString(), Time: m.now(), StationID: m.cfg.StationID}
	defer func() {
		if r := recover(); r != nil {
			m.skip(&res, fmt.Errorf("cycle panic: %v", r))
		}
		m.finish(&res, time.Since(started))
	}()

	st, err := m.fetchStatus(ctx)
	if err != nil {
		m.skip(&res, fmt.Errorf("%w: stop status: %v", ErrFetch, err))
		return res
	}
	if res.StationID == "" {
		res.StationID = st.StationID
	}
	if err := m.checkShape(st.Platforms); err != nil {
		m.skip(&res, err)
		return res
	}
	res.Status = st.Platforms.Clone()

	n := st.Platforms.TotalValid()
	res.Platforms = n
	if n != m.platforms {
		droppedConfirmed := m.reconciler.Truncate(n)
		droppedPending := m.dispatcher.Truncate(n)
		m.logger.Infof("valid platforms changed %d -> %d (dropped confirmed=%t pending=%t)", m.platforms, n, droppedConfirmed, droppedPending)
		m.platforms = n
		res.Changed = true
	}

	stab := m.reconciler.Stabilizer()
	if stab.Update(st.Platforms) {
		m.logger.Debugw("occupancy changed", map[string]any{"status": st.Platforms.Ints(), "updated_at": st.UpdatedAt})
	}
	if expired := m.dispatcher.Expire(m.cfg.PendingMaxAge()); len(expired) > 0 {
		evs := make([]events.AssignmentEvent, 0, len(expired))
		for _, a := range expired {
			m.logger.Warnf("instruction for bus %s on platform %d expired unconfirmed", a.BusID, a.Platform)
			evs = append(evs, events.AssignmentEvent{Platform: a.Platform, BusID: a.BusID, Expired: true, Time: res.Time})
		}
		m.publishAssignmentEvents(evs)
		res.Expired = expired
		res.Changed = true
	}
	if !stab.IsStable() {
		m.emit(ctx, &res)
		return res
	}
	res.Stable = true

	actions := m.reconciler.Analyze()
	for _, p := range actions.NewArrivals {
		if id, ok := m.dispatcher.ResolveNewArrival(p); ok {
			actions.Identify(p, id)
		}
	}
	m.reconciler.Apply(actions)
	for _, id := range actions.Reentries {
		if id.Known() {
			m.dispatcher.DropBus(id)
		}
	}
	res.Actions = actions
	if !actions.Empty() {
		res.Changed = true
		m.publishPlatformEvents(actions, res.Time)
	}

	m.assign(ctx, &res, stab.Snapshot())
	m.emit(ctx, &res)
	return res
}

func (m *Manager) skip(res *CycleResult, err error) {
	res.Skipped = true
	res.Err = err
	m.logger.Warnf("cycle skipped: %v", err)
	monitoring.CaptureException(err, map[string]string{
		"module":     "dispatch_manager",
		"station_id": res.StationID,
	})
}

func (m *Manager) fetchStatus(ctx context.Context) (model.StopStatus, error) {
	start := time.Now()
	st, err := m.sampler.FetchStopStatus(ctx)
	m.recordFetch("stop_status", time.Since(start), err)
	return st, err
}

func (m *Manager) fetchQueue(ctx context.Context) ([]model.BusID, error) {
	start := time.Now()
	q, err := m.queue.FetchQueue(ctx)
	m.recordFetch("approach_queue", time.Since(start), err)
	return q, err
}

func (m *Manager) recordFetch(source string, d time.Duration, err error) {
	if fr, ok := m.metrics.(metrics.FetchRecorder); ok {
		if rerr := fr.RecordFetch(metrics.FetchEvent{Source: source, Duration: d, Err: err, Time: m.now()}); rerr != nil {
			m.logger.Errorf("fetch metrics error: %v", rerr)
		}
	}
}

func (m *Manager) checkShape(s model.Status) error {
	if len(s) == 0 {
		return fmt.Errorf("%w: empty occupancy vector", ErrShapeMismatch)
	}
	if len(s) > m.cfg.MaxPlatforms {
		return fmt.Errorf("%w: %d slots exceeds max %d", ErrShapeMismatch, len(s), m.cfg.MaxPlatforms)
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if want := m.cfg.ExpectedPlatforms; want > 0 && s.TotalValid() != want {
		return fmt.Errorf("%w: %d valid platforms, expected %d", ErrShapeMismatch, s.TotalValid(), want)
	}
	return nil
}

// assign hands open platforms at the far end of the stop to the front of
// the approach queue. A queue failure only skips this step.
func (m *Manager) assign(ctx context.Context, res *CycleResult, snapshot model.Status) {
	queue, err := m.fetchQueue(ctx)
	if err != nil {
		res.QueueErr = fmt.Errorf("%w: approach queue: %v", ErrFetch, err)
		m.logger.Warnf("assignment skipped: %v", res.QueueErr)
		monitoring.CaptureException(res.QueueErr, map[string]string{
			"module":     "dispatch_manager",
			"station_id": res.StationID,
		})
		return
	}
	managed := ManagedBusIDs(m.reconciler.Assignments(), m.dispatcher.Pending())
	candidates := FilterQueue(queue, managed)
	slots := FindAssignableSlots(m.occupancy(snapshot, res.Platforms), m.dispatcher.Pending())
	assigned := m.dispatcher.Assign(slots, candidates)
	if len(assigned) == 0 {
		return
	}
	res.Assigned = assigned
	res.Changed = true
	evs := make([]events.AssignmentEvent, 0, len(assigned))
	for _, a := range assigned {
		m.logger.Infof("bus %s sent to platform %d", a.BusID, a.Platform)
		evs = append(evs, events.AssignmentEvent{Platform: a.Platform, BusID: a.BusID, Time: res.Time})
	}
	m.publishAssignmentEvents(evs)
}

// occupancy combines the stable snapshot with confirmed bindings so a
// manually placed bus also blocks its platform.
func (m *Manager) occupancy(snapshot model.Status, n int) model.Status {
	status := make(model.Status, n)
	for i := range status {
		status[i] = snapshot.At(i)
		if status[i] == model.Empty {
			if _, ok := m.reconciler.BusOnPlatform(i); ok {
				status[i] = model.Occupied
			}
		}
	}
	return status
}

func (m *Manager) publishPlatformEvents(a station.ConfirmedActions, at time.Time) {
	var evs []events.PlatformEvent
	for _, d := range a.Expired {
		m.logger.Infof("bus %s left platform %d for good", d.BusID, d.FromPlatform)
		evs = append(evs, events.PlatformEvent{Kind: events.KindTrulyDeparted, Platform: d.FromPlatform, BusID: d.BusID, Identified: d.BusID.Known(), Time: at})
	}
	for _, p := range sortedKeys(a.NewDepartures) {
		m.logger.Infof("bus %s departed platform %d", a.NewDepartures[p], p)
		evs = append(evs, events.PlatformEvent{Kind: events.KindDeparture, Platform: p, BusID: a.NewDepartures[p], Identified: a.NewDepartures[p].Known(), Time: at})
	}
	for _, p := range sortedKeys(a.Reentries) {
		m.logger.Infof("bus %s re-entered on platform %d", a.Reentries[p], p)
		evs = append(evs, events.PlatformEvent{Kind: events.KindReentry, Platform: p, BusID: a.Reentries[p], Identified: a.Reentries[p].Known(), Time: at})
	}
	for _, p := range a.NewArrivals {
		id := a.ArrivalID(p)
		if id.Known() {
			m.logger.Infof("bus %s arrived on platform %d", id, p)
		} else {
			m.logger.Warnf("unidentified bus arrived on platform %d", p)
		}
		evs = append(evs, events.PlatformEvent{Kind: events.KindArrival, Platform: p, BusID: id, Identified: id.Known(), Time: at})
	}
	for _, ev := range evs {
		platformEvents.WithLabelValues(string(ev.Kind)).Inc()
		if m.bus != nil {
			m.bus.Publish(ev)
		}
	}
	if rec, ok := m.metrics.(metrics.PlatformEventRecorder); ok {
		if err := rec.RecordPlatformEvents(evs); err != nil {
			m.logger.Errorf("platform event metrics error: %v", err)
		}
	}
}

func (m *Manager) publishAssignmentEvents(evs []events.AssignmentEvent) {
	if m.bus != nil {
		for _, ev := range evs {
			m.bus.Publish(ev)
		}
	}
	if rec, ok := m.metrics.(metrics.AssignmentRecorder); ok {
		if err := rec.RecordAssignments(evs); err != nil {
			m.logger.Errorf("assignment metrics error: %v", err)
		}
	}
}

// emit sends the full display mapping when the stop changed, on the first
// cycle, and after a failed emission.
func (m *Manager) emit(ctx context.Context, res *CycleResult) {
	if !res.Changed && m.emitted && !m.emitFailed {
		return
	}
	in := m.instructions(res)
	res.Instructions = &in
	if err := m.emitter.Emit(ctx, in); err != nil {
		res.EmitErr = err
		m.emitFailed = true
		emitFailures.Inc()
		m.logger.Errorf("emit instructions: %v", err)
		monitoring.CaptureException(err, map[string]string{
			"module":     "emitter",
			"station_id": res.StationID,
			"cycle_id":   res.ID,
		})
		return
	}
	m.emitted = true
	m.emitFailed = false
	m.logger.Infow("instructions emitted", logger.Fields{"cycle_id": in.CycleID, "display": in.Render()})
}

// instructions maps every valid platform to the pending bus, else the
// confirmed bus, else a blank.
func (m *Manager) instructions(res *CycleResult) model.Instructions {
	in := model.NewInstructions(res.Platforms)
	in.CycleID = res.ID
	in.StationID = res.StationID
	in.Timestamp = res.Time
	for p, id := range m.reconciler.Assignments() {
		in.Set(p, id)
	}
	for p, pa := range m.dispatcher.Pending() {
		in.Set(p, pa.BusID)
	}
	return in
}

// finish records metrics, events, status and the cycle log.
func (m *Manager) finish(res *CycleResult, took time.Duration) {
	result := "unchanged"
	switch {
	case res.Skipped:
		result = "skipped"
	case res.EmitErr != nil:
		result = "emit_failed"
	case res.Instructions != nil && res.EmitErr == nil:
		result = "emitted"
	case !res.Stable:
		result = "unstable"
	}
	cyclesTotal.WithLabelValues(result).Inc()
	cycleDuration.Observe(took.Seconds())
	pending := m.dispatcher.Pending()
	departed := m.reconciler.Departed()
	pendingGauge.Set(float64(len(pending)))
	departedGauge.Set(float64(len(departed)))

	ev := events.CycleEvent{
		ID:        res.ID,
		StationID: res.StationID,
		Stable:    res.Stable,
		Skipped:   res.Skipped,
		Platforms: res.Platforms,
		Emitted:   res.Instructions != nil && res.EmitErr == nil,
		Duration:  took,
		Time:      res.Time,
	}
	if res.Err != nil {
		ev.Reason = res.Err.Error()
	}
	if m.bus != nil {
		m.bus.Publish(ev)
	}
	if err := m.metrics.RecordCycle(ev); err != nil {
		m.logger.Errorf("cycle metrics error: %v", err)
	}
	if res.Skipped {
		return
	}

	if rec, ok := m.metrics.(metrics.StationStateRecorder); ok {
		occupied := 0
		for _, c := range res.Status {
			if c == model.Occupied {
				occupied++
			}
		}
		if err := rec.RecordStationState(metrics.StationState{
			StationID: res.StationID,
			Platforms: res.Platforms,
			Occupied:  occupied,
			Pending:   len(pending),
			Departed:  len(departed),
			Time:      res.Time,
		}); err != nil {
			m.logger.Errorf("station metrics error: %v", err)
		}
	}
	if m.statusStore != nil {
		m.statusStore.Set(m.stationSnapshot(res, pending, departed))
	}
	if m.store != nil && res.Changed {
		if err := m.store.Append(context.Background(), cycleRecord(res)); err != nil {
			m.logger.Errorf("cycle log error: %v", err)
		}
	}
}

func (m *Manager) stationSnapshot(res *CycleResult, pending map[int]PendingAssignment, departed []station.DepartedRecord) stationstatus.Snapshot {
	snap := stationstatus.Snapshot{
		StationID: res.StationID,
		Stable:    res.Stable,
		Platforms: make([]stationstatus.PlatformStatus, res.Platforms),
		UpdatedAt: res.Time,
	}
	for i := range snap.Platforms {
		ps := stationstatus.PlatformStatus{Platform: i, Occupancy: res.Status.At(i).String()}
		if id, ok := m.reconciler.BusOnPlatform(i); ok {
			ps.BusID = string(id)
		}
		if pa, ok := pending[i]; ok {
			ps.PendingBusID = string(pa.BusID)
		}
		snap.Platforms[i] = ps
	}
	for _, d := range departed {
		snap.Departed = append(snap.Departed, string(d.BusID))
	}
	return snap
}

func cycleRecord(res *CycleResult) logging.CycleRecord {
	rec := logging.CycleRecord{
		ID:        res.ID,
		Timestamp: res.Time,
		StationID: res.StationID,
		Status:    res.Status.Ints(),
		Stable:    res.Stable,
	}
	add := func(kind events.Kind, m map[int]model.BusID) {
		for _, p := range sortedKeys(m) {
			rec.Events = append(rec.Events, logging.EventRecord{Kind: string(kind), Platform: p, BusID: string(m[p])})
		}
	}
	for _, d := range res.Actions.Expired {
		rec.Events = append(rec.Events, logging.EventRecord{Kind: string(events.KindTrulyDeparted), Platform: d.FromPlatform, BusID: string(d.BusID)})
	}
	add(events.KindDeparture, res.Actions.NewDepartures)
	add(events.KindReentry, res.Actions.Reentries)
	for _, p := range res.Actions.NewArrivals {
		rec.Events = append(rec.Events, logging.EventRecord{Kind: string(events.KindArrival), Platform: p, BusID: string(res.Actions.ArrivalID(p))})
	}
	for _, a := range res.Assigned {
		rec.Assignments = append(rec.Assignments, logging.AssignmentRecord{Platform: a.Platform, BusID: string(a.BusID)})
	}
	for _, a := range res.Expired {
		rec.Expired = append(rec.Expired, logging.AssignmentRecord{Platform: a.Platform, BusID: string(a.BusID)})
	}
	if res.Instructions != nil {
		rec.Displays = append([]string(nil), res.Instructions.Displays...)
	}
	if res.EmitErr != nil {
		rec.EmitError = res.EmitErr.Error()
	}
	return rec
}

func sortedKeys(m map[int]model.BusID) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
