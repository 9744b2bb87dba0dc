package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/BusBom/rpi-server/core/model"
	"github.com/BusBom/rpi-server/qa/scenarios"
)

const loopHold = time.Second

type frame struct {
	at         time.Duration
	status     []int
	queue      []string
	fetchError bool
	queueError bool
}

// Stop replays scenario steps on the wall clock and serves them as the
// stop-status and approach-queue endpoints.
type Stop struct {
	stationID string
	frames    []frame
	total     time.Duration
	loop      bool

	mu    sync.Mutex
	start time.Time
	now   func() time.Time
}

// NewStop builds the timeline of a scenario. Status and queue carry over
// between steps the same way the replay runner applies them.
func NewStop(sc *scenarios.Scenario, loop bool) *Stop {
	s := &Stop{stationID: sc.StationID, loop: loop, now: time.Now}
	var (
		at     time.Duration
		status []int
		queue  []string
	)
	for _, st := range sc.Steps {
		at += time.Duration(st.AdvanceMS) * time.Millisecond
		if st.Status != nil {
			status = st.Status
		}
		if st.Queue != nil {
			queue = st.Queue
		}
		s.frames = append(s.frames, frame{at: at, status: status, queue: queue, fetchError: st.FetchError, queueError: st.QueueError})
	}
	s.total = at
	s.start = s.now()
	return s
}

func (s *Stop) current() frame {
	s.mu.Lock()
	elapsed := s.now().Sub(s.start)
	s.mu.Unlock()
	if s.loop {
		// the last frame is held for loopHold before restarting
		elapsed %= s.total + loopHold
	}
	cur := s.frames[0]
	for _, f := range s.frames {
		if f.at > elapsed {
			break
		}
		cur = f
	}
	return cur
}

// Routes registers the endpoints on mux.
func (s *Stop) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/stop-status", s.serveStatus)
	mux.HandleFunc("/sequence", s.serveQueue)
}

func (s *Stop) serveStatus(w http.ResponseWriter, r *http.Request) {
	f := s.current()
	if f.fetchError {
		http.Error(w, "sensor unavailable", http.StatusServiceUnavailable)
		return
	}
	st := model.StopStatus{
		StationID: s.stationID,
		Platforms: model.StatusFromInts(f.status),
		UpdatedAt: s.now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, st)
}

func (s *Stop) serveQueue(w http.ResponseWriter, r *http.Request) {
	f := s.current()
	if f.queueError {
		http.Error(w, "camera unavailable", http.StatusServiceUnavailable)
		return
	}
	q := f.queue
	if q == nil {
		q = []string{}
	}
	writeJSON(w, map[string][]string{"sequence": q})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
