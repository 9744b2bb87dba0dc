package station

import (
	"encoding/json"
	"net/http"

	"github.com/BusBom/rpi-server/core/stationstatus"
)

// NewStatusHandler exposes the platform status via GET /api/station/status.
// Without filters the full snapshot is returned; occupancy or bus_id
// return the matching platforms only.
func NewStatusHandler(store stationstatus.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f := stationstatus.Filter{
			Occupancy: r.URL.Query().Get("occupancy"),
			BusID:     r.URL.Query().Get("bus_id"),
		}
		var body any
		if f == (stationstatus.Filter{}) {
			body = store.Current()
		} else {
			body = store.List(f)
		}
		writeJSON(w, body)
	})
}

// NewDwellHandler exposes per-platform dwell statistics via GET /api/station/dwell.
func NewDwellHandler(tracker *stationstatus.DwellTracker) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, tracker.Stats())
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
