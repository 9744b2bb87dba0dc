package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BusBom/rpi-server/core/events"
	coremetrics "github.com/BusBom/rpi-server/core/metrics"
)

// PromSink records station observations in Prometheus metrics.
type PromSink struct {
	transitions *prometheus.CounterVec
	assignments *prometheus.CounterVec
	fetch       *prometheus.HistogramVec
	platforms   prometheus.Gauge
	occupied    prometheus.Gauge
	lastCycle   prometheus.Gauge
	stable      prometheus.Gauge
}

// NewPromSink registers station metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using
// cfg.PrometheusAddr.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busbom_platform_transitions_total",
			Help: "Confirmed platform transitions by kind and platform",
		}, []string{"kind", "platform"}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busbom_assignments_total",
			Help: "Platform assignments issued or expired",
		}, []string{"outcome"}),
		fetch: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "busbom_fetch_duration_seconds",
			Help:    "Latency of upstream fetches",
			Buckets: prometheus.DefBuckets,
		}, []string{"source", "result"}),
		platforms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "busbom_station_platforms",
			Help: "Number of valid platforms reported by the sensor",
		}),
		occupied: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "busbom_station_occupied_platforms",
			Help: "Number of platforms bound to a bus",
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "busbom_last_cycle_timestamp_seconds",
			Help: "Unix time of the last completed cycle",
		}),
		stable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "busbom_sensor_stable",
			Help: "1 when the last cycle saw a stable sensor reading",
		}),
	}

	var err error
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.assignments, err = register(reg, s.assignments); err != nil {
		return nil, err
	}
	if s.fetch, err = register(reg, s.fetch); err != nil {
		return nil, err
	}
	if s.platforms, err = register(reg, s.platforms); err != nil {
		return nil, err
	}
	if s.occupied, err = register(reg, s.occupied); err != nil {
		return nil, err
	}
	if s.lastCycle, err = register(reg, s.lastCycle); err != nil {
		return nil, err
	}
	if s.stable, err = register(reg, s.stable); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when one with the same
// descriptor exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordCycle updates the cycle gauges. Skipped cycles only move the
// timestamp.
func (s *PromSink) RecordCycle(ev events.CycleEvent) error {
	s.lastCycle.Set(float64(ev.Time.UnixNano()) / 1e9)
	if ev.Skipped {
		return nil
	}
	if ev.Stable {
		s.stable.Set(1)
	} else {
		s.stable.Set(0)
	}
	s.platforms.Set(float64(ev.Platforms))
	return nil
}

// RecordPlatformEvents counts confirmed transitions.
func (s *PromSink) RecordPlatformEvents(evs []events.PlatformEvent) error {
	for _, e := range evs {
		s.transitions.WithLabelValues(string(e.Kind), strconv.Itoa(e.Platform)).Inc()
	}
	return nil
}

// RecordAssignments counts issued and expired assignments.
func (s *PromSink) RecordAssignments(evs []events.AssignmentEvent) error {
	for _, e := range evs {
		outcome := "assigned"
		if e.Expired {
			outcome = "expired"
		}
		s.assignments.WithLabelValues(outcome).Inc()
	}
	return nil
}

// RecordStationState sets the station gauges.
func (s *PromSink) RecordStationState(ev coremetrics.StationState) error {
	s.platforms.Set(float64(ev.Platforms))
	s.occupied.Set(float64(ev.Occupied))
	return nil
}

// RecordFetch observes the fetch latency labelled by outcome.
func (s *PromSink) RecordFetch(ev coremetrics.FetchEvent) error {
	result := "ok"
	if ev.Err != nil {
		result = "error"
	}
	s.fetch.WithLabelValues(ev.Source, result).Observe(ev.Duration.Seconds())
	return nil
}
