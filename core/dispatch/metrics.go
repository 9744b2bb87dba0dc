package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	cyclesTotal    *prometheus.CounterVec
	platformEvents *prometheus.CounterVec
	pendingGauge   prometheus.Gauge
	departedGauge  prometheus.Gauge
	cycleDuration  prometheus.Histogram
	emitFailures   prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Gauge, prometheus.Gauge, prometheus.Histogram, prometheus.Counter) {
	cycles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busbom_cycles_total",
			Help: "Control loop cycles by outcome",
		},
		[]string{"result"},
	)
	evs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "busbom_platform_events_total",
			Help: "Confirmed platform transitions by kind",
		},
		[]string{"kind"},
	)
	pending := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "busbom_pending_assignments",
			Help: "Instructions issued to buses not yet confirmed on a platform",
		},
	)
	departed := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "busbom_departed_pool_size",
			Help: "Recently departed buses still eligible for reentry",
		},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "busbom_cycle_duration_seconds",
			Help:    "Duration of one control loop cycle",
			Buckets: prometheus.DefBuckets,
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "busbom_emit_failures_total",
			Help: "Number of failed instruction emissions",
		},
	)
	return cycles, evs, pending, departed, dur, fail
}

func init() {
	cyclesTotal, platformEvents, pendingGauge, departedGauge, cycleDuration, emitFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers loop metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(cyclesTotal, platformEvents, pendingGauge, departedGauge, cycleDuration, emitFailures)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	cyclesTotal, platformEvents, pendingGauge, departedGauge, cycleDuration, emitFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
