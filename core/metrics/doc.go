// Package metrics defines the contracts for recording station metrics.
// Sinks like PromSink and InfluxSink live in infra/metrics and register
// themselves by name; NewMetricsSink builds a MultiSink automatically when
// several sinks are configured. Beyond RecordCycle, sinks opt into the
// recorder interfaces they support.
package metrics
