package metrics

import "github.com/BusBom/rpi-server/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr is where /metrics is served when non-empty.
	PrometheusAddr string `json:"prometheus_addr"`
}
