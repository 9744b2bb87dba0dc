package metrics

import (
	"fmt"

	"github.com/BusBom/rpi-server/core/factory"
)

var sinkRegistry = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink adds a metrics sink factory identified by name.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinkRegistry.Register(name, f)
}

// NewMetricsSink builds every configured sink. An empty list yields a
// NopSink and several entries are combined in a MultiSink. Sinks built
// before a failing entry are closed.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	built, err := sinkRegistry.CreateAll(cfgs)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	switch len(built) {
	case 0:
		return NopSink{}, nil
	case 1:
		return built[0], nil
	}
	return NewMultiSink(built...), nil
}
