package metrics

import (
	"fmt"

	"github.com/kilianp07/essim/core/factory"
)

var sinkRegistry = factory.NewRegistry[TelemetrySink]()

func init() {
	sinkRegistry.MustRegister("nop", func(map[string]any) (TelemetrySink, error) { return NopSink{}, nil })
}

// RegisterSink adds a telemetry sink factory identified by name.
func RegisterSink(name string, f factory.Factory[TelemetrySink]) error {
	return sinkRegistry.Register(name, f)
}

// SinkNames lists the registered sink types.
func SinkNames() []string { return sinkRegistry.Names() }

// NewSink creates a TelemetrySink from the provided configuration. No
// configuration yields a NopSink; several yield a MultiSink. Sinks already
// opened are closed when a later one fails.
func NewSink(cfgs []factory.ModuleConfig) (TelemetrySink, error) {
	sinks := make([]TelemetrySink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := sinkRegistry.Create(c)
		if err != nil {
			_ = NewMultiSink(sinks...).Close()
			return nil, fmt.Errorf("sink %d (%s): %w", i, c.Type, err)
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks[0], nil
	}
	return NewMultiSink(sinks...), nil
}
