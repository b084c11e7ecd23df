package metrics

import (
	"github.com/kilianp07/essim/core/factory"
	coremetrics "github.com/kilianp07/essim/core/metrics"
)

// init registers the built-in telemetry sinks.
func init() {
	_ = coremetrics.RegisterSink("prometheus", func(map[string]any) (coremetrics.TelemetrySink, error) {
		return NewPromSink()
	})

	_ = coremetrics.RegisterSink("influx", func(conf map[string]any) (coremetrics.TelemetrySink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})
}
