// Package plugins links the infrastructure modules into the binary so they
// register with the core registries, and lists what is available.
package plugins

import (
	// Telemetry sinks: jsonl, sqlite.
	_ "github.com/kilianp07/essim/infra/history"
	// Telemetry sinks: prometheus, influx.
	_ "github.com/kilianp07/essim/infra/metrics"
	// Telemetry sink and demand source: mqtt.
	_ "github.com/kilianp07/essim/infra/mqtt"
)
