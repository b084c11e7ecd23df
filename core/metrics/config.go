package metrics

import "github.com/kilianp07/essim/core/factory"

// Config lists the telemetry sinks of a run.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}
