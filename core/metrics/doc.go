// Package metrics defines the telemetry sink interfaces fed by the engine.
// Every sink records battery snapshots; sinks may additionally implement
// AllocationRecorder or TickRecorder. Concrete sinks live in infra/metrics
// and infra/history and register themselves in the sink registry. When
// several sinks are configured NewSink fans out through a MultiSink.
package metrics
