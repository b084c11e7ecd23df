package metrics

import (
	"time"

	"github.com/kilianp07/essim/core/model"
)

// TelemetrySink receives battery snapshots emitted after each phase.
// Snapshots are values and must not be retained by reference.
type TelemetrySink interface {
	RecordSnapshots(snaps []model.BatterySnapshot) error
}

// AllocationRecord summarises the decide pass of one site.
type AllocationRecord struct {
	Tick        int
	SiteID      string
	Strategy    string
	RequestedKW float64
	AllocatedKW float64
	ShortfallKW float64
	Rejected    int
	Time        time.Time
}

// AllocationRecorder records per-site allocation results.
type AllocationRecorder interface {
	RecordAllocation(rec AllocationRecord) error
}

// TickRecord describes a completed engine phase.
type TickRecord struct {
	Tick     int
	Phase    model.Phase
	Duration time.Duration
	Time     time.Time
}

// TickRecorder records phase timings.
type TickRecorder interface {
	RecordTick(rec TickRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSnapshots([]model.BatterySnapshot) error { return nil }
func (NopSink) RecordAllocation(AllocationRecord) error       { return nil }
func (NopSink) RecordTick(TickRecord) error                   { return nil }
