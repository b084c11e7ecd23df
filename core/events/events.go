package events

import (
	"time"

	"github.com/kilianp07/essim/core/model"
)

// PhaseEvent is published once every site went through a phase.
type PhaseEvent struct {
	Tick     int
	Phase    model.Phase
	Duration time.Duration
}

// AllocationEvent is published after a site applied its strategy output.
type AllocationEvent struct {
	Tick        int
	SiteID      string
	RequestedKW float64
	AllocatedKW float64
	ShortfallKW float64
}

// ConstraintEvent is published for each assignment a battery rejected.
type ConstraintEvent struct {
	Tick      int
	SiteID    string
	BatteryID string
	Err       error
}

// HaltEvent is published when the engine stops on a contract violation or a
// demand failure.
type HaltEvent struct {
	Tick   int
	SiteID string
	Err    error
}
