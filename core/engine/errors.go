package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrPhaseOrder is returned when a phase is requested out of order.
	ErrPhaseOrder = errors.New("engine phase out of order")
	// ErrHalted is returned by every call once the engine stopped on a
	// fatal tick error.
	ErrHalted = errors.New("engine halted")
)

// TickError identifies the tick and site at which the engine halted.
type TickError struct {
	Tick   int
	SiteID string
	Err    error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick %d site %s: %v", e.Tick, e.SiteID, e.Err)
}

func (e *TickError) Unwrap() error { return e.Err }
