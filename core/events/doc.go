// Package events defines the simulation events emitted on the event bus.
//
// Available event types:
//   - PhaseEvent: an engine phase completed
//   - AllocationEvent: a site decide pass finished
//   - ConstraintEvent: a battery rejected its assignment
//   - HaltEvent: the engine stopped on a fatal error
package events
