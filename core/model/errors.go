package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConstraintViolation is matched by commands exceeding a battery's
	// rate or stored-energy limits.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrInvalidConfiguration is matched by construction-time errors.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrStrategyContract is matched when a strategy returns an allocation
	// that breaks the site contract.
	ErrStrategyContract = errors.New("strategy contract violation")
)

// Constraint names the physical limit a command ran into.
type Constraint string

const (
	ConstraintNegativeRate Constraint = "negative_rate"
	ConstraintMaxRate      Constraint = "max_rate"
	ConstraintEmpty        Constraint = "empty"
	ConstraintFull         Constraint = "full"
	ConstraintHeadroom     Constraint = "headroom"
)

// ConstraintError reports a rejected battery command.
type ConstraintError struct {
	BatteryID  string
	Constraint Constraint
	Requested  float64
	Limit      float64
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("battery %s: %s: requested %.3f kW, limit %.3f", e.BatteryID, e.Constraint, e.Requested, e.Limit)
}

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraintViolation }

// ContractError identifies the site and battery involved in a strategy
// contract violation. BatteryID is empty when the violation concerns the
// allocation as a whole.
type ContractError struct {
	SiteID    string
	BatteryID string
	Reason    string
}

func (e *ContractError) Error() string {
	if e.BatteryID == "" {
		return fmt.Sprintf("site %s: %s", e.SiteID, e.Reason)
	}
	return fmt.Sprintf("site %s battery %s: %s", e.SiteID, e.BatteryID, e.Reason)
}

func (e *ContractError) Is(target error) bool { return target == ErrStrategyContract }

// ConfigError wraps a configuration problem so that it matches
// ErrInvalidConfiguration.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
