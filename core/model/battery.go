package model

import (
	"fmt"
	"math"
	"sync"
)

// State is the operating mode commanded to a battery.
type State int

const (
	StateIdle State = iota
	StateCharging
	StateDischarging
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCharging:
		return "charging"
	case StateDischarging:
		return "discharging"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ParseState converts the textual representation back to a State.
func ParseState(s string) (State, error) {
	switch s {
	case "idle", "IDLE":
		return StateIdle, nil
	case "charging", "CHARGING":
		return StateCharging, nil
	case "discharging", "DISCHARGING":
		return StateDischarging, nil
	}
	return StateIdle, fmt.Errorf("unknown battery state %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// BatteryParams holds the fixed limits of a battery and its starting charge.
// Units: kWh for energy, kW for power.
type BatteryParams struct {
	ID               string
	CapacityKWh      float64
	MaxRateKW        float64
	MinEnergyKWh     float64
	InitialEnergyKWh float64
}

// Validate checks the parameters before a battery is built.
func (p BatteryParams) Validate() error {
	switch {
	case p.ID == "":
		return ConfigError("battery id is required")
	case p.CapacityKWh < 0:
		return ConfigError("battery %s: capacity must be >= 0", p.ID)
	case p.MaxRateKW <= 0:
		return ConfigError("battery %s: max rate must be > 0", p.ID)
	case p.MinEnergyKWh < 0:
		return ConfigError("battery %s: min energy must be >= 0", p.ID)
	case p.MinEnergyKWh > p.CapacityKWh:
		return ConfigError("battery %s: min energy %.3f exceeds capacity %.3f", p.ID, p.MinEnergyKWh, p.CapacityKWh)
	case p.InitialEnergyKWh < p.MinEnergyKWh || p.InitialEnergyKWh > p.CapacityKWh:
		return ConfigError("battery %s: initial energy must be within [%.3f, %.3f]", p.ID, p.MinEnergyKWh, p.CapacityKWh)
	}
	return nil
}

// GridBatteryParams returns the standard single grid storage battery:
// 5000 kWh, 2500 kW, starting full.
func GridBatteryParams(id string) BatteryParams {
	return BatteryParams{ID: id, CapacityKWh: 5000, MaxRateKW: 2500, InitialEnergyKWh: 5000}
}

// Battery is a storage unit whose stored energy only moves during Update,
// following the state and rate set by the previous Command.
type Battery struct {
	params BatteryParams

	mu            sync.RWMutex
	state         State
	rateKW        float64
	energyKWh     float64
	clipped       bool
	chargedKWh    float64
	dischargedKWh float64
}

// NewBattery validates params and returns an idle battery.
func NewBattery(p BatteryParams) (*Battery, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Battery{params: p, energyKWh: p.InitialEnergyKWh}, nil
}

// ID returns the battery identifier.
func (b *Battery) ID() string { return b.params.ID }

// Params returns the fixed limits of the battery.
func (b *Battery) Params() BatteryParams { return b.params }

// Update advances stored energy by dtHours using the state and rate set by
// the last command. Energy beyond the capacity or the floor is discarded and
// the battery is flagged as clipped. It returns the energy actually moved,
// positive when charged.
func (b *Battery) Update(dtHours float64) (float64, error) {
	if dtHours < 0 || math.IsNaN(dtHours) || math.IsInf(dtHours, 0) {
		return 0, ConfigError("battery %s: invalid time step %v", b.params.ID, dtHours)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clipped = false
	if dtHours == 0 {
		return 0, nil
	}

	var delta float64
	switch b.state {
	case StateCharging:
		delta = b.rateKW * dtHours
	case StateDischarging:
		delta = -b.rateKW * dtHours
	}
	next := b.energyKWh + delta
	if next > b.params.CapacityKWh {
		next = b.params.CapacityKWh
		b.clipped = true
	}
	if next < b.params.MinEnergyKWh {
		next = b.params.MinEnergyKWh
		b.clipped = true
	}
	moved := next - b.energyKWh
	b.energyKWh = next
	if moved > 0 {
		b.chargedKWh += moved
	} else {
		b.dischargedKWh -= moved
	}
	return moved, nil
}

// Command sets the state and rate applied by the next Update. A rejected
// command leaves the battery untouched.
func (b *Battery) Command(state State, rateKW float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(state, rateKW); err != nil {
		return err
	}
	if state == StateIdle {
		rateKW = 0
	}
	b.state = state
	b.rateKW = rateKW
	return nil
}

func (b *Battery) check(state State, rateKW float64) error {
	id := b.params.ID
	if rateKW < 0 || math.IsNaN(rateKW) {
		return &ConstraintError{BatteryID: id, Constraint: ConstraintNegativeRate, Requested: rateKW}
	}
	if rateKW > b.params.MaxRateKW {
		return &ConstraintError{BatteryID: id, Constraint: ConstraintMaxRate, Requested: rateKW, Limit: b.params.MaxRateKW}
	}
	switch state {
	case StateIdle:
	case StateDischarging:
		if rateKW > 0 && b.energyKWh <= b.params.MinEnergyKWh {
			return &ConstraintError{BatteryID: id, Constraint: ConstraintEmpty, Requested: rateKW}
		}
	case StateCharging:
		if rateKW > 0 && b.energyKWh >= b.params.CapacityKWh {
			return &ConstraintError{BatteryID: id, Constraint: ConstraintFull, Requested: rateKW}
		}
	default:
		return fmt.Errorf("battery %s: unknown state %v", id, state)
	}
	return nil
}

// Snapshot returns a consistent copy of the battery.
func (b *Battery) Snapshot() BatterySnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return BatterySnapshot{
		BatteryID:     b.params.ID,
		State:         b.state,
		RateKW:        b.rateKW,
		EnergyKWh:     b.energyKWh,
		CapacityKWh:   b.params.CapacityKWh,
		MaxRateKW:     b.params.MaxRateKW,
		MinEnergyKWh:  b.params.MinEnergyKWh,
		Clipped:       b.clipped,
		ChargedKWh:    b.chargedKWh,
		DischargedKWh: b.dischargedKWh,
	}
}
