package model

import "math"

// Phase tags the point of the tick at which a snapshot was taken.
type Phase string

const (
	PhaseUpdate Phase = "update"
	PhaseDecide Phase = "decide"
	PhaseFinal  Phase = "final"
)

// BatterySnapshot is a read-only copy of a battery at a given tick.
type BatterySnapshot struct {
	SiteID        string  `json:"site_id"`
	BatteryID     string  `json:"battery_id"`
	Tick          int     `json:"tick"`
	Phase         Phase   `json:"phase"`
	State         State   `json:"state"`
	RateKW        float64 `json:"rate_kw"`
	EnergyKWh     float64 `json:"energy_kwh"`
	CapacityKWh   float64 `json:"capacity_kwh"`
	MaxRateKW     float64 `json:"max_rate_kw"`
	MinEnergyKWh  float64 `json:"min_energy_kwh"`
	Clipped       bool    `json:"clipped"`
	ChargedKWh    float64 `json:"charged_kwh"`
	DischargedKWh float64 `json:"discharged_kwh"`
}

// StateOfCharge returns the stored energy as a fraction of capacity.
func (s BatterySnapshot) StateOfCharge() float64 {
	if s.CapacityKWh == 0 {
		return 0
	}
	return s.EnergyKWh / s.CapacityKWh
}

// StorageDurationHours is the time the battery can discharge at full rate
// from full capacity.
func (s BatterySnapshot) StorageDurationHours() float64 {
	if s.MaxRateKW == 0 {
		return 0
	}
	return s.CapacityKWh / s.MaxRateKW
}

// ChargeHeadroomKW is the highest charge rate the battery can sustain for
// dtHours without exceeding its capacity.
func (s BatterySnapshot) ChargeHeadroomKW(dtHours float64) float64 {
	return headroom(s.CapacityKWh-s.EnergyKWh, s.MaxRateKW, dtHours)
}

// DischargeHeadroomKW is the highest discharge rate the battery can sustain
// for dtHours without going below its floor.
func (s BatterySnapshot) DischargeHeadroomKW(dtHours float64) float64 {
	return headroom(s.EnergyKWh-s.MinEnergyKWh, s.MaxRateKW, dtHours)
}

// HeadroomKW returns the headroom in the direction of requestedKW
// (positive charges, negative discharges).
func (s BatterySnapshot) HeadroomKW(requestedKW, dtHours float64) float64 {
	if requestedKW < 0 {
		return s.DischargeHeadroomKW(dtHours)
	}
	return s.ChargeHeadroomKW(dtHours)
}

func headroom(roomKWh, maxRateKW, dtHours float64) float64 {
	if roomKWh <= 0 {
		return 0
	}
	if dtHours <= 0 {
		return maxRateKW
	}
	return math.Min(maxRateKW, roomKWh/dtHours)
}

// Assignment is a strategy decision for one battery.
type Assignment struct {
	BatteryID string  `json:"battery_id"`
	State     State   `json:"state"`
	RateKW    float64 `json:"rate_kw"`
}

// StateFor returns the battery state matching the sign of requestedKW.
func StateFor(requestedKW float64) State {
	switch {
	case requestedKW > 0:
		return StateCharging
	case requestedKW < 0:
		return StateDischarging
	}
	return StateIdle
}
