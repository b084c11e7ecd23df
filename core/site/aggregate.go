package site

import "github.com/kilianp07/essim/core/model"

// EnergyCapacityKWh sums the capacity of every battery.
func (s *Site) EnergyCapacityKWh() float64 {
	var v float64
	for _, b := range s.batteries {
		v += b.Params().CapacityKWh
	}
	return v
}

// EnergyKWh sums the energy currently stored.
func (s *Site) EnergyKWh() float64 {
	var v float64
	for _, b := range s.batteries {
		v += b.Snapshot().EnergyKWh
	}
	return v
}

// PowerCapacityKW sums the maximum rates.
func (s *Site) PowerCapacityKW() float64 {
	var v float64
	for _, b := range s.batteries {
		v += b.Params().MaxRateKW
	}
	return v
}

// State returns the state of the first non-idle battery in site order, or
// Idle.
func (s *Site) State() model.State {
	for _, b := range s.batteries {
		if st := b.Snapshot().State; st != model.StateIdle {
			return st
		}
	}
	return model.StateIdle
}
