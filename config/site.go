package config

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kilianp07/essim/core/factory"
	"github.com/kilianp07/essim/core/model"
)

// PresetGrid selects the standard grid storage battery.
const PresetGrid = "grid"

// SiteConfig describes one site and the batteries it owns.
type SiteConfig struct {
	ID        string               `json:"id"`
	Location  string               `json:"location"`
	Strategy  factory.ModuleConfig `json:"strategy"`
	Batteries []BatteryConfig      `json:"batteries"`
}

// BatteryConfig describes one battery. Fields left at zero are taken from
// the preset. InitialEnergyKWh defaults to a full battery.
type BatteryConfig struct {
	ID               string   `json:"id"`
	Preset           string   `json:"preset"`
	CapacityKWh      float64  `json:"capacity_kwh"`
	MaxRateKW        float64  `json:"max_rate_kw"`
	MinEnergyKWh     float64  `json:"min_energy_kwh"`
	InitialEnergyKWh *float64 `json:"initial_energy_kwh"`
}

// SetDefaults generates missing site and battery ids and picks the greedy
// strategy and the grid preset when nothing is set.
func (c *SiteConfig) SetDefaults() {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Strategy.Type == "" {
		c.Strategy.Type = "greedy"
	}
	for i := range c.Batteries {
		if c.Batteries[i].ID == "" {
			c.Batteries[i].ID = uuid.NewString()
		}
		if c.Batteries[i].Preset == "" && c.Batteries[i].CapacityKWh == 0 && c.Batteries[i].MaxRateKW == 0 {
			c.Batteries[i].Preset = PresetGrid
		}
	}
}

func (c SiteConfig) Validate() error {
	if c.ID == "" {
		return errors.New("sites: id is required")
	}
	for _, b := range c.Batteries {
		if err := b.Params().Validate(); err != nil {
			return fmt.Errorf("site %s: %w", c.ID, err)
		}
		if b.Preset != "" && b.Preset != PresetGrid {
			return fmt.Errorf("site %s: battery %s: unknown preset %q", c.ID, b.ID, b.Preset)
		}
	}
	return nil
}

// Params resolves the preset and returns the battery parameters.
func (c BatteryConfig) Params() model.BatteryParams {
	p := model.BatteryParams{ID: c.ID}
	if c.Preset == PresetGrid {
		p = model.GridBatteryParams(c.ID)
	}
	if c.CapacityKWh != 0 {
		p.CapacityKWh = c.CapacityKWh
		p.InitialEnergyKWh = c.CapacityKWh
	}
	if c.MaxRateKW != 0 {
		p.MaxRateKW = c.MaxRateKW
	}
	if c.MinEnergyKWh != 0 {
		p.MinEnergyKWh = c.MinEnergyKWh
	}
	if c.InitialEnergyKWh != nil {
		p.InitialEnergyKWh = *c.InitialEnergyKWh
	} else if p.InitialEnergyKWh == 0 {
		p.InitialEnergyKWh = p.CapacityKWh
	}
	return p
}
