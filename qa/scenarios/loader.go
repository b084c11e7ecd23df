// Package scenarios loads simulation scenarios from YAML files, runs them
// against a fresh engine and checks the expected outcome.
package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/essim/core/model"
)

type BatteryDef struct {
	ID           string  `yaml:"id"`
	CapacityKWh  float64 `yaml:"capacity_kwh"`
	MaxRateKW    float64 `yaml:"max_rate_kw"`
	MinEnergyKWh float64 `yaml:"min_energy_kwh"`
	EnergyKWh    float64 `yaml:"energy_kwh"`
}

func (b BatteryDef) ToModel() model.BatteryParams {
	return model.BatteryParams{
		ID:               b.ID,
		CapacityKWh:      b.CapacityKWh,
		MaxRateKW:        b.MaxRateKW,
		MinEnergyKWh:     b.MinEnergyKWh,
		InitialEnergyKWh: b.EnergyKWh,
	}
}

type SiteDef struct {
	ID        string         `yaml:"id"`
	Strategy  string         `yaml:"strategy"`
	Conf      map[string]any `yaml:"conf,omitempty"`
	Batteries []BatteryDef   `yaml:"batteries"`
}

// Allocation is the expected decide result of a site on the last tick.
type Allocation struct {
	AllocatedKW *float64           `yaml:"allocated_kw,omitempty"`
	ShortfallKW *float64           `yaml:"shortfall_kw,omitempty"`
	Rates       map[string]float64 `yaml:"rates,omitempty"`
}

// SiteTotals are expected run totals of a site.
type SiteTotals struct {
	ShortfallKWh *float64 `yaml:"shortfall_kwh,omitempty"`
	PartialTicks *int     `yaml:"partial_ticks,omitempty"`
}

type Expected struct {
	Phase      string                `yaml:"phase,omitempty"`
	Energy     map[string]float64    `yaml:"energy_kwh,omitempty"`
	States     map[string]string     `yaml:"states,omitempty"`
	Allocation map[string]Allocation `yaml:"last_allocation,omitempty"`
	Totals     map[string]SiteTotals `yaml:"totals,omitempty"`
	Clipped    []string              `yaml:"clipped,omitempty"`
}

type Scenario struct {
	Name           string               `yaml:"name"`
	Description    string               `yaml:"description,omitempty"`
	DeltaTimeHours float64              `yaml:"delta_time_hours"`
	Ticks          int                  `yaml:"ticks"`
	TrailingUpdate bool                 `yaml:"trailing_update,omitempty"`
	ParallelUpdate bool                 `yaml:"parallel_update,omitempty"`
	Sites          []SiteDef            `yaml:"sites"`
	Demand         map[string][]float64 `yaml:"demand"`
	RepeatDemand   bool                 `yaml:"repeat_demand,omitempty"`
	Expected       Expected             `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	if sc.DeltaTimeHours == 0 {
		sc.DeltaTimeHours = 1
	}
	return &sc, nil
}
