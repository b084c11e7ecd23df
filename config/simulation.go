package config

import (
	"fmt"
	"math"
)

// SimulationConfig drives the tick loop.
type SimulationConfig struct {
	// DeltaTimeHours is the duration of one tick.
	DeltaTimeHours float64 `json:"delta_time_hours"`
	// Ticks is the number of ticks run by the run command.
	Ticks int `json:"ticks"`
	// TrailingUpdate applies the decisions of the last tick with one more
	// update pass.
	TrailingUpdate bool `json:"trailing_update"`
	ParallelUpdate bool `json:"parallel_update"`
}

// SetDefaults applies one hour ticks over a day.
func (c *SimulationConfig) SetDefaults() {
	if c.DeltaTimeHours == 0 {
		c.DeltaTimeHours = 1
	}
	if c.Ticks == 0 {
		c.Ticks = 24
	}
}

func (c SimulationConfig) Validate() error {
	if c.DeltaTimeHours <= 0 || math.IsNaN(c.DeltaTimeHours) || math.IsInf(c.DeltaTimeHours, 0) {
		return fmt.Errorf("simulation: delta_time_hours must be > 0")
	}
	if c.Ticks < 0 {
		return fmt.Errorf("simulation: ticks must be >= 0")
	}
	return nil
}
