package strategy

import (
	"math"
	"sort"

	"github.com/kilianp07/essim/core/model"
)

// Greedy fills the request from the battery with the most headroom first,
// moving on once it is saturated. Ties go to the lowest battery id.
type Greedy struct{}

// Name implements Strategy.
func (Greedy) Name() string { return "greedy" }

// Allocate implements Strategy.
func (Greedy) Allocate(batteries []model.BatterySnapshot, requestedKW, dtHours float64) ([]model.Assignment, error) {
	if requestedKW == 0 {
		return idleAll(batteries), nil
	}
	list := candidates(batteries, requestedKW, dtHours)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].headroom != list[j].headroom {
			return list[i].headroom > list[j].headroom
		}
		return list[i].snap.BatteryID < list[j].snap.BatteryID
	})
	rates := fillInOrder(list, math.Abs(requestedKW))
	return toAssignments(batteries, rates, requestedKW), nil
}

// LowestToHighest charges the least-full batteries first and discharges the
// most-full first, saturating each before moving to the next.
type LowestToHighest struct{}

// Name implements Strategy.
func (LowestToHighest) Name() string { return "lowest_to_highest" }

// Allocate implements Strategy.
func (LowestToHighest) Allocate(batteries []model.BatterySnapshot, requestedKW, dtHours float64) ([]model.Assignment, error) {
	if requestedKW == 0 {
		return idleAll(batteries), nil
	}
	list := candidates(batteries, requestedKW, dtHours)
	charging := requestedKW > 0
	sort.SliceStable(list, func(i, j int) bool {
		ei, ej := list[i].snap.EnergyKWh, list[j].snap.EnergyKWh
		if ei != ej {
			if charging {
				return ei < ej
			}
			return ei > ej
		}
		return list[i].snap.BatteryID < list[j].snap.BatteryID
	})
	rates := fillInOrder(list, math.Abs(requestedKW))
	return toAssignments(batteries, rates, requestedKW), nil
}
