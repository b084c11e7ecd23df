package strategy

import (
	"math"

	"github.com/kilianp07/essim/core/model"
)

// shareEpsilon stops redistribution rounds once the leftover is negligible.
const shareEpsilon = 1e-9

// Equal splits the request evenly between batteries with headroom. Whatever
// a saturated battery cannot take is redistributed among the others.
type Equal struct{}

// Name implements Strategy.
func (Equal) Name() string { return "equal" }

// Allocate implements Strategy.
func (Equal) Allocate(batteries []model.BatterySnapshot, requestedKW, dtHours float64) ([]model.Assignment, error) {
	if requestedKW == 0 {
		return idleAll(batteries), nil
	}
	list := candidates(batteries, requestedKW, dtHours)
	sortByID(list)
	rates := make(map[string]float64, len(list))
	remaining := math.Abs(requestedKW)
	for remaining > shareEpsilon && len(list) > 0 {
		share := remaining / float64(len(list))
		next := list[:0]
		for _, c := range list {
			take := math.Min(share, c.headroom)
			rates[c.snap.BatteryID] += take
			remaining -= take
			c.headroom -= take
			if c.headroom > shareEpsilon {
				next = append(next, c)
			}
		}
		list = next
	}
	return toAssignments(batteries, rates, requestedKW), nil
}

// Proportional splits the request in proportion to each battery's headroom,
// so that all batteries saturate together.
type Proportional struct{}

// Name implements Strategy.
func (Proportional) Name() string { return "proportional" }

// Allocate implements Strategy.
func (Proportional) Allocate(batteries []model.BatterySnapshot, requestedKW, dtHours float64) ([]model.Assignment, error) {
	if requestedKW == 0 {
		return idleAll(batteries), nil
	}
	list := candidates(batteries, requestedKW, dtHours)
	var total float64
	for _, c := range list {
		total += c.headroom
	}
	rates := make(map[string]float64, len(list))
	if total == 0 {
		return toAssignments(batteries, rates, requestedKW), nil
	}
	target := math.Abs(requestedKW)
	for _, c := range list {
		if target >= total {
			rates[c.snap.BatteryID] = c.headroom
			continue
		}
		rates[c.snap.BatteryID] = target * (c.headroom / total)
	}
	return toAssignments(batteries, rates, requestedKW), nil
}
