package strategy

import (
	"math"
	"sort"

	"github.com/kilianp07/essim/core/model"
)

// Strategy distributes a site-level power request across the site's
// batteries. requestedKW is positive for charging and negative for
// discharging. Implementations must keep every rate within the battery's
// headroom for dtHours and the sum of rates within |requestedKW|. Batteries
// absent from the result are set idle by the site.
type Strategy interface {
	Name() string
	Allocate(batteries []model.BatterySnapshot, requestedKW, dtHours float64) ([]model.Assignment, error)
}

// candidate pairs a battery with the power it can still take or give.
type candidate struct {
	snap     model.BatterySnapshot
	headroom float64
}

func candidates(batteries []model.BatterySnapshot, requestedKW, dtHours float64) []candidate {
	list := make([]candidate, 0, len(batteries))
	for _, b := range batteries {
		h := b.HeadroomKW(requestedKW, dtHours)
		if h <= 0 {
			continue
		}
		list = append(list, candidate{snap: b, headroom: h})
	}
	return list
}

func sortByID(list []candidate) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].snap.BatteryID < list[j].snap.BatteryID })
}

// fillInOrder saturates candidates one after the other until target is met.
func fillInOrder(list []candidate, target float64) map[string]float64 {
	rates := make(map[string]float64, len(list))
	remaining := target
	for _, c := range list {
		if remaining <= 0 {
			break
		}
		take := math.Min(remaining, c.headroom)
		rates[c.snap.BatteryID] = take
		remaining -= take
	}
	return rates
}

// toAssignments builds one assignment per battery in input order. Batteries
// with a zero rate are set idle.
func toAssignments(batteries []model.BatterySnapshot, rates map[string]float64, requestedKW float64) []model.Assignment {
	st := model.StateFor(requestedKW)
	out := make([]model.Assignment, 0, len(batteries))
	for _, b := range batteries {
		r := rates[b.BatteryID]
		if r <= 0 {
			out = append(out, model.Assignment{BatteryID: b.BatteryID, State: model.StateIdle})
			continue
		}
		out = append(out, model.Assignment{BatteryID: b.BatteryID, State: st, RateKW: r})
	}
	return out
}

func idleAll(batteries []model.BatterySnapshot) []model.Assignment {
	return toAssignments(batteries, nil, 0)
}
