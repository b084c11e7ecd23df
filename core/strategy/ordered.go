package strategy

import (
	"math"
	"sort"
	"sync"

	"github.com/kilianp07/essim/core/model"
)

// RoundRobin fills batteries in id order starting from a rotating offset.
// The offset moves by one after every allocation that commanded power, so
// successive requests start on a different battery.
type RoundRobin struct {
	mu     sync.Mutex
	offset int
}

// NewRoundRobin returns a RoundRobin starting at the first battery.
func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

// Name implements Strategy.
func (*RoundRobin) Name() string { return "round_robin" }

// Allocate implements Strategy.
func (r *RoundRobin) Allocate(batteries []model.BatterySnapshot, requestedKW, dtHours float64) ([]model.Assignment, error) {
	if requestedKW == 0 || len(batteries) == 0 {
		return idleAll(batteries), nil
	}
	ordered := make([]model.BatterySnapshot, len(batteries))
	copy(ordered, batteries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].BatteryID < ordered[j].BatteryID })

	r.mu.Lock()
	start := r.offset % len(ordered)
	r.mu.Unlock()

	rotated := append(ordered[start:len(ordered):len(ordered)], ordered[:start]...)
	rates := fillInOrder(candidates(rotated, requestedKW, dtHours), math.Abs(requestedKW))
	if len(rates) > 0 {
		r.mu.Lock()
		r.offset = (start + 1) % len(ordered)
		r.mu.Unlock()
	}
	return toAssignments(batteries, rates, requestedKW), nil
}

// Priority fills batteries following a fixed id order. Batteries missing from
// the order come last, sorted by id.
type Priority struct {
	rank map[string]int
}

// NewPriority returns a Priority strategy for the given battery order.
func NewPriority(order []string) *Priority {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		if _, ok := rank[id]; !ok {
			rank[id] = i
		}
	}
	return &Priority{rank: rank}
}

// Name implements Strategy.
func (*Priority) Name() string { return "priority" }

// Allocate implements Strategy.
func (p *Priority) Allocate(batteries []model.BatterySnapshot, requestedKW, dtHours float64) ([]model.Assignment, error) {
	if requestedKW == 0 {
		return idleAll(batteries), nil
	}
	list := candidates(batteries, requestedKW, dtHours)
	sort.SliceStable(list, func(i, j int) bool {
		ri, iok := p.rank[list[i].snap.BatteryID]
		rj, jok := p.rank[list[j].snap.BatteryID]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return list[i].snap.BatteryID < list[j].snap.BatteryID
	})
	rates := fillInOrder(list, math.Abs(requestedKW))
	return toAssignments(batteries, rates, requestedKW), nil
}
