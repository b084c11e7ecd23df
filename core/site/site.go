package site

import (
	"fmt"
	"math"

	"github.com/kilianp07/essim/core/model"
	"github.com/kilianp07/essim/core/strategy"
)

// tolerance absorbs floating point noise when checking strategy output.
const tolerance = 1e-9

// Site owns a set of batteries subjected to the same charging strategy.
type Site struct {
	id        string
	location  string
	batteries []*model.Battery
	index     map[string]*model.Battery
	strategy  strategy.Strategy
}

// New returns a site owning batteries. Battery ids must be unique.
func New(id, location string, batteries []*model.Battery, strat strategy.Strategy) (*Site, error) {
	if id == "" {
		return nil, model.ConfigError("site id is required")
	}
	if strat == nil {
		return nil, model.ConfigError("site %s: strategy is nil", id)
	}
	index := make(map[string]*model.Battery, len(batteries))
	for _, b := range batteries {
		if b == nil {
			return nil, model.ConfigError("site %s: nil battery", id)
		}
		if _, dup := index[b.ID()]; dup {
			return nil, model.ConfigError("site %s: duplicate battery %s", id, b.ID())
		}
		index[b.ID()] = b
	}
	return &Site{
		id:        id,
		location:  location,
		batteries: append([]*model.Battery(nil), batteries...),
		index:     index,
		strategy:  strat,
	}, nil
}

// ID returns the site identifier.
func (s *Site) ID() string { return s.id }

// Location returns the free-form location label.
func (s *Site) Location() string { return s.location }

// Strategy returns the allocation strategy the site was built with.
func (s *Site) Strategy() strategy.Strategy { return s.strategy }

// Batteries returns a copy of the member list in configuration order.
func (s *Site) Batteries() []*model.Battery {
	return append([]*model.Battery(nil), s.batteries...)
}

// Battery returns the member with the given id, or nil.
func (s *Site) Battery(id string) *model.Battery { return s.index[id] }

// UpdateReport aggregates what the update pass moved. It is informational
// and does not influence the decide pass.
type UpdateReport struct {
	SiteID        string
	ChargedKWh    float64
	DischargedKWh float64
	Clipped       []string
}

// Update advances every battery by dtHours.
func (s *Site) Update(dtHours float64) (UpdateReport, error) {
	rep := UpdateReport{SiteID: s.id}
	for _, b := range s.batteries {
		moved, err := b.Update(dtHours)
		if err != nil {
			return rep, fmt.Errorf("site %s: %w", s.id, err)
		}
		if moved > 0 {
			rep.ChargedKWh += moved
		} else {
			rep.DischargedKWh -= moved
		}
		if b.Snapshot().Clipped {
			rep.Clipped = append(rep.Clipped, b.ID())
		}
	}
	return rep, nil
}

// Snapshots returns the current state of every battery in site order.
func (s *Site) Snapshots() []model.BatterySnapshot {
	out := make([]model.BatterySnapshot, len(s.batteries))
	for i, b := range s.batteries {
		snap := b.Snapshot()
		snap.SiteID = s.id
		out[i] = snap
	}
	return out
}

// Decide asks the strategy to spread requestedKW over the batteries and
// commands the result. Positive requests charge, negative requests
// discharge. A strategy breaking the contract yields a ContractError and no
// command is applied. Per-battery rejections are reported in the result and
// do not undo the other commands.
func (s *Site) Decide(requestedKW, dtHours float64) (AllocationResult, error) {
	res := AllocationResult{SiteID: s.id, RequestedKW: requestedKW}
	snaps := s.Snapshots()
	asn, err := s.strategy.Allocate(snaps, requestedKW, dtHours)
	if err != nil {
		return res, fmt.Errorf("site %s: strategy %s: %w", s.id, s.strategy.Name(), err)
	}
	if err := s.checkContract(asn, requestedKW); err != nil {
		return res, err
	}

	headroom := make(map[string]float64, len(snaps))
	for _, sn := range snaps {
		headroom[sn.BatteryID] = sn.HeadroomKW(requestedKW, dtHours)
	}
	assigned := make(map[string]bool, len(asn))
	for _, a := range asn {
		assigned[a.BatteryID] = true
		res.Outcomes = append(res.Outcomes, s.apply(a, headroom[a.BatteryID]))
	}
	for _, b := range s.batteries {
		if assigned[b.ID()] {
			continue
		}
		res.Outcomes = append(res.Outcomes, s.apply(model.Assignment{BatteryID: b.ID(), State: model.StateIdle}, 0))
	}

	sign := 1.0
	if requestedKW < 0 {
		sign = -1
	}
	for _, o := range res.Outcomes {
		if o.Err == nil {
			res.AllocatedKW += sign * o.RateKW
		}
	}
	res.ShortfallKW = math.Max(0, math.Abs(requestedKW)-math.Abs(res.AllocatedKW))
	if res.ShortfallKW < tolerance {
		res.ShortfallKW = 0
	}
	return res, nil
}

func (s *Site) apply(a model.Assignment, headroom float64) Outcome {
	o := Outcome{BatteryID: a.BatteryID, State: a.State, RateKW: a.RateKW}
	if a.State != model.StateIdle && a.RateKW > headroom+tolerance {
		o.Err = &model.ConstraintError{BatteryID: a.BatteryID, Constraint: model.ConstraintHeadroom, Requested: a.RateKW, Limit: headroom}
		return o
	}
	o.Err = s.index[a.BatteryID].Command(a.State, a.RateKW)
	if a.State == model.StateIdle {
		o.RateKW = 0
	}
	return o
}

func (s *Site) checkContract(asn []model.Assignment, requestedKW float64) error {
	want := model.StateFor(requestedKW)
	seen := make(map[string]bool, len(asn))
	var sum float64
	for _, a := range asn {
		if _, ok := s.index[a.BatteryID]; !ok {
			return &model.ContractError{SiteID: s.id, BatteryID: a.BatteryID, Reason: "battery not owned by site"}
		}
		if seen[a.BatteryID] {
			return &model.ContractError{SiteID: s.id, BatteryID: a.BatteryID, Reason: "battery assigned twice"}
		}
		seen[a.BatteryID] = true
		if a.RateKW < 0 || math.IsNaN(a.RateKW) {
			return &model.ContractError{SiteID: s.id, BatteryID: a.BatteryID, Reason: fmt.Sprintf("negative rate %.3f kW", a.RateKW)}
		}
		if a.State == model.StateIdle {
			continue
		}
		if a.RateKW > 0 && a.State != want {
			return &model.ContractError{SiteID: s.id, BatteryID: a.BatteryID, Reason: fmt.Sprintf("state %s opposes request %.3f kW", a.State, requestedKW)}
		}
		sum += a.RateKW
	}
	if sum > math.Abs(requestedKW)+tolerance {
		return &model.ContractError{SiteID: s.id, Reason: fmt.Sprintf("allocated %.3f kW exceeds request %.3f kW", sum, math.Abs(requestedKW))}
	}
	return nil
}
