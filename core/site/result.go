package site

import "github.com/kilianp07/essim/core/model"

// Outcome records what happened to one battery during a decide pass.
type Outcome struct {
	BatteryID string
	State     model.State
	RateKW    float64
	Err       error
}

// AllocationResult summarises a decide pass. AllocatedKW carries the sign of
// the request.
type AllocationResult struct {
	SiteID      string
	RequestedKW float64
	AllocatedKW float64
	ShortfallKW float64
	Outcomes    []Outcome
}

// Partial reports whether the request was not fully met. This is a normal
// outcome when the site lacks headroom.
func (r AllocationResult) Partial() bool { return r.ShortfallKW > 0 }

// Failed returns the outcomes rejected by a battery constraint.
func (r AllocationResult) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}
