package strategy

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/essim/core/model"
)

// ErrInfeasible indicates the LP solution did not meet the target.
var ErrInfeasible = errors.New("lp infeasible")

// LP solves a linear program maximising a state-of-charge score: fuller
// batteries are preferred when discharging and emptier ones when charging.
// The total is min(|request|, total headroom). When the solver fails the
// allocation falls back to Greedy.
type LP struct {
	// Fallback is used when the solver fails. Defaults to Greedy.
	Fallback Strategy
}

// NewLP returns an LP strategy with a greedy fallback.
func NewLP() *LP { return &LP{Fallback: Greedy{}} }

// Name implements Strategy.
func (*LP) Name() string { return "lp" }

// Allocate implements Strategy.
func (s *LP) Allocate(batteries []model.BatterySnapshot, requestedKW, dtHours float64) ([]model.Assignment, error) {
	asn, err := s.AllocateStrict(batteries, requestedKW, dtHours)
	if err == nil {
		return asn, nil
	}
	fb := s.Fallback
	if fb == nil {
		fb = Greedy{}
	}
	return fb.Allocate(batteries, requestedKW, dtHours)
}

// AllocateStrict solves the LP and reports solver failures instead of
// falling back.
func (s *LP) AllocateStrict(batteries []model.BatterySnapshot, requestedKW, dtHours float64) ([]model.Assignment, error) {
	if requestedKW == 0 {
		return idleAll(batteries), nil
	}
	list := candidates(batteries, requestedKW, dtHours)
	sortByID(list)
	rates := make(map[string]float64, len(list))
	if len(list) == 0 {
		return toAssignments(batteries, rates, requestedKW), nil
	}

	scores := make([]float64, len(list))
	caps := make([]float64, len(list))
	var total float64
	for i, c := range list {
		soc := c.snap.StateOfCharge()
		if requestedKW > 0 {
			soc = 1 - soc
		}
		scores[i] = soc
		caps[i] = c.headroom
		total += c.headroom
	}
	target := math.Min(math.Abs(requestedKW), total)

	sol, err := lpSolve(scores, caps, target)
	if err != nil {
		return nil, err
	}
	var sum float64
	for i, c := range list {
		p := math.Max(0, math.Min(sol[i], caps[i]))
		rates[c.snap.BatteryID] = p
		sum += p
	}
	if math.Abs(sum-target) > 1e-6 {
		return nil, ErrInfeasible
	}
	if sum > target {
		for id := range rates {
			rates[id] *= target / sum
		}
	}
	return toAssignments(batteries, rates, requestedKW), nil
}

// solveLP maximises scores·x subject to 0 <= x <= caps and sum(x) = target.
// It returns x.
func solveLP(scores, caps []float64, target float64) ([]float64, error) {
	n := len(caps)
	c := make([]float64, n)
	for i, s := range scores {
		c[i] = -s
	}

	g := mat.NewDense(2*n, n, nil)
	h := make([]float64, 2*n)
	for i, cp := range caps {
		g.Set(i, i, 1)
		h[i] = cp
		g.Set(n+i, i, -1)
	}

	a := mat.NewDense(1, n, nil)
	for i := 0; i < n; i++ {
		a.Set(0, i, 1)
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, []float64{target})
	_, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-10, nil)
	if err != nil {
		return nil, err
	}
	if len(sol) < 2*n {
		return nil, ErrInfeasible
	}
	// Convert splits each free variable into a positive and a negative part.
	x := make([]float64, n)
	for i := range x {
		x[i] = sol[i] - sol[n+i]
	}
	return x, nil
}

// lpSolve can be overridden in tests to simulate solver failures.
var lpSolve = solveLP
