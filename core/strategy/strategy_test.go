package strategy

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/essim/core/factory"
	"github.com/kilianp07/essim/core/model"
)

func snap(id string, energy, capacity, maxRate float64) model.BatterySnapshot {
	return model.BatterySnapshot{BatteryID: id, EnergyKWh: energy, CapacityKWh: capacity, MaxRateKW: maxRate}
}

func rates(asn []model.Assignment) map[string]float64 {
	out := make(map[string]float64, len(asn))
	for _, a := range asn {
		out[a.BatteryID] = a.RateKW
	}
	return out
}

func total(asn []model.Assignment) float64 {
	var s float64
	for _, a := range asn {
		s += a.RateKW
	}
	return s
}

// checkContract asserts the site contract for any strategy output.
func checkContract(t *testing.T, bs []model.BatterySnapshot, asn []model.Assignment, req, dt float64) {
	t.Helper()
	byID := make(map[string]model.BatterySnapshot, len(bs))
	for _, b := range bs {
		byID[b.BatteryID] = b
	}
	for _, a := range asn {
		b, ok := byID[a.BatteryID]
		require.True(t, ok, "unknown battery %s", a.BatteryID)
		assert.GreaterOrEqual(t, a.RateKW, 0.0)
		assert.LessOrEqual(t, a.RateKW, b.HeadroomKW(req, dt)+1e-9)
		if a.RateKW > 0 {
			assert.Equal(t, model.StateFor(req), a.State)
		}
	}
	assert.LessOrEqual(t, total(asn), math.Abs(req)+1e-9)
}

func TestGreedy_FillsLargestHeadroomFirst(t *testing.T) {
	bs := []model.BatterySnapshot{snap("b", 2, 10, 5), snap("a", 3, 10, 5)}
	asn, err := Greedy{}.Allocate(bs, -4, 1)
	require.NoError(t, err)
	checkContract(t, bs, asn, -4, 1)
	r := rates(asn)
	assert.InDelta(t, 3, r["a"], 1e-9)
	assert.InDelta(t, 1, r["b"], 1e-9)
	for _, a := range asn {
		assert.Equal(t, model.StateDischarging, a.State)
	}
}

func TestGreedy_CapsAtAggregateHeadroom(t *testing.T) {
	bs := []model.BatterySnapshot{snap("b", 2, 10, 5), snap("a", 3, 10, 5)}
	asn, err := Greedy{}.Allocate(bs, -10, 1)
	require.NoError(t, err)
	checkContract(t, bs, asn, -10, 1)
	assert.InDelta(t, 5, total(asn), 1e-9)
}

func TestGreedy_TieBrokenByID(t *testing.T) {
	bs := []model.BatterySnapshot{snap("c", 0, 10, 4), snap("a", 0, 10, 4), snap("b", 0, 10, 4)}
	asn, err := Greedy{}.Allocate(bs, 6, 1)
	require.NoError(t, err)
	r := rates(asn)
	assert.InDelta(t, 4, r["a"], 1e-9)
	assert.InDelta(t, 2, r["b"], 1e-9)
	assert.Zero(t, r["c"])
	for _, a := range asn {
		if a.BatteryID == "c" {
			assert.Equal(t, model.StateIdle, a.State)
		}
	}
}

func TestGreedy_ZeroRequestIdlesAll(t *testing.T) {
	bs := []model.BatterySnapshot{snap("a", 5, 10, 5)}
	asn, err := Greedy{}.Allocate(bs, 0, 1)
	require.NoError(t, err)
	require.Len(t, asn, 1)
	assert.Equal(t, model.StateIdle, asn[0].State)
}

func TestLowestToHighest(t *testing.T) {
	bs := []model.BatterySnapshot{snap("full", 8, 10, 5), snap("low", 1, 10, 5), snap("mid", 5, 10, 5)}

	asn, err := LowestToHighest{}.Allocate(bs, 6, 1)
	require.NoError(t, err)
	checkContract(t, bs, asn, 6, 1)
	r := rates(asn)
	assert.InDelta(t, 5, r["low"], 1e-9)
	assert.InDelta(t, 1, r["mid"], 1e-9)
	assert.Zero(t, r["full"])

	asn, err = LowestToHighest{}.Allocate(bs, -6, 1)
	require.NoError(t, err)
	r = rates(asn)
	assert.InDelta(t, 5, r["full"], 1e-9)
	assert.InDelta(t, 1, r["mid"], 1e-9)
	assert.Zero(t, r["low"])
}

func TestEqual_RedistributesSaturated(t *testing.T) {
	bs := []model.BatterySnapshot{snap("a", 9, 10, 5), snap("b", 0, 10, 5), snap("c", 0, 10, 5)}
	asn, err := Equal{}.Allocate(bs, 9, 1)
	require.NoError(t, err)
	checkContract(t, bs, asn, 9, 1)
	r := rates(asn)
	assert.InDelta(t, 1, r["a"], 1e-9)
	assert.InDelta(t, 4, r["b"], 1e-9)
	assert.InDelta(t, 4, r["c"], 1e-9)
}

func TestProportional(t *testing.T) {
	bs := []model.BatterySnapshot{snap("a", 3, 10, 5), snap("b", 1, 10, 5)}
	asn, err := Proportional{}.Allocate(bs, -2, 1)
	require.NoError(t, err)
	checkContract(t, bs, asn, -2, 1)
	r := rates(asn)
	assert.InDelta(t, 1.5, r["a"], 1e-9)
	assert.InDelta(t, 0.5, r["b"], 1e-9)

	asn, err = Proportional{}.Allocate(bs, -20, 1)
	require.NoError(t, err)
	assert.InDelta(t, 4, total(asn), 1e-9)
}

func TestRoundRobin_Rotates(t *testing.T) {
	rr := NewRoundRobin()
	bs := []model.BatterySnapshot{snap("a", 0, 10, 5), snap("b", 0, 10, 5), snap("c", 0, 10, 5)}
	var firsts []string
	for i := 0; i < 4; i++ {
		asn, err := rr.Allocate(bs, 3, 1)
		require.NoError(t, err)
		checkContract(t, bs, asn, 3, 1)
		for _, a := range asn {
			if a.RateKW > 0 {
				firsts = append(firsts, a.BatteryID)
			}
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "a"}, firsts)
}

func TestRoundRobin_IdleRequestKeepsOffset(t *testing.T) {
	rr := NewRoundRobin()
	bs := []model.BatterySnapshot{snap("a", 0, 10, 5), snap("b", 0, 10, 5)}
	_, err := rr.Allocate(bs, 0, 1)
	require.NoError(t, err)
	asn, err := rr.Allocate(bs, 1, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1, rates(asn)["a"], 1e-9)
}

func TestPriority(t *testing.T) {
	p := NewPriority([]string{"c", "a"})
	bs := []model.BatterySnapshot{snap("a", 0, 10, 2), snap("b", 0, 10, 2), snap("c", 0, 10, 2), snap("d", 0, 10, 2)}
	asn, err := p.Allocate(bs, 5, 1)
	require.NoError(t, err)
	checkContract(t, bs, asn, 5, 1)
	r := rates(asn)
	assert.InDelta(t, 2, r["c"], 1e-9)
	assert.InDelta(t, 2, r["a"], 1e-9)
	assert.InDelta(t, 1, r["b"], 1e-9)
	assert.Zero(t, r["d"])
}

func TestLP_PrefersFullerBatteriesOnDischarge(t *testing.T) {
	bs := []model.BatterySnapshot{snap("a", 5, 10, 5), snap("b", 9, 10, 5)}
	asn, err := NewLP().Allocate(bs, -6, 1)
	require.NoError(t, err)
	checkContract(t, bs, asn, -6, 1)
	r := rates(asn)
	assert.InDelta(t, 5, r["b"], 1e-6)
	assert.InDelta(t, 1, r["a"], 1e-6)
}

func TestLP_PartialWhenShort(t *testing.T) {
	bs := []model.BatterySnapshot{snap("a", 1, 10, 5), snap("b", 2, 10, 5)}
	asn, err := NewLP().Allocate(bs, -10, 1)
	require.NoError(t, err)
	checkContract(t, bs, asn, -10, 1)
	assert.InDelta(t, 3, total(asn), 1e-6)
}

func TestLP_SolverErrorFallsBack(t *testing.T) {
	old := lpSolve
	lpSolve = func(_, _ []float64, _ float64) ([]float64, error) { return nil, errors.New("fail") }
	defer func() { lpSolve = old }()

	bs := []model.BatterySnapshot{snap("a", 3, 10, 5), snap("b", 2, 10, 5)}
	s := NewLP()
	_, err := s.AllocateStrict(bs, -4, 1)
	require.Error(t, err)

	asn, err := s.Allocate(bs, -4, 1)
	require.NoError(t, err)
	r := rates(asn)
	assert.InDelta(t, 3, r["a"], 1e-9)
	assert.InDelta(t, 1, r["b"], 1e-9)
}

// Conservation: every strategy stays within the request and meets it fully
// whenever the site has enough headroom.
func TestStrategies_Conservation(t *testing.T) {
	bs := []model.BatterySnapshot{snap("a", 2, 10, 3), snap("b", 6, 8, 4), snap("c", 0, 5, 2)}
	for _, name := range Names() {
		s, err := New(factory.ModuleConfig{Type: name})
		require.NoError(t, err, name)
		for _, req := range []float64{-20, -5, -0.5, 0, 0.5, 4, 20} {
			asn, err := s.Allocate(bs, req, 0.5)
			require.NoError(t, err, name)
			checkContract(t, bs, asn, req, 0.5)

			var headroom float64
			for _, b := range bs {
				headroom += b.HeadroomKW(req, 0.5)
			}
			want := math.Min(math.Abs(req), headroom)
			assert.InDelta(t, want, total(asn), 1e-6, "%s req=%v", name, req)
		}
	}
}

func TestNew(t *testing.T) {
	s, err := New(factory.ModuleConfig{})
	require.NoError(t, err)
	assert.Equal(t, "greedy", s.Name())

	s, err = New(factory.ModuleConfig{Type: "priority", Conf: map[string]any{"order": []any{"b", "a"}}})
	require.NoError(t, err)
	assert.Equal(t, "priority", s.Name())

	s, err = New(factory.ModuleConfig{Type: "lp", Conf: map[string]any{"fallback": "equal"}})
	require.NoError(t, err)
	assert.Equal(t, Equal{}, s.(*LP).Fallback)

	_, err = New(factory.ModuleConfig{Type: "nope"})
	assert.Error(t, err)

	assert.Contains(t, Names(), "round_robin")
}

func TestRandom_SeededAndWithinHeadroom(t *testing.T) {
	bs := []model.BatterySnapshot{snap("a", 2, 10, 3), snap("b", 8, 8, 4), snap("c", 0, 5, 2), snap("d", 1, 6, 3)}
	first, second := NewRandom(7), NewRandom(7)
	for _, req := range []float64{4, -2, 7, -20} {
		got, err := first.Allocate(bs, req, 1)
		require.NoError(t, err)
		checkContract(t, bs, got, req, 1)
		want, err := second.Allocate(bs, req, 1)
		require.NoError(t, err)
		assert.Equal(t, want, got, "req=%v", req)
	}

	// b is full so it never charges
	for i := 0; i < 20; i++ {
		asn, err := first.Allocate(bs, 1, 1)
		require.NoError(t, err)
		for _, a := range asn {
			if a.BatteryID == "b" {
				assert.Equal(t, model.StateIdle, a.State)
			}
		}
		assert.InDelta(t, 1, total(asn), 1e-9)
	}
}

func TestRandom_ShufflesAcrossCalls(t *testing.T) {
	bs := []model.BatterySnapshot{snap("a", 0, 10, 1), snap("b", 0, 10, 1), snap("c", 0, 10, 1)}
	r := NewRandom(1)
	chosen := map[string]bool{}
	for i := 0; i < 50; i++ {
		asn, err := r.Allocate(bs, 1, 1)
		require.NoError(t, err)
		for _, a := range asn {
			if a.RateKW > 0 {
				chosen[a.BatteryID] = true
			}
		}
	}
	assert.Len(t, chosen, 3)

	s, err := New(factory.ModuleConfig{Type: "random", Conf: map[string]any{"seed": 3}})
	require.NoError(t, err)
	assert.Equal(t, "random", s.Name())
}
