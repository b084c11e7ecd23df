package scenarios

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/essim/core/demand"
	"github.com/kilianp07/essim/core/engine"
	"github.com/kilianp07/essim/core/factory"
	coremetrics "github.com/kilianp07/essim/core/metrics"
	"github.com/kilianp07/essim/core/model"
	"github.com/kilianp07/essim/core/site"
	"github.com/kilianp07/essim/core/strategy"
	"github.com/kilianp07/essim/infra/logger"
	"github.com/kilianp07/essim/infra/metrics"
)

const tolerance = 1e-6

// Outcome is what a scenario run produced.
type Outcome struct {
	Engine    *engine.Engine
	Summary   engine.Summary
	Results   []site.AllocationResult
	Snapshots []model.BatterySnapshot
	Clipped   []string
	Registry  *prometheus.Registry
	Err       error
}

// recorder keeps the ids of batteries clipped during any update pass.
type recorder struct {
	coremetrics.MultiSink
	clipped map[string]bool
}

func (r *recorder) RecordSnapshots(snaps []model.BatterySnapshot) error {
	for _, sn := range snaps {
		if sn.Clipped && sn.Phase != model.PhaseDecide {
			r.clipped[sn.BatteryID] = true
		}
	}
	return r.MultiSink.RecordSnapshots(snaps)
}

// Run builds a fresh engine for sc, runs it and returns the outcome. Each
// run owns its state and an isolated Prometheus registry, so scenarios can
// run in parallel.
func Run(ctx context.Context, sc *Scenario) (*Outcome, error) {
	sites := make([]*site.Site, 0, len(sc.Sites))
	for _, sd := range sc.Sites {
		strat, err := strategy.New(factory.ModuleConfig{Type: sd.Strategy, Conf: sd.Conf})
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", sd.ID, err)
		}
		batteries := make([]*model.Battery, 0, len(sd.Batteries))
		for _, bd := range sd.Batteries {
			b, err := model.NewBattery(bd.ToModel())
			if err != nil {
				return nil, err
			}
			batteries = append(batteries, b)
		}
		s, err := site.New(sd.ID, "", batteries, strat)
		if err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}

	reg := prometheus.NewRegistry()
	prom, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		return nil, fmt.Errorf("prom sink: %w", err)
	}
	rec := &recorder{MultiSink: coremetrics.MultiSink{Sinks: []coremetrics.TelemetrySink{prom}}, clipped: map[string]bool{}}
	eng, err := engine.New(sites, engine.Options{
		DeltaTimeHours: sc.DeltaTimeHours,
		Demand:         demand.NewSchedule(sc.Demand, sc.RepeatDemand),
		Sink:           rec,
		Logger:         logger.NopLogger{},
		TrailingUpdate: sc.TrailingUpdate,
		ParallelUpdate: sc.ParallelUpdate,
	})
	if err != nil {
		return nil, err
	}
	out := &Outcome{Engine: eng, Registry: reg}
	out.Err = eng.Run(ctx, sc.Ticks)
	out.Summary = eng.Summary()
	out.Results = eng.Results()
	out.Snapshots = eng.Snapshots()
	for id := range rec.clipped {
		out.Clipped = append(out.Clipped, id)
	}
	slices.Sort(out.Clipped)
	return out, nil
}

// Verify compares an outcome with the expectations of sc and returns one
// message per mismatch.
func Verify(sc *Scenario, out *Outcome) []string {
	var diffs []string
	mismatch := func(format string, args ...any) { diffs = append(diffs, fmt.Sprintf(format, args...)) }
	exp := sc.Expected

	if out.Err != nil {
		mismatch("run failed: %v", out.Err)
	}
	if exp.Phase != "" && out.Summary.Phase != exp.Phase {
		mismatch("phase: got %s, want %s", out.Summary.Phase, exp.Phase)
	}
	snaps := make(map[string]model.BatterySnapshot, len(out.Snapshots))
	for _, sn := range out.Snapshots {
		snaps[sn.BatteryID] = sn
	}
	for id, want := range exp.Energy {
		sn, ok := snaps[id]
		if !ok {
			mismatch("battery %s: not found", id)
			continue
		}
		if math.Abs(sn.EnergyKWh-want) > tolerance {
			mismatch("battery %s energy: got %.6f, want %.6f", id, sn.EnergyKWh, want)
		}
	}
	for id, want := range exp.States {
		if sn := snaps[id]; sn.State.String() != want {
			mismatch("battery %s state: got %s, want %s", id, sn.State, want)
		}
	}

	results := make(map[string]site.AllocationResult, len(out.Results))
	for _, r := range out.Results {
		results[r.SiteID] = r
	}
	for id, want := range exp.Allocation {
		r, ok := results[id]
		if !ok {
			mismatch("site %s: no allocation", id)
			continue
		}
		if want.AllocatedKW != nil && math.Abs(r.AllocatedKW-*want.AllocatedKW) > tolerance {
			mismatch("site %s allocated: got %.6f, want %.6f", id, r.AllocatedKW, *want.AllocatedKW)
		}
		if want.ShortfallKW != nil && math.Abs(r.ShortfallKW-*want.ShortfallKW) > tolerance {
			mismatch("site %s shortfall: got %.6f, want %.6f", id, r.ShortfallKW, *want.ShortfallKW)
		}
		rates := make(map[string]float64, len(r.Outcomes))
		for _, o := range r.Outcomes {
			rates[o.BatteryID] = o.RateKW
		}
		for bid, rate := range want.Rates {
			if math.Abs(rates[bid]-rate) > tolerance {
				mismatch("site %s battery %s rate: got %.6f, want %.6f", id, bid, rates[bid], rate)
			}
		}
	}

	totals := make(map[string]engine.SiteSummary, len(out.Summary.Sites))
	for _, s := range out.Summary.Sites {
		totals[s.SiteID] = s
	}
	for id, want := range exp.Totals {
		got := totals[id]
		if want.ShortfallKWh != nil && math.Abs(got.ShortfallKWh-*want.ShortfallKWh) > tolerance {
			mismatch("site %s shortfall total: got %.6f, want %.6f", id, got.ShortfallKWh, *want.ShortfallKWh)
		}
		if want.PartialTicks != nil && got.PartialTicks != *want.PartialTicks {
			mismatch("site %s partial ticks: got %d, want %d", id, got.PartialTicks, *want.PartialTicks)
		}
	}
	if exp.Clipped != nil && !slices.Equal(out.Clipped, exp.Clipped) {
		mismatch("clipped: got %v, want %v", out.Clipped, exp.Clipped)
	}
	return diffs
}
