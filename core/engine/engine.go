// Package engine advances a set of sites through discrete ticks. Each tick
// is an update pass applying the previous decisions followed by a decide
// pass commanding the next ones. The phase order is tracked explicitly and
// enforced.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/essim/core/demand"
	"github.com/kilianp07/essim/core/events"
	"github.com/kilianp07/essim/core/logger"
	"github.com/kilianp07/essim/core/metrics"
	"github.com/kilianp07/essim/core/model"
	"github.com/kilianp07/essim/core/site"
	"github.com/kilianp07/essim/internal/eventbus"
)

// Options configures an Engine. DeltaTimeHours and Demand are required.
type Options struct {
	DeltaTimeHours float64
	Demand         demand.Source
	Sink           metrics.TelemetrySink
	Logger         logger.Logger
	Bus            eventbus.EventBus
	// TrailingUpdate runs one extra update pass after Run so the decisions
	// of the last tick reach the batteries. Off by default: the last
	// decisions stay pending.
	TrailingUpdate bool
	// ParallelUpdate updates sites concurrently. The decide pass still
	// waits for every site.
	ParallelUpdate bool
	Now            func() time.Time
}

// Engine owns its sites and the tick state. It is safe for concurrent use
// but phases are serialised.
type Engine struct {
	mu      sync.Mutex
	sites   []*site.Site
	opts    Options
	tick    int
	phase   Phase
	halt    error
	last    []model.BatterySnapshot
	results []site.AllocationResult
	totals  map[string]*totals
	// demand already read for the current tick, kept across a canceled decide
	pending map[string]float64
}

// New validates the sites and options and returns an engine at tick 0
// awaiting its first update.
func New(sites []*site.Site, opts Options) (*Engine, error) {
	dt := opts.DeltaTimeHours
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return nil, model.ConfigError("delta time must be > 0, got %v", dt)
	}
	if opts.Demand == nil {
		return nil, model.ConfigError("demand source is required")
	}
	siteIDs := make(map[string]bool, len(sites))
	owner := make(map[string]string)
	for _, s := range sites {
		if s == nil {
			return nil, model.ConfigError("nil site")
		}
		if siteIDs[s.ID()] {
			return nil, model.ConfigError("duplicate site %s", s.ID())
		}
		siteIDs[s.ID()] = true
		for _, b := range s.Batteries() {
			if other, ok := owner[b.ID()]; ok {
				return nil, model.ConfigError("battery %s belongs to sites %s and %s", b.ID(), other, s.ID())
			}
			owner[b.ID()] = s.ID()
		}
	}
	if opts.Sink == nil {
		opts.Sink = metrics.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{
		sites:  append([]*site.Site(nil), sites...),
		opts:   opts,
		totals: make(map[string]*totals, len(sites)),
	}
	for _, s := range sites {
		e.totals[s.ID()] = &totals{}
	}
	return e, nil
}

// Tick returns the index of the tick in progress.
func (e *Engine) Tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Err returns the error that halted the engine, if any.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halt
}

// Sites returns the sites in engine order.
func (e *Engine) Sites() []*site.Site {
	return append([]*site.Site(nil), e.sites...)
}

// Snapshots returns the snapshots emitted by the last completed phase.
func (e *Engine) Snapshots() []model.BatterySnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.BatterySnapshot(nil), e.last...)
}

// Results returns the allocation results of the last decide pass.
func (e *Engine) Results() []site.AllocationResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]site.AllocationResult(nil), e.results...)
}

// UpdatePhase advances every battery by one time step using the commands of
// the previous tick.
func (e *Engine) UpdatePhase(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.expect(AwaitingUpdate); err != nil {
		return err
	}
	if err := e.update(ctx, model.PhaseUpdate); err != nil {
		return err
	}
	e.phase = AwaitingDecide
	return nil
}

// DecidePhase reads the demand of every site then lets each site command
// its batteries. A canceled context while reading demand leaves the engine
// in AwaitingDecide so the tick can be resumed; requests already read are
// reused on the retry. Contract violations and
// other demand failures halt the engine.
func (e *Engine) DecidePhase(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.expect(AwaitingDecide); err != nil {
		return err
	}
	start := e.opts.Now()
	dt := e.opts.DeltaTimeHours

	requests := make([]float64, len(e.sites))
	for i, s := range e.sites {
		if req, ok := e.pending[s.ID()]; ok {
			requests[i] = req
			continue
		}
		req, err := e.opts.Demand.RequestedPower(ctx, s.ID(), e.tick)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return fmt.Errorf("tick %d: demand for site %s: %w", e.tick, s.ID(), err)
			}
			return e.stop(s.ID(), fmt.Errorf("demand: %w", err))
		}
		if math.IsNaN(req) || math.IsInf(req, 0) {
			return e.stop(s.ID(), fmt.Errorf("demand: invalid request %v", req))
		}
		requests[i] = req
		if e.pending == nil {
			e.pending = make(map[string]float64, len(e.sites))
		}
		e.pending[s.ID()] = req
	}
	e.pending = nil

	results := make([]site.AllocationResult, 0, len(e.sites))
	for i, s := range e.sites {
		res, err := s.Decide(requests[i], dt)
		if err != nil {
			return e.stop(s.ID(), err)
		}
		e.observe(s, res)
		results = append(results, res)
	}
	e.results = results
	e.emit(model.PhaseDecide, start)
	e.opts.Logger.Debugf("tick %d decided for %d sites", e.tick, len(e.sites))
	e.tick++
	e.phase = AwaitingUpdate
	return nil
}

// Step completes the current tick.
func (e *Engine) Step(ctx context.Context) error {
	if e.Phase() == AwaitingUpdate {
		if err := e.UpdatePhase(ctx); err != nil {
			return err
		}
	}
	return e.DecidePhase(ctx)
}

// Run executes n ticks. ctx is checked between ticks; a tick in progress is
// completed. When TrailingUpdate is set a final update pass follows and the
// engine moves to Finished.
func (e *Engine) Run(ctx context.Context, n int) error {
	if n < 0 {
		return model.ConfigError("tick count must be >= 0, got %d", n)
	}
	e.opts.Logger.Infof("running %d ticks of %.3fh over %d sites", n, e.opts.DeltaTimeHours, len(e.sites))
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.Step(ctx); err != nil {
			return err
		}
	}
	if e.opts.TrailingUpdate {
		return e.Finish(ctx)
	}
	return nil
}

// Finish applies the decisions of the last tick with one more update pass
// and closes the run. Its snapshots carry the final phase and the tick index
// is left unchanged.
func (e *Engine) Finish(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.expect(AwaitingUpdate); err != nil {
		return err
	}
	if err := e.update(ctx, model.PhaseFinal); err != nil {
		return err
	}
	e.phase = Finished
	return nil
}

func (e *Engine) expect(p Phase) error {
	switch {
	case e.phase == Halted:
		return fmt.Errorf("%w: %w", ErrHalted, e.halt)
	case e.phase != p:
		return fmt.Errorf("%w: want %s, engine is %s", ErrPhaseOrder, p, e.phase)
	}
	return nil
}

func (e *Engine) update(_ context.Context, phase model.Phase) error {
	start := e.opts.Now()
	dt := e.opts.DeltaTimeHours
	reports := make([]site.UpdateReport, len(e.sites))
	errs := make([]error, len(e.sites))
	if e.opts.ParallelUpdate {
		var g errgroup.Group
		for i, s := range e.sites {
			g.Go(func() error {
				reports[i], errs[i] = s.Update(dt)
				return errs[i]
			})
		}
		_ = g.Wait()
	} else {
		for i, s := range e.sites {
			reports[i], errs[i] = s.Update(dt)
		}
	}
	for i, err := range errs {
		if err != nil {
			return e.stop(e.sites[i].ID(), err)
		}
	}
	for _, rep := range reports {
		t := e.totals[rep.SiteID]
		t.chargedKWh += rep.ChargedKWh
		t.dischargedKWh += rep.DischargedKWh
		t.clipEvents += len(rep.Clipped)
		if len(rep.Clipped) > 0 {
			e.opts.Logger.Debugw("batteries clipped", map[string]any{"tick": e.tick, "site": rep.SiteID, "batteries": rep.Clipped})
		}
	}
	e.emit(phase, start)
	return nil
}

func (e *Engine) observe(s *site.Site, res site.AllocationResult) {
	dt := e.opts.DeltaTimeHours
	t := e.totals[s.ID()]
	t.ticks++
	t.requestedKWh += math.Abs(res.RequestedKW) * dt
	t.allocatedKWh += math.Abs(res.AllocatedKW) * dt
	t.shortfallKWh += res.ShortfallKW * dt
	t.shortfalls = append(t.shortfalls, res.ShortfallKW)

	failed := res.Failed()
	t.rejections += len(failed)
	for _, o := range failed {
		e.opts.Logger.Warnf("tick %d site %s: %v", e.tick, s.ID(), o.Err)
		e.publish(events.ConstraintEvent{Tick: e.tick, SiteID: s.ID(), BatteryID: o.BatteryID, Err: o.Err})
	}
	if res.Partial() {
		t.partialTicks++
		e.opts.Logger.Infof("tick %d site %s: allocated %.3f of %.3f kW", e.tick, s.ID(), res.AllocatedKW, res.RequestedKW)
	}
	if r, ok := e.opts.Sink.(metrics.AllocationRecorder); ok {
		rec := metrics.AllocationRecord{
			Tick:        e.tick,
			SiteID:      s.ID(),
			Strategy:    s.Strategy().Name(),
			RequestedKW: res.RequestedKW,
			AllocatedKW: res.AllocatedKW,
			ShortfallKW: res.ShortfallKW,
			Rejected:    len(failed),
			Time:        e.opts.Now(),
		}
		if err := r.RecordAllocation(rec); err != nil {
			e.opts.Logger.Errorf("allocation metrics error: %v", err)
		}
	}
	e.publish(events.AllocationEvent{
		Tick:        e.tick,
		SiteID:      s.ID(),
		RequestedKW: res.RequestedKW,
		AllocatedKW: res.AllocatedKW,
		ShortfallKW: res.ShortfallKW,
	})
}

func (e *Engine) emit(phase model.Phase, start time.Time) {
	snaps := make([]model.BatterySnapshot, 0, len(e.last))
	for _, s := range e.sites {
		for _, sn := range s.Snapshots() {
			sn.Tick = e.tick
			sn.Phase = phase
			snaps = append(snaps, sn)
		}
	}
	e.last = snaps
	if err := e.opts.Sink.RecordSnapshots(append([]model.BatterySnapshot(nil), snaps...)); err != nil {
		e.opts.Logger.Errorf("snapshot metrics error: %v", err)
	}
	elapsed := e.opts.Now().Sub(start)
	if r, ok := e.opts.Sink.(metrics.TickRecorder); ok {
		if err := r.RecordTick(metrics.TickRecord{Tick: e.tick, Phase: phase, Duration: elapsed, Time: e.opts.Now()}); err != nil {
			e.opts.Logger.Errorf("tick metrics error: %v", err)
		}
	}
	e.publish(events.PhaseEvent{Tick: e.tick, Phase: phase, Duration: elapsed})
}

func (e *Engine) stop(siteID string, err error) error {
	terr := &TickError{Tick: e.tick, SiteID: siteID, Err: err}
	e.halt = terr
	e.phase = Halted
	e.opts.Logger.Errorf("engine halted: %v", terr)
	e.publish(events.HaltEvent{Tick: e.tick, SiteID: siteID, Err: err})
	return terr
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.opts.Bus != nil {
		e.opts.Bus.Publish(ev)
	}
}
