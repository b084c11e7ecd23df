package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/essim/core/metrics"
	"github.com/kilianp07/essim/core/model"
)

// PromSink exposes battery and site state as Prometheus metrics.
type PromSink struct {
	energy      *prometheus.GaugeVec
	power       *prometheus.GaugeVec
	soc         *prometheus.GaugeVec
	clipped     *prometheus.CounterVec
	requested   *prometheus.GaugeVec
	allocated   *prometheus.GaugeVec
	shortfall   *prometheus.GaugeVec
	rejections  *prometheus.CounterVec
	violations  *prometheus.CounterVec
	phaseTime   *prometheus.HistogramVec
	currentTick prometheus.Gauge
}

// NewPromSink registers the simulator metrics on the default registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on reg. A nil registerer
// defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	battery := []string{"site_id", "battery_id"}
	s := &PromSink{
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "essim_battery_energy_kwh",
			Help: "Energy stored in the battery",
		}, battery),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "essim_battery_power_kw",
			Help: "Commanded power, positive when charging",
		}, battery),
		soc: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "essim_battery_soc_ratio",
			Help: "Stored energy over capacity",
		}, battery),
		clipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essim_battery_clipped_total",
			Help: "Updates that hit the capacity or the energy floor",
		}, battery),
		requested: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "essim_site_requested_kw",
			Help: "Power requested from the site at the last decide",
		}, []string{"site_id"}),
		allocated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "essim_site_allocated_kw",
			Help: "Power allocated by the site strategy at the last decide",
		}, []string{"site_id", "strategy"}),
		shortfall: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "essim_site_shortfall_kw",
			Help: "Requested power the site could not allocate",
		}, []string{"site_id"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essim_site_rejected_assignments_total",
			Help: "Assignments rejected by a battery",
		}, []string{"site_id"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essim_constraint_violations_total",
			Help: "Battery constraint violations by kind",
		}, []string{"site_id", "constraint"}),
		phaseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "essim_phase_duration_seconds",
			Help:    "Wall time spent in an engine phase",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
		currentTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "essim_tick",
			Help: "Index of the last completed tick",
		}),
	}

	var err error
	for _, v := range []**prometheus.GaugeVec{&s.energy, &s.power, &s.soc, &s.requested, &s.allocated, &s.shortfall} {
		if *v, err = register(reg, *v); err != nil {
			return nil, err
		}
	}
	for _, v := range []**prometheus.CounterVec{&s.clipped, &s.rejections, &s.violations} {
		if *v, err = register(reg, *v); err != nil {
			return nil, err
		}
	}
	if s.phaseTime, err = register(reg, s.phaseTime); err != nil {
		return nil, err
	}
	if s.currentTick, err = register(reg, s.currentTick); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordSnapshots sets the battery gauges. Clipping is counted on update
// snapshots only.
func (s *PromSink) RecordSnapshots(snaps []model.BatterySnapshot) error {
	for _, sn := range snaps {
		power := sn.RateKW
		switch sn.State {
		case model.StateDischarging:
			power = -power
		case model.StateIdle:
			power = 0
		}
		s.energy.WithLabelValues(sn.SiteID, sn.BatteryID).Set(sn.EnergyKWh)
		s.power.WithLabelValues(sn.SiteID, sn.BatteryID).Set(power)
		s.soc.WithLabelValues(sn.SiteID, sn.BatteryID).Set(sn.StateOfCharge())
		if sn.Clipped && sn.Phase != model.PhaseDecide {
			s.clipped.WithLabelValues(sn.SiteID, sn.BatteryID).Inc()
		}
	}
	return nil
}

// RecordAllocation sets the site gauges.
func (s *PromSink) RecordAllocation(rec coremetrics.AllocationRecord) error {
	s.requested.WithLabelValues(rec.SiteID).Set(rec.RequestedKW)
	s.allocated.WithLabelValues(rec.SiteID, rec.Strategy).Set(rec.AllocatedKW)
	s.shortfall.WithLabelValues(rec.SiteID).Set(rec.ShortfallKW)
	if rec.Rejected > 0 {
		s.rejections.WithLabelValues(rec.SiteID).Add(float64(rec.Rejected))
	}
	return nil
}

// RecordTick observes the phase duration.
func (s *PromSink) RecordTick(rec coremetrics.TickRecord) error {
	s.phaseTime.WithLabelValues(string(rec.Phase)).Observe(rec.Duration.Seconds())
	if rec.Phase == model.PhaseDecide {
		s.currentTick.Set(float64(rec.Tick))
	}
	return nil
}

// RecordConstraint counts a battery constraint violation.
func (s *PromSink) RecordConstraint(siteID string, c model.Constraint) error {
	s.violations.WithLabelValues(siteID, string(c)).Inc()
	return nil
}
