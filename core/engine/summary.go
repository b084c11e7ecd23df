package engine

import (
	"gonum.org/v1/gonum/stat"
)

type totals struct {
	ticks         int
	requestedKWh  float64
	allocatedKWh  float64
	shortfallKWh  float64
	partialTicks  int
	rejections    int
	chargedKWh    float64
	dischargedKWh float64
	clipEvents    int
	shortfalls    []float64
}

// SiteSummary aggregates a site over the ticks run so far. Requested and
// allocated energies are magnitudes over one time step per tick.
type SiteSummary struct {
	SiteID            string  `json:"site_id"`
	Ticks             int     `json:"ticks"`
	RequestedKWh      float64 `json:"requested_kwh"`
	AllocatedKWh      float64 `json:"allocated_kwh"`
	ShortfallKWh      float64 `json:"shortfall_kwh"`
	PartialTicks      int     `json:"partial_ticks"`
	Rejections        int     `json:"rejections"`
	ChargedKWh        float64 `json:"charged_kwh"`
	DischargedKWh     float64 `json:"discharged_kwh"`
	ClipEvents        int     `json:"clip_events"`
	MeanShortfallKW   float64 `json:"mean_shortfall_kw"`
	StdDevShortfallKW float64 `json:"stddev_shortfall_kw"`
	EnergyKWh         float64 `json:"energy_kwh"`
	CapacityKWh       float64 `json:"capacity_kwh"`
}

// Summary describes a run.
type Summary struct {
	Ticks int           `json:"ticks"`
	Phase string        `json:"phase"`
	Sites []SiteSummary `json:"sites"`
}

// Summary returns per-site totals in site order.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := Summary{Ticks: e.tick, Phase: e.phase.String(), Sites: make([]SiteSummary, 0, len(e.sites))}
	for _, s := range e.sites {
		t := e.totals[s.ID()]
		sum := SiteSummary{
			SiteID:        s.ID(),
			Ticks:         t.ticks,
			RequestedKWh:  t.requestedKWh,
			AllocatedKWh:  t.allocatedKWh,
			ShortfallKWh:  t.shortfallKWh,
			PartialTicks:  t.partialTicks,
			Rejections:    t.rejections,
			ChargedKWh:    t.chargedKWh,
			DischargedKWh: t.dischargedKWh,
			ClipEvents:    t.clipEvents,
			EnergyKWh:     s.EnergyKWh(),
			CapacityKWh:   s.EnergyCapacityKWh(),
		}
		switch n := len(t.shortfalls); {
		case n == 1:
			sum.MeanShortfallKW = t.shortfalls[0]
		case n > 1:
			sum.MeanShortfallKW, sum.StdDevShortfallKW = stat.MeanStdDev(t.shortfalls, nil)
		}
		out.Sites = append(out.Sites, sum)
	}
	return out
}
