// Package demand provides the per-site power requests fed to the decide
// phase. Positive values request charging, negative values discharging.
package demand

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Source yields the power requested from a site at a given tick.
type Source interface {
	RequestedPower(ctx context.Context, siteID string, tick int) (float64, error)
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context, siteID string, tick int) (float64, error)

// RequestedPower implements Source.
func (f Func) RequestedPower(ctx context.Context, siteID string, tick int) (float64, error) {
	return f(ctx, siteID, tick)
}

// Constant requests the same power from every site at every tick.
type Constant float64

// RequestedPower implements Source.
func (c Constant) RequestedPower(context.Context, string, int) (float64, error) {
	return float64(c), nil
}

// Schedule holds a series of requests per site indexed by tick. Sites
// without a series request nothing. Past the end of a series the request is
// zero unless Repeat is set.
type Schedule struct {
	mu     sync.RWMutex
	series map[string][]float64
	Repeat bool
}

// NewSchedule returns a Schedule built from the per-site series.
func NewSchedule(series map[string][]float64, repeat bool) *Schedule {
	s := &Schedule{series: make(map[string][]float64, len(series)), Repeat: repeat}
	for id, v := range series {
		s.series[id] = append([]float64(nil), v...)
	}
	return s
}

// Set records the request for siteID at tick, growing the series with zeros
// if needed.
func (s *Schedule) Set(siteID string, tick int, powerKW float64) error {
	if tick < 0 {
		return fmt.Errorf("demand: negative tick %d", tick)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.series == nil {
		s.series = make(map[string][]float64)
	}
	v := s.series[siteID]
	for len(v) <= tick {
		v = append(v, 0)
	}
	v[tick] = powerKW
	s.series[siteID] = v
	return nil
}

// Len returns the length of the longest series.
func (s *Schedule) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.series {
		n = max(n, len(v))
	}
	return n
}

// Sites returns the ids of the sites holding a series, sorted.
func (s *Schedule) Sites() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.series))
	for id := range s.series {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RequestedPower implements Source.
func (s *Schedule) RequestedPower(_ context.Context, siteID string, tick int) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.series[siteID]
	switch {
	case len(v) == 0 || tick < 0:
		return 0, nil
	case tick < len(v):
		return v[tick], nil
	case s.Repeat:
		return v[tick%len(v)], nil
	}
	return 0, nil
}
