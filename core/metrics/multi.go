package metrics

import (
	"errors"
	"io"

	"github.com/kilianp07/essim/core/model"
)

// MultiSink fans out records to several sinks. Optional recorders are only
// called on sinks implementing them. Errors are joined so one failing sink
// does not starve the others.
type MultiSink struct {
	Sinks []TelemetrySink
}

// NewMultiSink returns a MultiSink forwarding to sinks.
func NewMultiSink(sinks ...TelemetrySink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordSnapshots(snaps []model.BatterySnapshot) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordSnapshots(snaps); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordAllocation(rec AllocationRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(AllocationRecorder); ok {
			if err := r.RecordAllocation(rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordTick(rec TickRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if r, ok := s.(TickRecorder); ok {
			if err := r.RecordTick(rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink implementing io.Closer.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
