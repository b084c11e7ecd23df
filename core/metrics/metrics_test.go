package metrics

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/essim/core/factory"
	"github.com/kilianp07/essim/core/model"
)

type recordSink struct {
	snaps  int
	allocs int
	closed bool
	err    error
}

func (r *recordSink) RecordSnapshots([]model.BatterySnapshot) error {
	r.snaps++
	return r.err
}

func (r *recordSink) RecordAllocation(AllocationRecord) error {
	r.allocs++
	return nil
}

func (r *recordSink) Close() error {
	r.closed = true
	return nil
}

type snapOnly struct{ count int }

func (s *snapOnly) RecordSnapshots([]model.BatterySnapshot) error {
	s.count++
	return nil
}

func TestMultiSink_ForwardsToCapableSinks(t *testing.T) {
	full := &recordSink{}
	plain := &snapOnly{}
	m := NewMultiSink(full, plain)

	require.NoError(t, m.RecordSnapshots(nil))
	require.NoError(t, m.RecordAllocation(AllocationRecord{SiteID: "s"}))
	require.NoError(t, m.RecordTick(TickRecord{Tick: 1}))
	require.NoError(t, m.Close())

	assert.Equal(t, 1, full.snaps)
	assert.Equal(t, 1, full.allocs)
	assert.True(t, full.closed)
	assert.Equal(t, 1, plain.count)
}

func TestMultiSink_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := &recordSink{err: boom}
	ok := &snapOnly{}
	err := NewMultiSink(failing, ok).RecordSnapshots(nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ok.count)
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	s, err = NewSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	m, ok := s.(*MultiSink)
	require.True(t, ok)
	assert.Len(t, m.Sinks, 2)

	_, err = NewSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)
	assert.Contains(t, SinkNames(), "nop")
}

func TestNewSink_ClosesOpenedSinksOnFailure(t *testing.T) {
	opened := &recordSink{}
	require.NoError(t, RegisterSink("test-record", func(map[string]any) (TelemetrySink, error) { return opened, nil }))

	_, err := NewSink([]factory.ModuleConfig{{Type: "test-record"}, {Type: "missing"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink 1 (missing)")
	assert.True(t, opened.closed)
}

func TestConfigDecode(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte("sinks:\n  - type: nop\n  - type: nop\n"), &cfg))
	assert.Len(t, cfg.Sinks, 2)

	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"missing"}]}`), &cfg))
	_, err := NewSink(cfg.Sinks)
	assert.Error(t, err)
}
