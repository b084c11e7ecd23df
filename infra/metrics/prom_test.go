package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/essim/core/events"
	coremetrics "github.com/kilianp07/essim/core/metrics"
	"github.com/kilianp07/essim/core/model"
	"github.com/kilianp07/essim/internal/eventbus"
)

func TestPromSink_RecordSnapshots(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	snaps := []model.BatterySnapshot{
		{SiteID: "s1", BatteryID: "b1", Phase: model.PhaseUpdate, State: model.StateDischarging, RateKW: 2, EnergyKWh: 4, CapacityKWh: 10, Clipped: true},
		{SiteID: "s1", BatteryID: "b2", Phase: model.PhaseUpdate, State: model.StateIdle, RateKW: 0, EnergyKWh: 8, CapacityKWh: 10},
	}
	require.NoError(t, sink.RecordSnapshots(snaps))
	snaps[0].Phase = model.PhaseDecide
	require.NoError(t, sink.RecordSnapshots(snaps[:1]))

	assert.Equal(t, 4.0, testutil.ToFloat64(sink.energy.WithLabelValues("s1", "b1")))
	assert.Equal(t, -2.0, testutil.ToFloat64(sink.power.WithLabelValues("s1", "b1")))
	assert.Equal(t, 0.8, testutil.ToFloat64(sink.soc.WithLabelValues("s1", "b2")))

	expected := `
# HELP essim_battery_clipped_total Updates that hit the capacity or the energy floor
# TYPE essim_battery_clipped_total counter
essim_battery_clipped_total{battery_id="b1",site_id="s1"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(sink.clipped, strings.NewReader(expected)))
}

func TestPromSink_RecordAllocationAndTick(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	require.NoError(t, sink.RecordAllocation(coremetrics.AllocationRecord{
		SiteID: "s1", Strategy: "greedy", RequestedKW: -10, AllocatedKW: -5, ShortfallKW: 5, Rejected: 2,
	}))
	require.NoError(t, sink.RecordTick(coremetrics.TickRecord{Tick: 7, Phase: model.PhaseDecide, Duration: time.Millisecond}))

	assert.Equal(t, -10.0, testutil.ToFloat64(sink.requested.WithLabelValues("s1")))
	assert.Equal(t, -5.0, testutil.ToFloat64(sink.allocated.WithLabelValues("s1", "greedy")))
	assert.Equal(t, 5.0, testutil.ToFloat64(sink.shortfall.WithLabelValues("s1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.rejections.WithLabelValues("s1")))
	assert.Equal(t, 7.0, testutil.ToFloat64(sink.currentTick))
	assert.Equal(t, 1, testutil.CollectAndCount(sink.phaseTime))
}

func TestPromSink_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	b, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, a.RecordConstraint("s1", model.ConstraintFull))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.violations.WithLabelValues("s1", "full")))
}

func TestEventCollector(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)
	bus := eventbus.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, sink)

	bus.Publish(events.ConstraintEvent{SiteID: "s1", BatteryID: "b1",
		Err: &model.ConstraintError{BatteryID: "b1", Constraint: model.ConstraintHeadroom}})
	bus.Publish(events.PhaseEvent{Tick: 1})
	bus.Close()
	<-done
	cancel()

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.violations.WithLabelValues("s1", "headroom")))
}

func TestPromHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	require.NoError(t, sink.RecordSnapshots([]model.BatterySnapshot{{SiteID: "s1", BatteryID: "b1", EnergyKWh: 3}}))

	srv := httptest.NewServer(NewPromHandler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `essim_battery_energy_kwh{battery_id="b1",site_id="s1"} 3`)
}
