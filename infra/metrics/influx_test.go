package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/essim/core/metrics"
	"github.com/kilianp07/essim/core/model"
)

func captureServer(t *testing.T) (*httptest.Server, func() string) {
	t.Helper()
	var mu sync.Mutex
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		body = string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() string {
		mu.Lock()
		defer mu.Unlock()
		return strings.TrimSpace(body)
	}
}

func TestInfluxSink_RecordSnapshots(t *testing.T) {
	srv, body := captureServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sink.Epoch, sink.Step = epoch, 15*time.Minute

	sn := model.BatterySnapshot{
		SiteID: "s1", BatteryID: "b1", Tick: 4, Phase: model.PhaseUpdate, State: model.StateCharging,
		RateKW: 2.5, EnergyKWh: 3.12345, CapacityKWh: 10,
	}
	require.NoError(t, sink.RecordSnapshots([]model.BatterySnapshot{sn}))

	p := write.NewPointWithMeasurement("battery_state").
		AddTag("site_id", "s1").
		AddTag("battery_id", "b1").
		AddTag("phase", "update").
		AddTag("state", "charging").
		AddField("tick", 4).
		AddField("energy_kwh", 3.123).
		AddField("rate_kw", 2.5).
		AddField("soc", 0.312).
		AddField("clipped", false).
		SetTime(epoch.Add(time.Hour))
	assert.Equal(t, strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond)), body())
}

func TestInfluxSink_RecordAllocation(t *testing.T) {
	srv, body := captureServer(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return now }

	require.NoError(t, sink.RecordAllocation(coremetrics.AllocationRecord{
		Tick: 2, SiteID: "s1", Strategy: "equal", RequestedKW: -4, AllocatedKW: -3, ShortfallKW: 1, Rejected: 1,
	}))
	p := write.NewPointWithMeasurement("site_allocation").
		AddTag("site_id", "s1").
		AddTag("strategy", "equal").
		AddField("tick", 2).
		AddField("requested_kw", -4.0).
		AddField("allocated_kw", -3.0).
		AddField("shortfall_kw", 1.0).
		AddField("rejected", 1).
		SetTime(now)
	assert.Equal(t, strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond)), body())
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	assert.IsType(t, coremetrics.NopSink{}, sink)
	assert.True(t, called)
}

func TestSinkFactory(t *testing.T) {
	assert.Contains(t, coremetrics.SinkNames(), "influx")
	assert.Contains(t, coremetrics.SinkNames(), "prometheus")
}
