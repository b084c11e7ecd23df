package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/essim/core/metrics"
	"github.com/kilianp07/essim/core/model"
	"github.com/kilianp07/essim/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket receiving the points.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes battery snapshots and site allocations to InfluxDB.
// Points are stamped with the wall clock unless Epoch is set, in which case
// the simulated time Epoch + tick*Step is used.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger

	Epoch time.Time
	Step  time.Duration
	now   func() time.Time
}

// NewInfluxSink creates a sink for the given endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
		now:      time.Now,
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink when the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.TelemetrySink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) pointTime(tick int) time.Time {
	if s.Epoch.IsZero() {
		return s.now()
	}
	return s.Epoch.Add(time.Duration(tick) * s.Step)
}

// RecordSnapshots writes one battery_state point per snapshot.
func (s *InfluxSink) RecordSnapshots(snaps []model.BatterySnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, 0, len(snaps))
	for _, sn := range snaps {
		points = append(points, snapshotPoint(sn, s.pointTime(sn.Tick)))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

func snapshotPoint(sn model.BatterySnapshot, ts time.Time) *write.Point {
	return write.NewPointWithMeasurement("battery_state").
		AddTag("site_id", sn.SiteID).
		AddTag("battery_id", sn.BatteryID).
		AddTag("phase", string(sn.Phase)).
		AddTag("state", sn.State.String()).
		AddField("tick", sn.Tick).
		AddField("energy_kwh", round3(sn.EnergyKWh)).
		AddField("rate_kw", round3(sn.RateKW)).
		AddField("soc", round3(sn.StateOfCharge())).
		AddField("clipped", sn.Clipped).
		SetTime(ts)
}

// RecordAllocation writes a site_allocation point.
func (s *InfluxSink) RecordAllocation(rec coremetrics.AllocationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("site_allocation").
		AddTag("site_id", rec.SiteID).
		AddTag("strategy", rec.Strategy).
		AddField("tick", rec.Tick).
		AddField("requested_kw", round3(rec.RequestedKW)).
		AddField("allocated_kw", round3(rec.AllocatedKW)).
		AddField("shortfall_kw", round3(rec.ShortfallKW)).
		AddField("rejected", rec.Rejected).
		SetTime(s.pointTime(rec.Tick))
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
