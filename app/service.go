// Package app wires the configuration into a running simulation.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kilianp07/essim/config"
	"github.com/kilianp07/essim/core/demand"
	"github.com/kilianp07/essim/core/engine"
	"github.com/kilianp07/essim/core/factory"
	coremetrics "github.com/kilianp07/essim/core/metrics"
	"github.com/kilianp07/essim/core/model"
	"github.com/kilianp07/essim/core/site"
	"github.com/kilianp07/essim/core/strategy"
	"github.com/kilianp07/essim/infra/logger"
	"github.com/kilianp07/essim/infra/metrics"
	"github.com/kilianp07/essim/infra/mqtt"
	"github.com/kilianp07/essim/internal/eventbus"

	// Register the infrastructure modules.
	_ "github.com/kilianp07/essim/app/plugins"
)

// Service owns an engine and the infrastructure it reports to.
type Service struct {
	Engine *engine.Engine
	cfg    *config.Config
	demand demand.Source
	sink   coremetrics.TelemetrySink
	bus    *eventbus.Bus
	log    logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Configure(cfg.Logging); err != nil {
		return nil, err
	}
	logg := logger.New("service")

	sites, err := BuildSites(cfg.Sites)
	if err != nil {
		return nil, err
	}
	src, err := demand.New(withMQTT(cfg.Demand, cfg.MQTT))
	if err != nil {
		return nil, fmt.Errorf("demand: %w", err)
	}
	sinkCfgs := make([]factory.ModuleConfig, len(cfg.Telemetry.Sinks))
	for i, m := range cfg.Telemetry.Sinks {
		sinkCfgs[i] = withMQTT(m, cfg.MQTT)
	}
	sink, err := coremetrics.NewSink(sinkCfgs)
	if err != nil {
		closeQuietly(src)
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	bus := eventbus.New()
	eng, err := engine.New(sites, engine.Options{
		DeltaTimeHours: cfg.Simulation.DeltaTimeHours,
		Demand:         src,
		Sink:           sink,
		Logger:         logger.New("engine"),
		Bus:            bus,
		TrailingUpdate: cfg.Simulation.TrailingUpdate,
		ParallelUpdate: cfg.Simulation.ParallelUpdate,
	})
	if err != nil {
		closeQuietly(src)
		closeQuietly(sink)
		return nil, err
	}
	return &Service{Engine: eng, cfg: cfg, demand: src, sink: sink, bus: bus, log: logg}, nil
}

// BuildSites instantiates the configured sites with their batteries and
// strategies.
func BuildSites(cfgs []config.SiteConfig) ([]*site.Site, error) {
	sites := make([]*site.Site, 0, len(cfgs))
	for _, sc := range cfgs {
		strat, err := strategy.New(sc.Strategy)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", sc.ID, err)
		}
		batteries := make([]*model.Battery, 0, len(sc.Batteries))
		for _, bc := range sc.Batteries {
			b, err := model.NewBattery(bc.Params())
			if err != nil {
				return nil, fmt.Errorf("site %s: %w", sc.ID, err)
			}
			batteries = append(batteries, b)
		}
		s, err := site.New(sc.ID, sc.Location, batteries, strat)
		if err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, nil
}

// Run executes ticks ticks, or the configured count when ticks is negative,
// and returns the run summary. A halted run returns its summary along with
// the error. A Service runs once.
func (s *Service) Run(ctx context.Context, ticks int) (engine.Summary, error) {
	if ticks < 0 {
		ticks = s.cfg.Simulation.Ticks
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(runCtx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	var collectors []<-chan struct{}
	for _, rec := range constraintRecorders(s.sink) {
		collectors = append(collectors, metrics.StartEventCollector(runCtx, s.bus, rec))
	}

	err := s.Engine.Run(ctx, ticks)
	// Closing the bus lets the collectors drain what was published.
	s.bus.Close()
	for _, done := range collectors {
		<-done
	}
	sum := s.Engine.Summary()
	for _, st := range sum.Sites {
		s.log.Infof("site %s: %d ticks, shortfall %.3f kWh over %d partial ticks, %d rejections",
			st.SiteID, st.Ticks, st.ShortfallKWh, st.PartialTicks, st.Rejections)
	}
	if err != nil {
		s.log.Errorf("run stopped at tick %d: %v", s.Engine.Tick(), err)
	}
	return sum, err
}

// Close releases the demand source, the sinks and the event bus.
func (s *Service) Close() error {
	var errs []error
	if c, ok := s.demand.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.sink.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	s.bus.Close()
	return errors.Join(errs...)
}

func constraintRecorders(sink coremetrics.TelemetrySink) []metrics.ConstraintRecorder {
	var out []metrics.ConstraintRecorder
	sinks := []coremetrics.TelemetrySink{sink}
	if m, ok := sink.(*coremetrics.MultiSink); ok {
		sinks = m.Sinks
	}
	for _, s := range sinks {
		if rec, ok := s.(metrics.ConstraintRecorder); ok {
			out = append(out, rec)
		}
	}
	return out
}

// withMQTT gives mqtt modules without their own settings the shared mqtt
// section.
func withMQTT(m factory.ModuleConfig, c mqtt.Config) factory.ModuleConfig {
	if m.Type != "mqtt" || len(m.Conf) > 0 {
		return m
	}
	qos := make(map[string]any, len(c.QoS))
	for k, v := range c.QoS {
		qos[k] = v
	}
	m.Conf = map[string]any{
		"broker":       c.Broker,
		"client_id":    c.ClientID,
		"username":     c.Username,
		"password":     c.Password,
		"topic_prefix": c.TopicPrefix,
		"retain":       c.Retain,
		"use_tls":      c.UseTLS,
		"client_cert":  c.ClientCert,
		"client_key":   c.ClientKey,
		"ca_bundle":    c.CABundle,
		"qos":          qos,
		"lwt_topic":    c.LWTTopic,
		"lwt_payload":  c.LWTPayload,
		"lwt_qos":      c.LWTQoS,
		"lwt_retain":   c.LWTRetain,
		"max_retries":  c.MaxRetries,
		"backoff_ms":   c.BackoffMS,
	}
	return m
}

func closeQuietly(v any) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
