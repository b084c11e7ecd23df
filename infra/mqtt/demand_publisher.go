package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kilianp07/essim/core/demand"
)

// DemandPublisher pushes demand messages for the DemandSubscriber of another
// process.
type DemandPublisher struct {
	client *Client
	prefix string
	cfg    Config
}

// NewDemandPublisher connects to the broker and returns a DemandPublisher.
func NewDemandPublisher(cfg Config) (*DemandPublisher, error) {
	c, err := Connect(cfg, "mqtt-demand-publisher")
	if err != nil {
		return nil, err
	}
	return &DemandPublisher{client: c, prefix: normalizePrefix(cfg.TopicPrefix), cfg: cfg}, nil
}

// Publish sends the request of siteID for tick.
func (p *DemandPublisher) Publish(siteID string, tick int, powerKW float64) error {
	payload, err := json.Marshal(DemandMessage{Tick: tick, PowerKW: powerKW})
	if err != nil {
		return err
	}
	return p.client.Publish(DemandTopic(p.prefix, siteID), p.cfg.qos("demand"), p.cfg.Retain, payload)
}

// PublishSchedule publishes every tick of s for each of its sites, waiting
// interval between ticks. It returns the number of ticks published.
func (p *DemandPublisher) PublishSchedule(ctx context.Context, s *demand.Schedule, interval time.Duration) (int, error) {
	sites := s.Sites()
	for tick := 0; tick < s.Len(); tick++ {
		for _, id := range sites {
			v, err := s.RequestedPower(ctx, id, tick)
			if err != nil {
				return tick, err
			}
			if err := p.Publish(id, tick, v); err != nil {
				return tick, err
			}
		}
		if interval <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return tick + 1, ctx.Err()
		case <-time.After(interval):
		}
	}
	return s.Len(), nil
}

// Close disconnects from the broker.
func (p *DemandPublisher) Close() error {
	p.client.Disconnect()
	return nil
}
