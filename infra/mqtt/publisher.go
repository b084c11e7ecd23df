package mqtt

import (
	"encoding/json"
	"errors"

	coremetrics "github.com/kilianp07/essim/core/metrics"
	"github.com/kilianp07/essim/core/model"
)

// Publisher is a telemetry sink publishing every battery snapshot as JSON on
// its state topic and every site allocation on the allocation topic.
type Publisher struct {
	client *Client
	prefix string
	cfg    Config
}

// NewPublisher connects to the broker and returns a Publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	c, err := Connect(cfg, "mqtt-publisher")
	if err != nil {
		return nil, err
	}
	return newPublisher(c, cfg), nil
}

func newPublisher(c *Client, cfg Config) *Publisher {
	return &Publisher{client: c, prefix: normalizePrefix(cfg.TopicPrefix), cfg: cfg}
}

// RecordSnapshots implements metrics.TelemetrySink.
func (p *Publisher) RecordSnapshots(snaps []model.BatterySnapshot) error {
	var errs []error
	for _, sn := range snaps {
		payload, err := json.Marshal(sn)
		if err != nil {
			return err
		}
		topic := StateTopic(p.prefix, sn.SiteID, sn.BatteryID)
		if err := p.client.Publish(topic, p.cfg.qos("state"), p.cfg.Retain, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type allocationMessage struct {
	Tick        int     `json:"tick"`
	SiteID      string  `json:"site_id"`
	Strategy    string  `json:"strategy"`
	RequestedKW float64 `json:"requested_kw"`
	AllocatedKW float64 `json:"allocated_kw"`
	ShortfallKW float64 `json:"shortfall_kw"`
	Rejected    int     `json:"rejected"`
}

// RecordAllocation implements metrics.AllocationRecorder.
func (p *Publisher) RecordAllocation(rec coremetrics.AllocationRecord) error {
	payload, err := json.Marshal(allocationMessage{
		Tick:        rec.Tick,
		SiteID:      rec.SiteID,
		Strategy:    rec.Strategy,
		RequestedKW: rec.RequestedKW,
		AllocatedKW: rec.AllocatedKW,
		ShortfallKW: rec.ShortfallKW,
		Rejected:    rec.Rejected,
	})
	if err != nil {
		return err
	}
	return p.client.Publish(AllocationTopic(p.prefix, rec.SiteID), p.cfg.qos("allocation"), p.cfg.Retain, payload)
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.client.Disconnect()
	return nil
}
