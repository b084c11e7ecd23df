package mqtt

import (
	"context"
	"encoding/json"
	"math"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/essim/core/demand"
)

// DemandMessage is the payload expected on a demand topic.
type DemandMessage struct {
	Tick    int     `json:"tick"`
	PowerKW float64 `json:"power_kw"`
}

// DemandSubscriber feeds a demand.Stream from the demand topics of every
// site. RequestedPower blocks until the value of the tick was received.
type DemandSubscriber struct {
	client *Client
	prefix string
	stream *demand.Stream
}

// NewDemandSubscriber connects to the broker and subscribes to
// <prefix>/demand/+.
func NewDemandSubscriber(cfg Config) (*DemandSubscriber, error) {
	c, err := Connect(cfg, "mqtt-demand")
	if err != nil {
		return nil, err
	}
	d := &DemandSubscriber{client: c, prefix: normalizePrefix(cfg.TopicPrefix), stream: demand.NewStream()}
	if err := c.Subscribe(DemandTopic(d.prefix, "+"), cfg.qos("demand"), d.onDemand); err != nil {
		c.Disconnect()
		return nil, err
	}
	return d, nil
}

func (d *DemandSubscriber) onDemand(_ paho.Client, msg paho.Message) {
	site, ok := demandSite(d.prefix, msg.Topic())
	if !ok {
		d.client.log.Warnf("ignoring demand on unexpected topic %s", msg.Topic())
		return
	}
	var m DemandMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		d.client.log.Errorf("failed to decode demand for %s: %v", site, err)
		return
	}
	if m.Tick < 0 || math.IsNaN(m.PowerKW) || math.IsInf(m.PowerKW, 0) {
		d.client.log.Errorf("invalid demand for %s: %+v", site, m)
		return
	}
	d.stream.Push(site, m.Tick, m.PowerKW)
}

// RequestedPower implements demand.Source.
func (d *DemandSubscriber) RequestedPower(ctx context.Context, siteID string, tick int) (float64, error) {
	return d.stream.RequestedPower(ctx, siteID, tick)
}

// Close releases blocked readers and disconnects.
func (d *DemandSubscriber) Close() error {
	d.stream.Close()
	d.client.Disconnect()
	return nil
}
