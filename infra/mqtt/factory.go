package mqtt

import (
	"github.com/kilianp07/essim/core/demand"
	"github.com/kilianp07/essim/core/factory"
	coremetrics "github.com/kilianp07/essim/core/metrics"
)

func init() {
	_ = coremetrics.RegisterSink("mqtt", func(conf map[string]any) (coremetrics.TelemetrySink, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewPublisher(c)
	})
	_ = demand.Register("mqtt", func(conf map[string]any) (demand.Source, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewDemandSubscriber(c)
	})
}
