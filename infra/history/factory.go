package history

import (
	"github.com/kilianp07/essim/core/factory"
	coremetrics "github.com/kilianp07/essim/core/metrics"
	"github.com/kilianp07/essim/core/model"
)

func init() {
	for _, kind := range []string{"jsonl", "sqlite"} {
		_ = coremetrics.RegisterSink(kind, func(conf map[string]any) (coremetrics.TelemetrySink, error) {
			var c struct {
				Path string `json:"path"`
			}
			if err := factory.Decode(conf, &c); err != nil {
				return nil, err
			}
			if c.Path == "" {
				return nil, model.ConfigError("%s history: path is required", kind)
			}
			return Open(kind, c.Path)
		})
	}
}
