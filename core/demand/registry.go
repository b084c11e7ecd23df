package demand

import (
	"github.com/kilianp07/essim/core/factory"
	"github.com/kilianp07/essim/core/model"
)

var registry = factory.NewRegistry[Source]()

func init() {
	registry.MustRegister("constant", func(conf map[string]any) (Source, error) {
		var c struct {
			PowerKW float64 `json:"power_kw"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return Constant(c.PowerKW), nil
	})
	registry.MustRegister("schedule", func(conf map[string]any) (Source, error) {
		var c struct {
			Series map[string][]float64 `json:"series"`
			Repeat bool                 `json:"repeat"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSchedule(c.Series, c.Repeat), nil
	})
	registry.MustRegister("csv", func(conf map[string]any) (Source, error) {
		var c struct {
			Path   string `json:"path"`
			Repeat bool   `json:"repeat"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, model.ConfigError("demand csv: path is required")
		}
		return LoadCSV(c.Path, c.Repeat)
	})
}

// Register adds a demand source factory identified by name.
func Register(name string, f factory.Factory[Source]) error {
	return registry.Register(name, f)
}

// New builds a demand source from its module configuration.
func New(cfg factory.ModuleConfig) (Source, error) {
	if cfg.Type == "" {
		return nil, model.ConfigError("demand type is required")
	}
	return registry.Create(cfg)
}

// Names lists the registered demand sources.
func Names() []string { return registry.Names() }
