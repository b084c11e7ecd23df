package strategy

import (
	"math/rand/v2"

	"github.com/kilianp07/essim/core/factory"
)

var registry = factory.NewRegistry[Strategy]()

func init() {
	registry.MustRegister("greedy", func(map[string]any) (Strategy, error) { return Greedy{}, nil })
	registry.MustRegister("lowest_to_highest", func(map[string]any) (Strategy, error) { return LowestToHighest{}, nil })
	registry.MustRegister("equal", func(map[string]any) (Strategy, error) { return Equal{}, nil })
	registry.MustRegister("proportional", func(map[string]any) (Strategy, error) { return Proportional{}, nil })
	registry.MustRegister("round_robin", func(map[string]any) (Strategy, error) { return NewRoundRobin(), nil })
	registry.MustRegister("priority", func(conf map[string]any) (Strategy, error) {
		var c struct {
			Order []string `json:"order"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewPriority(c.Order), nil
	})
	registry.MustRegister("random", func(conf map[string]any) (Strategy, error) {
		var c struct {
			Seed *uint64 `json:"seed"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Seed == nil {
			return NewRandom(rand.Uint64()), nil
		}
		return NewRandom(*c.Seed), nil
	})
	registry.MustRegister("lp", func(conf map[string]any) (Strategy, error) {
		var c struct {
			Fallback string `json:"fallback"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		s := NewLP()
		if c.Fallback != "" && c.Fallback != "lp" {
			fb, err := registry.Create(factory.ModuleConfig{Type: c.Fallback})
			if err != nil {
				return nil, err
			}
			s.Fallback = fb
		}
		return s, nil
	})
}

// Register adds a strategy factory identified by name.
func Register(name string, f factory.Factory[Strategy]) error {
	return registry.Register(name, f)
}

// New builds a strategy from its module configuration. An empty type selects
// the greedy reference strategy.
func New(cfg factory.ModuleConfig) (Strategy, error) {
	if cfg.Type == "" {
		cfg.Type = "greedy"
	}
	return registry.Create(cfg)
}

// Names lists the registered strategies.
func Names() []string { return registry.Names() }
