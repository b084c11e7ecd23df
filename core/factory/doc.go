// Package factory instantiates pluggable modules (strategies, demand sources,
// telemetry sinks) from configuration. A module is named by a type string and
// carries a map of raw settings which the registered factory decodes into its
// own typed struct.
//
//	reg := factory.NewRegistry[strategy.Strategy]()
//	_ = reg.Register("priority", func(conf map[string]any) (strategy.Strategy, error) {
//	    var c struct{ Order []string `json:"order"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return strategy.NewPriority(c.Order), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "priority", Conf: map[string]any{"order": []string{"b2", "b1"}}})
package factory
