package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/essim/core/factory"
	"github.com/kilianp07/essim/core/metrics"
	"github.com/kilianp07/essim/infra/logger"
	"github.com/kilianp07/essim/infra/mqtt"
)

// EnvPrefix marks the environment variables overriding file values.
// ESSIM_SIMULATION__TICKS=48 sets simulation.ticks.
const EnvPrefix = "ESSIM_"

type Config struct {
	Simulation SimulationConfig     `json:"simulation"`
	Sites      []SiteConfig         `json:"sites"`
	Demand     factory.ModuleConfig `json:"demand"`
	Telemetry  metrics.Config       `json:"telemetry"`
	Metrics    MetricsConfig        `json:"metrics"`
	MQTT       mqtt.Config          `json:"mqtt"`
	Logging    logger.Config        `json:"logging"`
}

// MetricsConfig controls the Prometheus endpoint. An empty address disables
// it.
type MetricsConfig struct {
	PrometheusAddr string `json:"prometheus_addr"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every unset value.
func (c *Config) SetDefaults() {
	c.Simulation.SetDefaults()
	for i := range c.Sites {
		c.Sites[i].SetDefaults()
	}
	if c.Demand.Type == "" {
		c.Demand.Type = "constant"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate reports every invalid section at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.Simulation.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Sites) == 0 {
		errs = append(errs, errors.New("sites: at least one site is required"))
	}
	seenSites := make(map[string]bool, len(c.Sites))
	seenBatteries := make(map[string]string)
	for _, s := range c.Sites {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
		}
		if seenSites[s.ID] {
			errs = append(errs, fmt.Errorf("sites: duplicate site %s", s.ID))
		}
		seenSites[s.ID] = true
		for _, b := range s.Batteries {
			if other, ok := seenBatteries[b.ID]; ok && b.ID != "" {
				errs = append(errs, fmt.Errorf("sites: battery %s belongs to %s and %s", b.ID, other, s.ID))
			}
			seenBatteries[b.ID] = s.ID
		}
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
