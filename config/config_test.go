package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `simulation:
  delta_time_hours: 0.5
  ticks: 12
  trailing_update: true
sites:
  - id: paris
    location: "48.85,2.35"
    strategy:
      type: priority
      conf:
        order: [b2, b1]
    batteries:
      - id: b1
        capacity_kwh: 10
        max_rate_kw: 5
        initial_energy_kwh: 0
      - id: b2
        preset: grid
demand:
  type: schedule
  conf:
    series:
      paris: [5, -5]
telemetry:
  sinks:
    - type: nop
metrics:
  prometheus_addr: ":9100"
mqtt:
  broker: "tcp://localhost:1883"
  topic_prefix: fleet
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Simulation.DeltaTimeHours)
	assert.Equal(t, 12, cfg.Simulation.Ticks)
	assert.True(t, cfg.Simulation.TrailingUpdate)
	require.Len(t, cfg.Sites, 1)
	site := cfg.Sites[0]
	assert.Equal(t, "priority", site.Strategy.Type)
	assert.Equal(t, []any{"b2", "b1"}, site.Strategy.Conf["order"])

	p := site.Batteries[0].Params()
	assert.Equal(t, 10.0, p.CapacityKWh)
	assert.Equal(t, 0.0, p.InitialEnergyKWh)
	grid := site.Batteries[1].Params()
	assert.Equal(t, 5000.0, grid.CapacityKWh)
	assert.Equal(t, 2500.0, grid.MaxRateKW)
	assert.Equal(t, 5000.0, grid.InitialEnergyKWh)

	assert.Equal(t, "schedule", cfg.Demand.Type)
	assert.Len(t, cfg.Telemetry.Sinks, 1)
	assert.Equal(t, ":9100", cfg.Metrics.PrometheusAddr)
	assert.Equal(t, "fleet", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"sites":[{"id":"s1","batteries":[{"id":"b1"}]}]}`)
	t.Setenv("ESSIM_SIMULATION__TICKS", "48")
	t.Setenv("ESSIM_LOGGING__FORMAT", "console")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 48, cfg.Simulation.Ticks)
	assert.Equal(t, 1.0, cfg.Simulation.DeltaTimeHours)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "greedy", cfg.Sites[0].Strategy.Type)
	assert.Equal(t, PresetGrid, cfg.Sites[0].Batteries[0].Preset)
	assert.Equal(t, "constant", cfg.Demand.Type)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", ""))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "config.yaml", "simulation:\n  delta_time_hours: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delta_time_hours")
	assert.Contains(t, err.Error(), "at least one site")

	_, err = Load(writeConfig(t, "config.yaml", `sites:
  - id: a
    batteries: [{id: b1, capacity_kwh: 10, max_rate_kw: 5, initial_energy_kwh: 20}]
`))
	assert.Error(t, err)
}

func TestSetDefaults_GeneratesBatteryIDs(t *testing.T) {
	cfg := Config{Sites: []SiteConfig{{ID: "s", Batteries: []BatteryConfig{{}, {}}}}}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	a, b := cfg.Sites[0].Batteries[0].ID, cfg.Sites[0].Batteries[1].ID
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestSetDefaults_GeneratesSiteIDs(t *testing.T) {
	cfg := Config{Sites: []SiteConfig{{Batteries: []BatteryConfig{{}}}, {Batteries: []BatteryConfig{{}}}}}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	a, b := cfg.Sites[0].ID, cfg.Sites[1].ID
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestValidate_DuplicateIDs(t *testing.T) {
	cfg := Config{Sites: []SiteConfig{
		{ID: "s", Batteries: []BatteryConfig{{ID: "b"}}},
		{ID: "s", Batteries: []BatteryConfig{{ID: "b"}}},
	}}
	cfg.SetDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate site s")
	assert.Contains(t, err.Error(), "battery b belongs to")
}

func TestValidate_UnknownPreset(t *testing.T) {
	cfg := Config{Sites: []SiteConfig{{ID: "s", Batteries: []BatteryConfig{{ID: "b", Preset: "tiny", CapacityKWh: 1, MaxRateKW: 1}}}}}
	cfg.SetDefaults()
	assert.Error(t, cfg.Validate())
}

func TestLoad_Example(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "config.example.yaml"))
	require.NoError(t, err)
	assert.Len(t, cfg.Sites, 2)
	assert.NotEmpty(t, cfg.Sites[1].Batteries[0].ID)
	assert.Equal(t, 250.0, cfg.Sites[0].Batteries[1].Params().InitialEnergyKWh)
}
