package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pvforecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, SourcePVWatts, cfg.Source.Kind)
	assert.Equal(t, 50, cfg.Source.PVWatts.To)
	assert.Equal(t, 2019, cfg.WindowsYear)
	assert.Equal(t, []string{"nrmse", "r2"}, cfg.Metrics)
	assert.Equal(t, [][]string{{"tamb", "wspd"}}, cfg.Filters)
	assert.True(t, cfg.Scaling)

	require.Len(t, cfg.Models, 2)
	assert.Equal(t, "arima", cfg.Models[0].Name)
	assert.Equal(t, []int{2, 0, 1}, cfg.Models[0].Order)
	assert.Equal(t, []int{2, 0, 1, 24}, cfg.Models[0].SeasonalOrder)
	assert.True(t, cfg.Models[0].UseExogenous)
	assert.Equal(t, ModelKernel, cfg.Models[1].Kind)

	windows, err := cfg.ParsedWindows()
	require.NoError(t, err)
	assert.Len(t, windows, 12)
	assert.Equal(t, filepath.Join("results", "full.csv"), cfg.FullPath())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: uq
  uq:
    name: stlucia
    power: data/power.csv
    weather: data/weather.csv
windows:
  - name: june
    train_from: "20140601"
    train_to: "20140627"
    test_from: "20140628"
    test_to: "20140629"
filters:
  - [airtemp]
  - [airtemp, humidity]
models:
  - name: auto
    kind: seasonal_auto
    p: [1, 3]
    q: [1, 3]
    d: 0
    hours: 48
metrics: [rmse]
strict: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SourceUQ, cfg.Source.Kind)
	assert.Equal(t, "stlucia", cfg.Source.UQ.Name)
	assert.True(t, cfg.Strict)
	assert.Equal(t, [][]string{{"airtemp"}, {"airtemp", "humidity"}}, cfg.ParsedFilters())

	require.Len(t, cfg.Models, 1)
	m := cfg.Models[0]
	assert.Equal(t, []int{1, 3}, m.P)
	require.NotNil(t, m.D)
	assert.Equal(t, 0, *m.D)
	assert.Nil(t, m.SD)
	assert.Equal(t, 48, m.Hours)

	windows, err := cfg.ParsedWindows()
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "june", windows[0].Name)
}

func TestLoad_UQLocations(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
source:
  kind: uq
  uq:
    locations:
      - name: edwards_2014
        power: power/sir_llew_edwards/2014.csv
        weather: weather/2014.csv
        year: 2014
        reference:
          power: power/sir_llew_edwards/2013.csv
          weather: weather/2013.csv
      - name: car_park_2014
        power: power/car_park_1/2014.csv
        weather: weather/2014.csv
`))
	require.NoError(t, err)

	locs := cfg.Source.UQ.AllLocations()
	require.Len(t, locs, 2)
	assert.Equal(t, "edwards_2014", locs[0].Name)
	assert.Equal(t, 2014, locs[0].Year)
	assert.Equal(t, UQFiles{Power: "power/sir_llew_edwards/2013.csv", Weather: "weather/2013.csv"}, locs[0].Reference)
	assert.False(t, locs[1].Reference.Set())
}

func TestLoad_KernelZeroValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
models:
  - name: svr
    kind: kernel
    epsilon: 0
    c: 100
`))
	require.NoError(t, err)
	require.Len(t, cfg.Models, 1)
	m := cfg.Models[0]
	require.NotNil(t, m.Epsilon)
	assert.Equal(t, 0.0, *m.Epsilon)
	require.NotNil(t, m.C)
	assert.Equal(t, 100.0, *m.C)
	assert.Nil(t, m.Gamma)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PVFORECAST_SOURCE_PVWATTS_API_KEY", "secret")
	cfg, err := Load(writeConfig(t, "strict: false\n"))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Source.PVWatts.APIKey)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, "strict: false\n"))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad source", func(c *Config) { c.Source.Kind = "ftp" }},
		{"uq without files", func(c *Config) { c.Source.Kind = SourceUQ }},
		{"uq location without weather", func(c *Config) {
			c.Source.Kind = SourceUQ
			c.Source.UQ.Locations = []UQLocation{{Name: "stl", Power: "p.csv"}}
		}},
		{"uq duplicate location", func(c *Config) {
			c.Source.Kind = SourceUQ
			l := UQLocation{Name: "stl", Power: "p.csv", Weather: "w.csv"}
			c.Source.UQ.Locations = []UQLocation{l, l}
		}},
		{"uq half reference", func(c *Config) {
			c.Source.Kind = SourceUQ
			c.Source.UQ.Locations = []UQLocation{{Name: "stl", Power: "p.csv", Weather: "w.csv", Reference: UQFiles{Power: "b.csv"}}}
		}},
		{"no windows", func(c *Config) { c.Windows = nil; c.WindowsYear = 0 }},
		{"inverted window", func(c *Config) {
			c.Windows = []WindowConfig{{Name: "x", TrainFrom: "20190110", TrainTo: "20190101", TestFrom: "20190111", TestTo: "20190112"}}
		}},
		{"no models", func(c *Config) { c.Models = nil }},
		{"duplicate model", func(c *Config) { c.Models = append(c.Models, c.Models[0]) }},
		{"unknown kind", func(c *Config) { c.Models[0].Kind = "lstm" }},
		{"unknown metric", func(c *Config) { c.Metrics = []string{"mape"} }},
		{"power in filter", func(c *Config) { c.Filters = [][]string{{"power"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestParsedFilters_DefaultsToAllFeatures(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, [][]string{nil}, cfg.ParsedFilters())
}
