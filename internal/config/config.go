// Package config loads the settings of an evaluation run.
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rs/zerolog"

	"pv_forecast/internal/evaluation"
	"pv_forecast/internal/model"
)

// Data source kinds.
const (
	SourcePVWatts = "pvwatts"
	SourceUQ      = "uq"
)

// Model kinds.
const (
	ModelSeasonal     = "seasonal"
	ModelSeasonalAuto = "seasonal_auto"
	ModelKernel       = "kernel"
	ModelProfile      = "profile"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config is the complete configuration of forecast-run.
type Config struct {
	Logging     LoggingConfig  `mapstructure:"logging"`
	Server      ServerConfig   `mapstructure:"server"`
	Source      SourceConfig   `mapstructure:"source"`
	Output      OutputConfig   `mapstructure:"output"`
	Windows     []WindowConfig `mapstructure:"windows"`
	WindowsYear int            `mapstructure:"windows_year"`
	Filters     [][]string     `mapstructure:"filters"`
	Models      []ModelConfig  `mapstructure:"models"`
	Metrics     []string       `mapstructure:"metrics"`
	Scaling     bool           `mapstructure:"scaling"`
	Strict      bool           `mapstructure:"strict"`
}

// LoggingConfig selects level, format (json or console) and output
// (stdout, stderr or a file path).
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ServerConfig enables the live progress server when Listen is set.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// SourceConfig selects where location datasets come from.
type SourceConfig struct {
	Kind    string        `mapstructure:"kind"`
	PVWatts PVWattsConfig `mapstructure:"pvwatts"`
	UQ      UQConfig      `mapstructure:"uq"`
}

// PVWattsConfig configures bulk loading of simulated stations.
type PVWattsConfig struct {
	Stations       string  `mapstructure:"stations"`
	From           int     `mapstructure:"from"`
	To             int     `mapstructure:"to"`
	CacheDir       string  `mapstructure:"cache_dir"`
	APIKey         string  `mapstructure:"api_key"`
	Year           int     `mapstructure:"year"`
	SystemCapacity float64 `mapstructure:"system_capacity"`
	Losses         float64 `mapstructure:"losses"`
	Tilt           float64 `mapstructure:"tilt"`
	Azimuth        float64 `mapstructure:"azimuth"`
}

// UQConfig names the UQ Solar datasets of a run: either one dataset given
// inline or a list of locations, or both.
type UQConfig struct {
	Name           string       `mapstructure:"name"`
	Power          string       `mapstructure:"power"`
	Weather        string       `mapstructure:"weather"`
	Reference      UQFiles      `mapstructure:"reference"`
	Year           int          `mapstructure:"year"`
	Locations      []UQLocation `mapstructure:"locations"`
	WithInsolation bool         `mapstructure:"with_insolation"`
}

// UQFiles is a power export and its matching weather export.
type UQFiles struct {
	Power   string `mapstructure:"power"`
	Weather string `mapstructure:"weather"`
}

// Set reports whether any file is named.
func (f UQFiles) Set() bool {
	return f.Power != "" || f.Weather != ""
}

// UQLocation is one evaluated dataset. Reference, when set, is the dataset
// the kernel scaling statistics are fitted on instead of the location
// itself. A non-zero Year gives the location the monthly windows of that
// year in place of the run's windows.
type UQLocation struct {
	Name      string  `mapstructure:"name"`
	Power     string  `mapstructure:"power"`
	Weather   string  `mapstructure:"weather"`
	Reference UQFiles `mapstructure:"reference"`
	Year      int     `mapstructure:"year"`
}

// AllLocations returns the inline dataset, if any, followed by the listed
// locations.
func (u UQConfig) AllLocations() []UQLocation {
	var out []UQLocation
	if u.Power != "" || u.Weather != "" {
		out = append(out, UQLocation{Name: u.Name, Power: u.Power, Weather: u.Weather, Reference: u.Reference, Year: u.Year})
	}
	return append(out, u.Locations...)
}

// OutputConfig names the result files.
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	Full      string `mapstructure:"full"`
	Quantiles string `mapstructure:"quantiles"`
	IndexName string `mapstructure:"index_name"`
}

// WindowConfig is one train/test split. Dates are YYYYMMDD or YYYY-MM-DD.
type WindowConfig struct {
	Name      string `mapstructure:"name"`
	TrainFrom string `mapstructure:"train_from"`
	TrainTo   string `mapstructure:"train_to"`
	TestFrom  string `mapstructure:"test_from"`
	TestTo    string `mapstructure:"test_to"`
}

// ModelConfig is one predictor evaluated on every cell. Fields apply to the
// kinds noted.
type ModelConfig struct {
	Name string `mapstructure:"name"`
	Kind string `mapstructure:"kind"`

	// seasonal
	Order         []int `mapstructure:"order"`
	SeasonalOrder []int `mapstructure:"seasonal_order"`
	// seasonal, seasonal_auto
	UseExogenous bool `mapstructure:"use_exogenous"`
	Hours        int  `mapstructure:"hours"`
	// seasonal_auto
	P      []int `mapstructure:"p"`
	Q      []int `mapstructure:"q"`
	SP     []int `mapstructure:"sp"`
	SQ     []int `mapstructure:"sq"`
	D      *int  `mapstructure:"d"`
	SD     *int  `mapstructure:"sd"`
	Period int   `mapstructure:"period"`

	// kernel; nil C, Gamma or Epsilon keep the estimator defaults.
	Kernel  string   `mapstructure:"kernel"`
	C       *float64 `mapstructure:"c"`
	Gamma   *float64 `mapstructure:"gamma"`
	Epsilon *float64 `mapstructure:"epsilon"`
	Degree  int      `mapstructure:"degree"`
	Coef0   float64  `mapstructure:"coef0"`
	MaxIter int      `mapstructure:"max_iter"`
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging level %q", ErrInvalid, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console", "pretty":
	default:
		return fmt.Errorf("%w: logging format %q", ErrInvalid, c.Logging.Format)
	}

	switch c.Source.Kind {
	case SourcePVWatts:
		if c.Source.PVWatts.Stations == "" {
			return fmt.Errorf("%w: source.pvwatts.stations is required", ErrInvalid)
		}
	case SourceUQ:
		locs := c.Source.UQ.AllLocations()
		if len(locs) == 0 {
			return fmt.Errorf("%w: source.uq needs power and weather files or locations", ErrInvalid)
		}
		names := make(map[string]bool)
		for _, l := range locs {
			if l.Name == "" {
				return fmt.Errorf("%w: source.uq location without name", ErrInvalid)
			}
			if names[l.Name] {
				return fmt.Errorf("%w: duplicate source.uq location %q", ErrInvalid, l.Name)
			}
			names[l.Name] = true
			if l.Power == "" || l.Weather == "" {
				return fmt.Errorf("%w: source.uq location %q needs power and weather files", ErrInvalid, l.Name)
			}
			if l.Reference.Set() && (l.Reference.Power == "" || l.Reference.Weather == "") {
				return fmt.Errorf("%w: source.uq location %q reference needs power and weather files", ErrInvalid, l.Name)
			}
		}
	default:
		return fmt.Errorf("%w: source kind %q", ErrInvalid, c.Source.Kind)
	}

	if len(c.Windows) == 0 && c.WindowsYear == 0 {
		return fmt.Errorf("%w: either windows or windows_year is required", ErrInvalid)
	}
	if _, err := c.ParsedWindows(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if len(c.Models) == 0 {
		return fmt.Errorf("%w: at least one model is required", ErrInvalid)
	}
	seen := make(map[string]bool)
	for _, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("%w: model without name", ErrInvalid)
		}
		if seen[m.Name] {
			return fmt.Errorf("%w: duplicate model name %q", ErrInvalid, m.Name)
		}
		seen[m.Name] = true
		switch m.Kind {
		case ModelSeasonal, ModelSeasonalAuto, ModelKernel, ModelProfile:
		default:
			return fmt.Errorf("%w: model %q has unknown kind %q", ErrInvalid, m.Name, m.Kind)
		}
	}

	if len(c.Metrics) == 0 {
		return fmt.Errorf("%w: at least one metric is required", ErrInvalid)
	}
	for _, name := range c.Metrics {
		if _, ok := evaluation.Metrics[name]; !ok {
			return fmt.Errorf("%w: unknown metric %q", ErrInvalid, name)
		}
	}
	for _, f := range c.Filters {
		if slices.Contains(f, model.PowerColumn) {
			return fmt.Errorf("%w: filter %v must not name %q", ErrInvalid, f, model.PowerColumn)
		}
	}
	return nil
}

// ParsedWindows returns the explicit windows, or the monthly windows of
// WindowsYear when none are listed.
func (c *Config) ParsedWindows() ([]model.Window, error) {
	if len(c.Windows) == 0 {
		return model.MonthlyWindows(c.WindowsYear), nil
	}
	out := make([]model.Window, 0, len(c.Windows))
	for _, w := range c.Windows {
		pw, err := model.ParseWindow(w.Name, w.TrainFrom, w.TrainTo, w.TestFrom, w.TestTo)
		if err != nil {
			return nil, err
		}
		out = append(out, pw)
	}
	return out, nil
}

// ParsedFilters returns the configured feature filters. No filters means a
// single pass with every feature.
func (c *Config) ParsedFilters() [][]string {
	if len(c.Filters) == 0 {
		return [][]string{nil}
	}
	return c.Filters
}
