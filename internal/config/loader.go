package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. PVFORECAST_SOURCE_PVWATTS_API_KEY.
const EnvPrefix = "PVFORECAST"

// Load reads configuration from a file. Without a path, pvforecast.yaml is
// looked up in the working directory and ./configs; a missing file leaves
// the defaults in place.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("pvforecast")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return parseConfig(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output_path", "stderr")

	v.SetDefault("server.listen", "")

	v.SetDefault("source.kind", SourcePVWatts)
	v.SetDefault("source.pvwatts.stations", "data/pvwatts/stations_list.csv")
	v.SetDefault("source.pvwatts.from", 0)
	v.SetDefault("source.pvwatts.to", 50)
	v.SetDefault("source.pvwatts.cache_dir", "data/pvwatts")
	v.SetDefault("source.pvwatts.api_key", "DEMO_KEY")
	v.SetDefault("source.pvwatts.year", 2019)
	v.SetDefault("source.pvwatts.system_capacity", 4)
	v.SetDefault("source.pvwatts.losses", 14)
	v.SetDefault("source.pvwatts.tilt", 25)
	v.SetDefault("source.pvwatts.azimuth", 180)
	v.SetDefault("source.uq.name", "uq")

	v.SetDefault("output.dir", "results")
	v.SetDefault("output.full", "full.csv")
	v.SetDefault("output.quantiles", "quantiles.csv")
	v.SetDefault("output.index_name", "location_month")

	v.SetDefault("windows_year", 2019)
	v.SetDefault("metrics", []string{"nrmse", "r2"})
	v.SetDefault("scaling", true)
	v.SetDefault("strict", false)
	v.SetDefault("models", []map[string]any{
		{
			"name":           "arima",
			"kind":           ModelSeasonal,
			"order":          []int{2, 0, 1},
			"seasonal_order": []int{2, 0, 1, 24},
			"use_exogenous":  true,
		},
		{
			"name": "svr",
			"kind": ModelKernel,
		},
	})
	v.SetDefault("filters", [][]string{{"tamb", "wspd"}})
}

func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
