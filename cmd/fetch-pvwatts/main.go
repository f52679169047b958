// fetch-pvwatts downloads simulated hourly PV output from NREL PVWatts, for
// one location or a range of a station list.
//
// Usage:
//
//	fetch-pvwatts -lat 52.47 -lon 13.40 -o data/pvwatts/berlin.json
//	fetch-pvwatts -address "Muenster, Germany" -o muenster.json
//	fetch-pvwatts -stations data/pvwatts/stations_list.csv -from 0 -to 50 -out data/pvwatts
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"pv_forecast/internal/ingest"
	"pv_forecast/internal/logging"
)

func main() {
	keyFlag := flag.String("api-key", "", "NREL API key (overrides NREL_API_KEY)")
	lat := flag.Float64("lat", ingest.DefaultPVWattsParams().Lat, "latitude")
	lon := flag.Float64("lon", ingest.DefaultPVWattsParams().Lon, "longitude")
	address := flag.String("address", "", "address to geocode instead of lat/lon")
	dataset := flag.String("dataset", ingest.DatasetTMY3, "weather dataset (tmy3, intl)")
	capacity := flag.Float64("capacity", ingest.DefaultPVWattsParams().SystemCapacity, "system capacity in kW")
	tilt := flag.Float64("tilt", ingest.DefaultPVWattsParams().Tilt, "array tilt in degrees")
	azimuth := flag.Float64("azimuth", ingest.DefaultPVWattsParams().Azimuth, "array azimuth in degrees")
	year := flag.Int("year", 2019, "year assigned to the hourly index")
	output := flag.String("o", "", "output JSON path for a single location (default stdout)")
	stations := flag.String("stations", "", "station list CSV (name,lat,lon) for bulk download")
	from := flag.Int("from", 0, "first station row")
	to := flag.Int("to", -1, "end station row, exclusive (-1 = all)")
	outDir := flag.String("out", "data/pvwatts", "output directory for bulk download")
	envFile := flag.String("env-file", ".env", "dotenv file consulted for NREL_API_KEY")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log := logging.Console(*verbose)

	apiKey, err := resolveAPIKey(*keyFlag, *envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("loading API key")
	}
	if apiKey == "" {
		log.Fatal().Msg("NREL_API_KEY not set: use -api-key flag or set NREL_API_KEY in .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := ingest.NewPVWattsClient(apiKey, log)
	client.Year = *year

	params := ingest.DefaultPVWattsParams()
	params.Lat, params.Lon = *lat, *lon
	params.Address = *address
	params.Dataset = *dataset
	params.SystemCapacity = *capacity
	params.Tilt = *tilt
	params.Azimuth = *azimuth

	if *stations != "" {
		if err := bulk(ctx, client, params, *stations, *from, *to, *outDir, log); err != nil {
			log.Fatal().Err(err).Msg("bulk download failed")
		}
		return
	}

	body, err := client.FetchRaw(ctx, params)
	if err != nil {
		log.Fatal().Err(err).Msg("fetching PVWatts data")
	}
	if *output == "" {
		os.Stdout.Write(body)
		return
	}
	if err := os.WriteFile(*output, body, 0o644); err != nil {
		log.Fatal().Err(err).Msg("writing output")
	}
	log.Info().Str("path", *output).Int("bytes", len(body)).Msg("wrote PVWatts response")
}

func bulk(ctx context.Context, client *ingest.PVWattsClient, params ingest.PVWattsParams, path string, from, to int, dir string, log zerolog.Logger) error {
	list, err := ingest.LoadStationsFile(path, from, to)
	if err != nil {
		return err
	}
	log.Info().Int("stations", len(list)).Str("dir", dir).Msg("downloading")
	locs, err := client.BulkLoad(ctx, list, params, dir)
	if err != nil {
		return err
	}
	for _, l := range locs {
		log.Debug().Str("station", l.Name).Int("hours", l.Data.Len()).Msg("loaded")
	}
	return nil
}

const apiKeyEnv = "NREL_API_KEY"

// resolveAPIKey returns the flag value, or NREL_API_KEY from the environment,
// or NREL_API_KEY from the dotenv file. A missing dotenv file is skipped.
func resolveAPIKey(flagVal, envFile string) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}
	v := viper.New()
	v.AutomaticEnv()
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("reading %s: %w", envFile, err)
		}
	}
	return v.GetString(apiKeyEnv), nil
}
