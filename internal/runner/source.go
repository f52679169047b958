package runner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pv_forecast/internal/config"
	"pv_forecast/internal/ingest"
	"pv_forecast/internal/model"
)

// LoadLocations loads the datasets named by the source configuration.
func LoadLocations(ctx context.Context, src config.SourceConfig, log zerolog.Logger) ([]ingest.Location, error) {
	switch src.Kind {
	case config.SourceUQ:
		return loadUQ(src.UQ, log)

	case config.SourcePVWatts:
		pv := src.PVWatts
		stations, err := ingest.LoadStationsFile(pv.Stations, pv.From, pv.To)
		if err != nil {
			return nil, err
		}
		client := ingest.NewPVWattsClient(pv.APIKey, log)
		if pv.Year != 0 {
			client.Year = pv.Year
		}
		params := ingest.DefaultPVWattsParams()
		params.SystemCapacity = pv.SystemCapacity
		params.Losses = pv.Losses
		params.Tilt = pv.Tilt
		params.Azimuth = pv.Azimuth
		return client.BulkLoad(ctx, stations, params, pv.CacheDir)
	}
	return nil, fmt.Errorf("unknown source kind %q", src.Kind)
}

// loadUQ loads every UQ location. References shared by several locations are
// read once.
func loadUQ(uq config.UQConfig, log zerolog.Logger) ([]ingest.Location, error) {
	opts := ingest.UQOptions{WithInsolation: uq.WithInsolation}
	refs := make(map[config.UQFiles]*model.Frame)

	var out []ingest.Location
	for _, l := range uq.AllLocations() {
		frame, err := ingest.LoadUQFiles(l.Power, l.Weather, opts)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", l.Name, err)
		}
		loc := ingest.Location{Name: l.Name, Data: frame}
		if l.Reference.Set() {
			ref, ok := refs[l.Reference]
			if !ok {
				if ref, err = ingest.LoadUQFiles(l.Reference.Power, l.Reference.Weather, opts); err != nil {
					return nil, fmt.Errorf("loading reference of %s: %w", l.Name, err)
				}
				refs[l.Reference] = ref
			}
			loc.Reference = ref
		}
		if l.Year != 0 {
			loc.Windows = model.MonthlyWindows(l.Year)
		}
		log.Debug().Str("location", l.Name).Int("rows", frame.Len()).Bool("reference", loc.Reference != nil).Msg("location loaded")
		out = append(out, loc)
	}
	return out, nil
}
