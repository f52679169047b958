package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"pv_forecast/internal/model"
)

// Station is one row of a station list CSV (name, lat, lon).
type Station struct {
	Name string  `csv:"name"`
	Lat  float64 `csv:"lat"`
	Lon  float64 `csv:"lon"`
}

// Location is a named dataset ready for evaluation. Reference, when set, is
// the dataset kernel scaling is fitted on; otherwise Data is used. Windows,
// when set, replace the run's windows for this location.
type Location struct {
	Name      string
	Data      *model.Frame
	Reference *model.Frame
	Windows   []model.Window
}

// LoadStations reads a station list and returns rows [from, to). A negative
// to means all remaining rows.
func LoadStations(r io.Reader, from, to int) ([]Station, error) {
	var stations []Station
	if err := gocsv.Unmarshal(r, &stations); err != nil {
		return nil, fmt.Errorf("parsing station list: %w", err)
	}
	if to < 0 || to > len(stations) {
		to = len(stations)
	}
	if from < 0 || from > to {
		return nil, fmt.Errorf("invalid station range [%d, %d) for %d stations", from, to, len(stations))
	}
	return stations[from:to], nil
}

// LoadStationsFile opens a station list CSV and calls LoadStations.
func LoadStationsFile(path string, from, to int) ([]Station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadStations(f, from, to)
}

// BulkLoad fetches every station with the base system parameters. Responses
// are cached as <cacheDir>/<name>.json when cacheDir is set. Stations that
// cannot be loaded are logged and left out.
func (c *PVWattsClient) BulkLoad(ctx context.Context, stations []Station, base PVWattsParams, cacheDir string) ([]Location, error) {
	if cacheDir != "" {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	var out []Location
	for _, st := range stations {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		frame, err := c.loadStation(ctx, st, base, cacheDir)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			c.Log.Warn().Err(err).Str("station", st.Name).Msg("leaving station out")
			continue
		}
		out = append(out, Location{Name: st.Name, Data: frame})
	}
	c.Log.Info().Int("loaded", len(out)).Int("requested", len(stations)).Msg("bulk load done")
	return out, nil
}

func (c *PVWattsClient) loadStation(ctx context.Context, st Station, base PVWattsParams, cacheDir string) (*model.Frame, error) {
	var path string
	if cacheDir != "" {
		path = filepath.Join(cacheDir, cacheName(st.Name)+".json")
		frame, err := LoadPVWattsFile(path, c.Year)
		if err == nil {
			return frame, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			c.Log.Warn().Err(err).Str("path", path).Msg("ignoring unreadable cache file")
		}
	}

	p := base
	p.Address = ""
	p.Lat, p.Lon = st.Lat, st.Lon
	body, err := c.FetchRaw(ctx, p)
	if err != nil {
		return nil, err
	}
	frame, err := ParsePVWatts(bytes.NewReader(body), c.Year)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := os.WriteFile(path, body, 0o644); err != nil {
			c.Log.Warn().Err(err).Str("path", path).Msg("writing cache file")
		}
	}
	return frame, nil
}

func cacheName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, name)
}
