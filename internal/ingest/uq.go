package ingest

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"time"

	"pv_forecast/internal/model"
)

// UQPowerColumn is the power column of UQ Solar power exports.
const UQPowerColumn = "power (W)"

// ErrDateRangeMismatch is returned when the power and weather files of a UQ
// export do not start and end on the same dates.
var ErrDateRangeMismatch = fmt.Errorf("%w: power and weather files cover different dates", ErrFormat)

// UQOptions controls which columns LoadUQ keeps.
type UQOptions struct {
	WithInsolation bool
}

// LoadUQFiles opens a power and a weather CSV and merges them with LoadUQ.
func LoadUQFiles(powerPath, weatherPath string, opts UQOptions) (*model.Frame, error) {
	pf, err := os.Open(powerPath)
	if err != nil {
		return nil, err
	}
	defer pf.Close()

	wf, err := os.Open(weatherPath)
	if err != nil {
		return nil, err
	}
	defer wf.Close()

	return LoadUQ(pf, wf, opts)
}

// LoadUQ merges a UQ Solar power export (time, "power (W)") into the
// matching weather export (time plus weather columns).
//
// Power is joined on exact timestamps, duplicate weather timestamps keep
// their first row, missing values count as zero, rows are averaged per hour
// (hours without rows are zero) and values are rounded to 2 decimals.
// Insolation is dropped unless requested.
func LoadUQ(power, weather io.Reader, opts UQOptions) (*model.Frame, error) {
	p, err := readTable(power)
	if err != nil {
		return nil, fmt.Errorf("power file: %w", err)
	}
	w, err := readTable(weather)
	if err != nil {
		return nil, fmt.Errorf("weather file: %w", err)
	}

	pcol := p.column(UQPowerColumn)
	if pcol < 0 {
		return nil, fmt.Errorf("%w: power file has no %q column", ErrFormat, UQPowerColumn)
	}
	if w.column(model.PowerColumn) >= 0 {
		return nil, fmt.Errorf("%w: weather file already has a %q column", ErrFormat, model.PowerColumn)
	}
	if !sameDate(p.index[0], w.index[0]) || !sameDate(p.index[len(p.index)-1], w.index[len(w.index)-1]) {
		return nil, fmt.Errorf("%w: power %s..%s, weather %s..%s", ErrDateRangeMismatch,
			p.index[0].Format(time.DateOnly), p.index[len(p.index)-1].Format(time.DateOnly),
			w.index[0].Format(time.DateOnly), w.index[len(w.index)-1].Format(time.DateOnly))
	}

	powerAt := make(map[time.Time]float64, len(p.index))
	for i, ts := range p.index {
		if _, ok := powerAt[ts]; !ok {
			powerAt[ts] = p.rows[i][pcol]
		}
	}

	type row struct {
		ts     time.Time
		values []float64
	}
	seen := make(map[time.Time]bool, len(w.index))
	rows := make([]row, 0, len(w.index))
	for i, ts := range w.index {
		if seen[ts] {
			continue
		}
		seen[ts] = true
		v := make([]float64, len(w.columns)+1)
		copy(v, w.rows[i])
		v[len(w.columns)] = math.NaN()
		if pw, ok := powerAt[ts]; ok {
			v[len(w.columns)] = pw
		}
		for j := range v {
			if math.IsNaN(v[j]) {
				v[j] = 0
			}
		}
		rows = append(rows, row{ts: ts, values: v})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ts.Before(rows[j].ts)
	})

	// Hourly mean resample
	first := rows[0].ts.Truncate(time.Hour)
	last := rows[len(rows)-1].ts.Truncate(time.Hour)
	hours := int(last.Sub(first)/time.Hour) + 1
	columns := append(append([]string{}, w.columns...), model.PowerColumn)
	sums := make([][]float64, len(columns))
	for j := range sums {
		sums[j] = make([]float64, hours)
	}
	counts := make([]int, hours)
	for _, r := range rows {
		b := int(r.ts.Truncate(time.Hour).Sub(first) / time.Hour)
		counts[b]++
		for j, v := range r.values {
			sums[j][b] += v
		}
	}
	for j := range sums {
		for b := range sums[j] {
			if counts[b] > 0 {
				sums[j][b] /= float64(counts[b])
			}
		}
	}

	frame, err := model.NewFrame(model.HourlyIndex(first, hours), columns, sums)
	if err != nil {
		return nil, err
	}
	frame = frame.Round(2)
	if !opts.WithInsolation {
		frame = frame.Drop(model.FeatureInsolation)
	}
	return frame, nil
}
