// decompose splits the PV power of one dataset into trend, seasonal and
// residual components and writes them as CSV.
//
// Usage:
//
//	decompose -pvwatts data/pvwatts/Aachen.json -from 20190601 -to 20190630
//	decompose -uq-power power.csv -uq-weather weather.csv -period 24 -o decomposition.csv
//	decompose -pvwatts data/pvwatts/Aachen.json -column tamb
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"pv_forecast/internal/decompose"
	"pv_forecast/internal/ingest"
	"pv_forecast/internal/model"
)

func main() {
	pvwattsFile := flag.String("pvwatts", "", "PVWatts JSON response file")
	year := flag.Int("year", 2019, "year the PVWatts hourly series starts in")
	uqPower := flag.String("uq-power", "", "UQ Solar power CSV")
	uqWeather := flag.String("uq-weather", "", "UQ Solar weather CSV")
	column := flag.String("column", model.PowerColumn, "column to decompose")
	period := flag.Int("period", 24, "seasonal period in hours")
	from := flag.String("from", "", "first date (YYYYMMDD, empty = start of data)")
	to := flag.String("to", "", "last date (YYYYMMDD, empty = end of data)")
	out := flag.String("o", "", "output CSV file (default stdout)")
	flag.Parse()

	var (
		data *model.Frame
		err  error
	)
	switch {
	case *pvwattsFile != "":
		data, err = ingest.LoadPVWattsFile(*pvwattsFile, *year)
	case *uqPower != "" || *uqWeather != "":
		data, err = ingest.LoadUQFiles(*uqPower, *uqWeather, ingest.UQOptions{})
	default:
		err = errors.New("one of -pvwatts or -uq-power/-uq-weather is required")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading data: %v\n", err)
		os.Exit(1)
	}

	if data, err = restrict(data, *from, *to); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	result, err := decompose.Frame(data, *column, *period)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decomposing %s: %v\n", *column, err)
		os.Exit(1)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *out, err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	if err := writeFrame(w, result); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
	if *out != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d rows to %s\n", result.Len(), *out)
	}
}

// restrict limits f to the inclusive date range; empty bounds are open.
func restrict(f *model.Frame, from, to string) (*model.Frame, error) {
	if from == "" && to == "" {
		return f, nil
	}
	tr, ok := f.TimeRange()
	if !ok {
		return f, nil
	}
	start, end := tr.Start, tr.End
	var err error
	if from != "" {
		if start, err = model.ParseDate(from); err != nil {
			return nil, err
		}
	}
	if to != "" {
		if end, err = model.ParseDate(to); err != nil {
			return nil, err
		}
	}
	return f.SliceDates(start, end), nil
}

// writeFrame writes f with a leading time column. NaN cells are left blank.
func writeFrame(w io.Writer, f *model.Frame) error {
	cw := csv.NewWriter(w)
	cols := f.Columns()
	if err := cw.Write(append([]string{"time"}, cols...)); err != nil {
		return err
	}
	values := make([][]float64, len(cols))
	for i, c := range cols {
		values[i], _ = f.Column(c)
	}
	for r, ts := range f.Index() {
		rec := make([]string, 0, len(cols)+1)
		rec = append(rec, ts.Format(time.DateTime))
		for i := range cols {
			v := values[i][r]
			if math.IsNaN(v) {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, decimal.NewFromFloat(v).Round(4).String())
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
