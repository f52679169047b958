// feature-correlation prints the Pearson correlation of every weather
// column with PV power, to help choose feature filters for a run.
//
// Usage:
//
//	feature-correlation -pvwatts data/pvwatts/Aachen.json
//	feature-correlation -pvwatts data/pvwatts/Aachen.json -keys ac,poa,dn,df,tcell,tamb,wspd -from 20190601 -to 20190831
//	feature-correlation -uq-power power.csv -uq-weather weather.csv -insolation
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"pv_forecast/internal/evaluation"
	"pv_forecast/internal/ingest"
	"pv_forecast/internal/model"
)

func main() {
	pvwattsFile := flag.String("pvwatts", "", "PVWatts JSON response file")
	year := flag.Int("year", 2019, "year the PVWatts hourly series starts in")
	keys := flag.String("keys", "ac,poa,dn,df,tcell,tamb,wspd", "PVWatts output keys to load (must include ac)")
	uqPower := flag.String("uq-power", "", "UQ Solar power CSV")
	uqWeather := flag.String("uq-weather", "", "UQ Solar weather CSV")
	insolation := flag.Bool("insolation", false, "keep the UQ insolation column")
	from := flag.String("from", "", "first date (YYYYMMDD, empty = start of data)")
	to := flag.String("to", "", "last date (YYYYMMDD, empty = end of data)")
	sorted := flag.Bool("sort", false, "order by absolute correlation")
	flag.Parse()

	var (
		data *model.Frame
		err  error
	)
	switch {
	case *pvwattsFile != "":
		data, err = loadPVWatts(*pvwattsFile, *year, *keys)
	case *uqPower != "" || *uqWeather != "":
		data, err = ingest.LoadUQFiles(*uqPower, *uqWeather, ingest.UQOptions{WithInsolation: *insolation})
	default:
		err = errors.New("one of -pvwatts or -uq-power/-uq-weather is required")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading data: %v\n", err)
		os.Exit(1)
	}

	if *from != "" || *to != "" {
		tr, _ := data.TimeRange()
		start, end := tr.Start, tr.End
		if *from != "" {
			if start, err = model.ParseDate(*from); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
		if *to != "" {
			if end, err = model.ParseDate(*to); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}
		data = data.SliceDates(start, end)
	}

	corr, err := evaluation.Correlation(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *sorted {
		sortByStrength(corr)
	}
	printTable(os.Stdout, data.Len(), corr)
}

func loadPVWatts(path string, year int, keys string) (*model.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var list []string
	for _, k := range strings.Split(keys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			list = append(list, k)
		}
	}
	return ingest.ParsePVWattsKeys(f, year, list)
}

// sortByStrength orders by descending |r|; undefined correlations go last.
func sortByStrength(c []evaluation.FeatureCorrelation) {
	sort.SliceStable(c, func(i, j int) bool {
		a, b := math.Abs(c[i].R), math.Abs(c[j].R)
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
}

func printTable(w io.Writer, rows int, c []evaluation.FeatureCorrelation) {
	fmt.Fprintf(w, "Correlation with %s over %d rows\n\n", model.Describe(model.PowerColumn).Name, rows)
	fmt.Fprintf(w, "%-10s  %-28s  %7s\n", "Column", "Description", "r")
	fmt.Fprintf(w, "%-10s  %-28s  %7s\n", "----------", "----------------------------", "-------")
	for _, fc := range c {
		info := model.Describe(fc.Feature)
		desc := info.Name
		if info.Unit != "" {
			desc += " (" + info.Unit + ")"
		}
		if math.IsNaN(fc.R) {
			fmt.Fprintf(w, "%-10s  %-28s  %7s\n", fc.Feature, desc, "n/a")
			continue
		}
		fmt.Fprintf(w, "%-10s  %-28s  %7.3f\n", fc.Feature, desc, fc.R)
	}
}
