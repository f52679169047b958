// forecast-example runs one fit/predict/score cycle on a single dataset and
// prints the error metrics. Useful for trying orders and kernels before
// adding them to a run configuration.
//
// Usage:
//
//	forecast-example -pvwatts data/pvwatts/Aachen.json
//	forecast-example -pvwatts data/pvwatts/Aachen.json -model kernel -filter tamb,wspd
//	forecast-example -lat 51.96 -lon 7.63 -order 1,0,1 -seasonal-order 1,0,1,24 -exog
//	forecast-example -uq-power power.csv -uq-weather weather.csv -train-from 20140104 -train-to 20140131 -test-from 20140201 -test-to 20140202
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pv_forecast/internal/config"
	"pv_forecast/internal/evaluation"
	"pv_forecast/internal/ingest"
	"pv_forecast/internal/logging"
	"pv_forecast/internal/model"
	"pv_forecast/internal/predictor"
	"pv_forecast/internal/svr"
)

type options struct {
	kind          string
	order         []int
	seasonalOrder []int
	exog          bool
	filter        []string
	hours         int
	kernel        predictor.KernelParams
	scaling       bool
	metrics       []string
	window        model.Window
}

func main() {
	pvwattsFile := flag.String("pvwatts", "", "PVWatts JSON response file")
	year := flag.Int("year", 2019, "year the PVWatts hourly series starts in")
	lat := flag.Float64("lat", 0, "fetch PVWatts data for this latitude")
	lon := flag.Float64("lon", 0, "fetch PVWatts data for this longitude")
	apiKey := flag.String("api-key", "DEMO_KEY", "NREL API key used with -lat/-lon")
	uqPower := flag.String("uq-power", "", "UQ Solar power CSV")
	uqWeather := flag.String("uq-weather", "", "UQ Solar weather CSV")

	kind := flag.String("model", config.ModelSeasonal, "seasonal, kernel or profile")
	order := flag.String("order", "2,0,1", "ARIMA order p,d,q")
	seasonalOrder := flag.String("seasonal-order", "2,0,1,24", "seasonal order P,D,Q,s (empty for none)")
	exog := flag.Bool("exog", false, "drive the seasonal model with weather columns")
	filter := flag.String("filter", "", "comma-separated feature columns (empty = all)")
	hours := flag.Int("hours", 0, "forecast horizon without exogenous variables (0 = test length)")
	kernel := flag.String("kernel", string(svr.RBF), "kernel: linear, poly, rbf or sigmoid")
	c := flag.Float64("c", 1e3, "kernel regression penalty")
	gamma := flag.Float64("gamma", 0.1, "kernel coefficient")
	epsilon := flag.Float64("epsilon", 0.1, "epsilon tube width")
	noScaling := flag.Bool("no-scaling", false, "disable standardization")
	metricList := flag.String("metrics", "mse,rmse,nrmse", "comma-separated metrics to print")

	trainFrom := flag.String("train-from", "20190104", "first training date")
	trainTo := flag.String("train-to", "20190131", "last training date")
	testFrom := flag.String("test-from", "20190201", "first testing date")
	testTo := flag.String("test-to", "20190202", "last testing date")
	out := flag.String("o", "", "write actual and predicted power to this CSV file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log := logging.Console(*verbose)

	opts, err := buildOptions(*kind, *order, *seasonalOrder, *filter, *metricList, *trainFrom, *trainTo, *testFrom, *testTo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	opts.exog = *exog
	opts.hours = *hours
	opts.scaling = !*noScaling
	opts.kernel.Kernel = svr.Kernel(*kernel)
	opts.kernel.C = *c
	opts.kernel.Gamma = *gamma
	opts.kernel.Epsilon = *epsilon

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var data *model.Frame
	switch {
	case *pvwattsFile != "":
		data, err = ingest.LoadPVWattsFile(*pvwattsFile, *year)
	case *uqPower != "" || *uqWeather != "":
		data, err = ingest.LoadUQFiles(*uqPower, *uqWeather, ingest.UQOptions{})
	case *lat != 0 || *lon != 0:
		client := ingest.NewPVWattsClient(*apiKey, log)
		client.Year = *year
		p := ingest.DefaultPVWattsParams()
		p.Lat, p.Lon = *lat, *lon
		data, err = client.Fetch(ctx, p)
	default:
		err = errors.New("one of -pvwatts, -uq-power/-uq-weather or -lat/-lon is required")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading data: %v\n", err)
		os.Exit(1)
	}

	actual, pred, err := forecast(data, opts, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Model:    %s\n", opts.kind)
	fmt.Printf("Training: %s .. %s (%d rows)\n", opts.window.TrainFrom.Format(time.DateOnly), opts.window.TrainTo.Format(time.DateOnly), data.SliceDates(opts.window.TrainFrom, opts.window.TrainTo).Len())
	fmt.Printf("Testing:  %s .. %s (%d rows)\n", opts.window.TestFrom.Format(time.DateOnly), opts.window.TestTo.Format(time.DateOnly), actual.Len())
	fmt.Println()
	for _, name := range opts.metrics {
		v, err := score(name, actual, pred)
		if err != nil {
			fmt.Printf("%-6s  %v\n", name, err)
			continue
		}
		fmt.Printf("%-6s  %.4f\n", name, v)
	}

	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *out, err)
			os.Exit(1)
		}
		defer f.Close()
		if err := writePrediction(f, actual, pred); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *out, err)
			os.Exit(1)
		}
	}
}

func buildOptions(kind, order, seasonalOrder, filter, metrics, trainFrom, trainTo, testFrom, testTo string) (options, error) {
	o := options{kind: kind, kernel: predictor.DefaultKernelParams()}
	switch kind {
	case config.ModelSeasonal, config.ModelKernel, config.ModelProfile:
	default:
		return o, fmt.Errorf("unknown model %q", kind)
	}

	var err error
	if o.order, err = parseInts(order); err != nil {
		return o, fmt.Errorf("-order: %w", err)
	}
	if o.seasonalOrder, err = parseInts(seasonalOrder); err != nil {
		return o, fmt.Errorf("-seasonal-order: %w", err)
	}
	o.filter = parseList(filter)
	o.kernel.Filter = o.filter
	o.metrics = parseList(metrics)
	for _, m := range o.metrics {
		if _, ok := evaluation.Metrics[m]; !ok {
			return o, fmt.Errorf("unknown metric %q", m)
		}
	}
	o.window, err = model.ParseWindow("example", trainFrom, trainTo, testFrom, testTo)
	return o, err
}

// forecast fits on the training range and returns the testing slice together
// with the prediction.
func forecast(data *model.Frame, o options, log zerolog.Logger) (*model.Frame, *predictor.Prediction, error) {
	train, test := o.window.Split(data)
	if train.Len() == 0 || test.Len() == 0 {
		return nil, nil, fmt.Errorf("window selects %d training and %d testing rows", train.Len(), test.Len())
	}
	popts := []predictor.Option{predictor.WithScaling(o.scaling), predictor.WithLogger(log)}

	var pred *predictor.Prediction
	switch o.kind {
	case config.ModelSeasonal:
		fit, err := predictor.NewSeasonal(popts...).Fit(train, predictor.SeasonalParams{
			Order:         o.order,
			SeasonalOrder: o.seasonalOrder,
			Filter:        o.filter,
			UseExogenous:  o.exog,
		})
		if err != nil {
			return nil, nil, err
		}
		p := predictor.PredictParams{Hours: o.hours}
		if o.exog {
			p.Testing = test
		} else if p.Hours == 0 {
			p.Hours = test.Len()
		}
		if pred, err = fit.Predict(p); err != nil {
			return nil, nil, err
		}
	case config.ModelKernel:
		k, err := predictor.NewKernel(data, popts...)
		if err != nil {
			return nil, nil, err
		}
		fit, err := k.Fit(train, o.kernel)
		if err != nil {
			return nil, nil, err
		}
		if pred, err = fit.Predict(test); err != nil {
			return nil, nil, err
		}
	case config.ModelProfile:
		fit, err := predictor.NewProfile().Fit(train)
		if err != nil {
			return nil, nil, err
		}
		if pred, err = fit.Predict(test); err != nil {
			return nil, nil, err
		}
	}
	return test, pred, nil
}

// score compares the overlapping prefix of actual and predicted power.
func score(name string, actual *model.Frame, pred *predictor.Prediction) (float64, error) {
	a, err := actual.Column(model.PowerColumn)
	if err != nil {
		return 0, err
	}
	p := pred.Power()
	n := min(len(a), len(p))
	return evaluation.Metrics[name](a[:n], p[:n])
}

func writePrediction(w io.Writer, actual *model.Frame, pred *predictor.Prediction) error {
	a, err := actual.Column(model.PowerColumn)
	if err != nil {
		return err
	}
	p := pred.Power()
	index := pred.Frame.Index()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "actual", "predicted"}); err != nil {
		return err
	}
	for i := 0; i < len(p) && i < len(a); i++ {
		rec := []string{
			index[i].Format(time.DateTime),
			strconv.FormatFloat(a[i], 'f', 2, 64),
			strconv.FormatFloat(p[i], 'f', 2, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// parseInts parses "2,0,1" into its integers. An empty string gives nil.
func parseInts(s string) ([]int, error) {
	parts := parseList(s)
	if len(parts) == 0 {
		return nil, nil
	}
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		out[i] = v
	}
	return out, nil
}

// parseList splits a comma-separated list, dropping blanks.
func parseList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
