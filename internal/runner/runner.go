// Package runner evaluates predictors over locations, windows and feature
// filters and collects the scores in a results table.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pv_forecast/internal/config"
	"pv_forecast/internal/evaluation"
	"pv_forecast/internal/ingest"
	"pv_forecast/internal/model"
	"pv_forecast/internal/predictor"
	"pv_forecast/internal/results"
)

// ErrEmptyWindow is recorded for cells whose window selects no rows.
var ErrEmptyWindow = errors.New("window selects no rows")

// Options configures a run.
type Options struct {
	Locations []ingest.Location
	Windows   []model.Window
	// Filters lists feature subsets; a nil entry means every feature.
	Filters   [][]string
	Models    []ModelSpec
	Metrics   []string
	Scaling   bool
	Strict    bool
	Workers   int
	Log       zerolog.Logger
	Observers []Observer
}

// Result holds the tables of a finished or canceled run.
type Result struct {
	RunID   string
	Full    *results.Table
	Summary *results.Table
	Cells   int
	Failed  int
}

// Save writes the full and summary tables as CSV.
func (r *Result) Save(fullPath, summaryPath, indexName string) error {
	if err := r.Full.SaveCSV(fullPath, indexName); err != nil {
		return err
	}
	return r.Summary.SaveCSV(summaryPath, indexName)
}

// Runner evaluates every (location, window, filter) row with every model.
type Runner struct {
	opts Options

	mu    sync.RWMutex
	runID string
	table *results.Table
}

func New(opts Options) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if len(opts.Filters) == 0 {
		opts.Filters = [][]string{nil}
	}
	return &Runner{opts: opts}
}

// Snapshot returns the ID and a copy of the table of the current or last
// run. The ID is empty before the first run.
func (r *Runner) Snapshot() (string, results.Snapshot) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.table == nil {
		return "", results.Snapshot{}
	}
	return r.runID, r.table.Snapshot()
}

// Columns returns the result columns, metric_model for every model and
// metric.
func (r *Runner) Columns() []string {
	var cols []string
	for _, m := range r.opts.Models {
		for _, metric := range r.opts.Metrics {
			cols = append(cols, Column(metric, m.Name))
		}
	}
	return cols
}

// Column names the result column of a metric and model.
func Column(metric, model string) string {
	return metric + "_" + model
}

type job struct {
	loc    int
	window model.Window
	filter []string
	row    string
}

// Run evaluates all cells. A failing cell is logged and left blank. When ctx
// is canceled the partial result is returned with the context error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	for _, name := range r.opts.Metrics {
		if _, ok := evaluation.Metrics[name]; !ok {
			return nil, fmt.Errorf("unknown metric %q", name)
		}
	}

	runID := uuid.New().String()
	log := r.opts.Log.With().Str("run_id", runID).Logger()
	table := results.New(r.Columns()...)

	var jobs []job
	for li, loc := range r.opts.Locations {
		for _, w := range r.windows(loc) {
			for _, f := range r.opts.Filters {
				j := job{loc: li, window: w, filter: f, row: r.rowName(loc.Name, w.Name, f)}
				table.AddRow(j.row)
				jobs = append(jobs, j)
			}
		}
	}

	r.mu.Lock()
	r.runID, r.table = runID, table
	r.mu.Unlock()

	info := RunInfo{RunID: runID, Columns: table.Columns(), Rows: len(jobs)}
	for _, loc := range r.opts.Locations {
		info.Locations = append(info.Locations, loc.Name)
	}
	seen := make(map[string]bool)
	for _, loc := range r.opts.Locations {
		for _, w := range r.windows(loc) {
			if !seen[w.Name] {
				seen[w.Name] = true
				info.Windows = append(info.Windows, w.Name)
			}
		}
	}
	for _, m := range r.opts.Models {
		info.Models = append(info.Models, m.Name)
	}
	for _, o := range r.opts.Observers {
		o.OnRunStarted(info)
	}
	log.Info().Int("locations", len(info.Locations)).Int("rows", len(jobs)).Int("models", len(info.Models)).Msg("run started")

	kernels, err := r.kernels()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var (
		mu           sync.Mutex
		cells, fails int
		canceled     bool
		g            errgroup.Group
	)
	g.SetLimit(r.opts.Workers)
	for _, j := range jobs {
		j := j
		if ctx.Err() != nil {
			canceled = true
			break
		}
		g.Go(func() error {
			for _, m := range r.opts.Models {
				c := r.evaluate(j, m, kernels[j.loc], log)
				c.RunID = runID
				r.record(table, c, log)
				mu.Lock()
				cells++
				if c.Err != nil {
					fails++
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{RunID: runID, Cells: cells, Failed: fails, Canceled: canceled, Elapsed: time.Since(start)}
	for _, o := range r.opts.Observers {
		o.OnRunFinished(summary)
	}
	log.Info().Int("cells", cells).Int("failed", fails).Bool("canceled", canceled).
		Dur("elapsed", summary.Elapsed).Msg("run finished")

	res := &Result{
		RunID:   runID,
		Full:    table,
		Summary: table.Summary(evaluation.DefaultQuantiles),
		Cells:   cells,
		Failed:  fails,
	}
	if canceled {
		return res, ctx.Err()
	}
	return res, nil
}

func (r *Runner) rowName(location, window string, filter []string) string {
	row := location + "_" + window
	if len(r.opts.Filters) > 1 {
		row += "_" + FilterLabel(filter)
	}
	return row
}

// FilterLabel names a feature filter in row labels.
func FilterLabel(filter []string) string {
	if len(filter) == 0 {
		return "all"
	}
	return strings.Join(filter, "+")
}

// windows returns the location's own windows, or the run's.
func (r *Runner) windows(loc ingest.Location) []model.Window {
	if loc.Windows != nil {
		return loc.Windows
	}
	return r.opts.Windows
}

// kernels builds one kernel predictor per location. With scaling the
// location's reference dataset, or the whole location without one, is the
// scaling reference.
func (r *Runner) kernels() ([]*predictor.Kernel, error) {
	out := make([]*predictor.Kernel, len(r.opts.Locations))
	needed := false
	for _, m := range r.opts.Models {
		needed = needed || m.Kind == config.ModelKernel
	}
	if !needed {
		return out, nil
	}
	for i, loc := range r.opts.Locations {
		var ref *model.Frame
		if r.opts.Scaling {
			ref = loc.Data
			if loc.Reference != nil {
				ref = loc.Reference
			}
		}
		k, err := predictor.NewKernel(ref, r.predictorOptions(r.opts.Log)...)
		if err != nil {
			return nil, fmt.Errorf("location %s: %w", loc.Name, err)
		}
		out[i] = k
	}
	return out, nil
}

func (r *Runner) predictorOptions(log zerolog.Logger) []predictor.Option {
	return []predictor.Option{
		predictor.WithScaling(r.opts.Scaling),
		predictor.WithStrict(r.opts.Strict),
		predictor.WithLogger(log),
	}
}

func (r *Runner) evaluate(j job, m ModelSpec, kernel *predictor.Kernel, log zerolog.Logger) CellResult {
	loc := r.opts.Locations[j.loc]
	c := CellResult{
		Row:      j.row,
		Location: loc.Name,
		Window:   j.window.Name,
		Filter:   j.filter,
		Model:    m.Name,
	}
	start := time.Now()

	train, test := j.window.Split(loc.Data)
	if train.Len() == 0 || test.Len() == 0 {
		c.Err = fmt.Errorf("%w: %d training, %d testing", ErrEmptyWindow, train.Len(), test.Len())
		c.Elapsed = time.Since(start)
		return c
	}

	cellLog := log.With().Str("row", j.row).Str("model", m.Name).Logger()
	pred, err := r.predict(train, test, j.filter, m, kernel, cellLog)
	if err != nil {
		c.Err = err
		c.Elapsed = time.Since(start)
		return c
	}
	c.Warnings = pred.Warnings

	actual, _ := test.Column(model.PowerColumn)
	predicted := pred.Power()
	n := min(len(actual), len(predicted))
	c.Scores = make(map[string]float64, len(r.opts.Metrics))
	for _, name := range r.opts.Metrics {
		v, err := evaluation.Metrics[name](actual[:n], predicted[:n])
		if err != nil {
			c.Err, c.Scores = fmt.Errorf("%s: %w", name, err), nil
			break
		}
		c.Scores[name] = v
	}
	c.Elapsed = time.Since(start)
	return c
}

func (r *Runner) predict(train, test *model.Frame, filter []string, m ModelSpec, kernel *predictor.Kernel, log zerolog.Logger) (*predictor.Prediction, error) {
	switch m.Kind {
	case config.ModelSeasonal, config.ModelSeasonalAuto:
		s := predictor.NewSeasonal(r.predictorOptions(log)...)
		var (
			fit *predictor.SeasonalFit
			err error
		)
		if m.Kind == config.ModelSeasonal {
			p := m.Seasonal
			if p.UseExogenous {
				p.Filter = filter
			}
			fit, err = s.Fit(train, p)
		} else {
			p := m.Auto
			if p.UseExogenous {
				p.Filter = filter
			}
			fit, err = s.FitAuto(train, p)
		}
		if err != nil {
			return nil, err
		}
		if fit.Exogenous {
			return fit.Predict(predictor.PredictParams{Testing: test})
		}
		hours := m.Hours
		if hours == 0 {
			hours = test.Len()
		}
		return fit.Predict(predictor.PredictParams{Hours: hours})

	case config.ModelKernel:
		p := m.Kernel
		p.Filter = filter
		fit, err := kernel.Fit(train, p)
		if err != nil {
			return nil, err
		}
		return fit.Predict(test)

	case config.ModelProfile:
		fit, err := predictor.NewProfile().Fit(train)
		if err != nil {
			return nil, err
		}
		return fit.Predict(test)
	}
	return nil, fmt.Errorf("%w: unknown model kind %q", predictor.ErrInvalidParameter, m.Kind)
}

func (r *Runner) record(table *results.Table, c CellResult, log zerolog.Logger) {
	if c.Err != nil {
		log.Warn().Err(c.Err).Str("row", c.Row).Str("model", c.Model).Msg("leaving cell out")
	} else {
		for metric, v := range c.Scores {
			table.Set(c.Row, Column(metric, c.Model), v)
		}
		log.Debug().Str("row", c.Row).Str("model", c.Model).Interface("scores", c.Scores).
			Dur("elapsed", c.Elapsed).Msg("cell done")
	}
	for _, o := range r.opts.Observers {
		o.OnCell(c)
	}
}
