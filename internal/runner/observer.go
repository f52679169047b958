package runner

import (
	"time"

	"pv_forecast/internal/metrics"
)

// RunInfo describes a run as it starts.
type RunInfo struct {
	RunID     string
	Locations []string
	Windows   []string
	Models    []string
	Columns   []string
	Rows      int
}

// CellResult is the outcome of one model on one row.
type CellResult struct {
	RunID    string
	Row      string
	Location string
	Window   string
	Filter   []string
	Model    string
	// Scores is keyed by metric name; empty when Err is set.
	Scores   map[string]float64
	Err      error
	Warnings []string
	Elapsed  time.Duration
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Cells    int
	Failed   int
	Canceled bool
	Elapsed  time.Duration
}

// Observer receives run progress. Methods may be called from several
// goroutines.
type Observer interface {
	OnRunStarted(RunInfo)
	OnCell(CellResult)
	OnRunFinished(Summary)
}

type metricsObserver struct {
	rec *metrics.Recorder
}

// ObserveMetrics returns an observer that feeds a Prometheus recorder.
func ObserveMetrics(rec *metrics.Recorder) Observer {
	return metricsObserver{rec: rec}
}

func (o metricsObserver) OnRunStarted(info RunInfo) {
	o.rec.RunStarted(len(info.Locations))
}

func (o metricsObserver) OnCell(c CellResult) {
	o.rec.Cell(c.Model, c.Elapsed, c.Err)
	for metric, v := range c.Scores {
		o.rec.Score(c.Model, metric, v)
	}
}

func (o metricsObserver) OnRunFinished(Summary) {}
