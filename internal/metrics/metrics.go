// Package metrics exposes run progress as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cell outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder holds the collectors of one process on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	cells       *prometheus.CounterVec
	fitDuration *prometheus.HistogramVec
	lastScore   *prometheus.GaugeVec
	runs        prometheus.Counter
	locations   prometheus.Gauge
}

// NewRecorder creates and registers all collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cells: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvforecast_cells_total",
				Help: "Evaluated (location, window, model) cells by outcome",
			},
			[]string{"model", "outcome"},
		),
		fitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pvforecast_fit_duration_seconds",
				Help:    "Time spent fitting and predicting one cell",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"model"},
		),
		lastScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pvforecast_last_score",
				Help: "Most recent score per model and metric",
			},
			[]string{"model", "metric"},
		),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pvforecast_runs_total",
			Help: "Started evaluation runs",
		}),
		locations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pvforecast_locations",
			Help: "Locations in the current run",
		}),
	}
	r.registry.MustRegister(r.cells, r.fitDuration, r.lastScore, r.runs, r.locations)
	return r
}

// RunStarted counts a run and records its location count.
func (r *Recorder) RunStarted(locations int) {
	r.runs.Inc()
	r.locations.Set(float64(locations))
}

// Cell records one evaluated cell.
func (r *Recorder) Cell(model string, elapsed time.Duration, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	r.cells.WithLabelValues(model, outcome).Inc()
	r.fitDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// Score records the latest value of a metric for a model.
func (r *Recorder) Score(model, metric string, v float64) {
	r.lastScore.WithLabelValues(model, metric).Set(v)
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
