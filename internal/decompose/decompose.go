// Package decompose splits a series into trend, seasonal and residual parts.
package decompose

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"pv_forecast/internal/model"
)

// Component column names of a decomposition frame.
const (
	Observed = "observed"
	Trend    = "trend"
	Seasonal = "seasonal"
	Resid    = "resid"
)

// ErrTooShort is returned when a series does not cover two full periods.
var ErrTooShort = errors.New("series shorter than two periods")

// Result holds an additive decomposition: Observed = Trend + Seasonal + Resid
// wherever Trend is defined. Trend and Resid are NaN for the first and last
// half period.
type Result struct {
	Period   int
	Observed []float64
	Trend    []float64
	Seasonal []float64
	Resid    []float64
}

// Additive decomposes x with a centered moving average trend and a seasonal
// component made of the mean detrended value at each phase, shifted to zero
// mean.
func Additive(x []float64, period int) (*Result, error) {
	if period < 2 {
		return nil, fmt.Errorf("period must be at least 2, got %d", period)
	}
	if len(x) < 2*period {
		return nil, fmt.Errorf("%w: %d observations, period %d", ErrTooShort, len(x), period)
	}

	r := &Result{
		Period:   period,
		Observed: append([]float64(nil), x...),
		Trend:    movingAverage(x, period),
		Seasonal: make([]float64, len(x)),
		Resid:    make([]float64, len(x)),
	}

	detrended := make([]float64, len(x))
	floats.SubTo(detrended, x, r.Trend)

	phase := make([]float64, period)
	for i := 0; i < period; i++ {
		var vals []float64
		for j := i; j < len(x); j += period {
			if !math.IsNaN(detrended[j]) {
				vals = append(vals, detrended[j])
			}
		}
		phase[i] = stat.Mean(vals, nil)
	}
	floats.AddConst(-stat.Mean(phase, nil), phase)

	for i := range x {
		r.Seasonal[i] = phase[i%period]
		r.Resid[i] = detrended[i] - r.Seasonal[i]
	}
	return r, nil
}

// movingAverage is the centered moving average of length period, using a
// 2 x period average for even periods.
func movingAverage(x []float64, period int) []float64 {
	weights := make([]float64, period)
	if period%2 == 0 {
		weights = make([]float64, period+1)
		weights[0], weights[period] = 0.5, 0.5
		for i := 1; i < period; i++ {
			weights[i] = 1
		}
	} else {
		for i := range weights {
			weights[i] = 1
		}
	}
	floats.Scale(1/float64(period), weights)

	half := len(weights) / 2
	out := make([]float64, len(x))
	for i := range x {
		if i < half || i+half >= len(x) {
			out[i] = math.NaN()
			continue
		}
		out[i] = floats.Dot(weights, x[i-half:i+half+1])
	}
	return out
}

// Frame decomposes one column of f and returns a frame with the observed,
// trend, seasonal and resid columns on the same index.
func Frame(f *model.Frame, column string, period int) (*model.Frame, error) {
	x, err := f.Column(column)
	if err != nil {
		return nil, err
	}
	r, err := Additive(x, period)
	if err != nil {
		return nil, err
	}
	return model.NewFrame(f.Index(),
		[]string{Observed, Trend, Seasonal, Resid},
		[][]float64{r.Observed, r.Trend, r.Seasonal, r.Resid})
}
