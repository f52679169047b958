package evaluation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"pv_forecast/internal/model"
)

// DefaultQuantiles are the summary levels written next to full result tables.
var DefaultQuantiles = []float64{0, 0.25, 0.5, 0.75, 1}

// Quantiles returns the requested quantiles of values, skipping NaN, with
// linear interpolation between closest ranks. All results are NaN when no
// finite value is present.
func Quantiles(values []float64, ps []float64) []float64 {
	sorted := finite(values)
	sort.Float64s(sorted)

	out := make([]float64, len(ps))
	for i, p := range ps {
		out[i] = quantile(sorted, p)
	}
	return out
}

// Mean returns the mean of values skipping NaN, or NaN when nothing is left.
func Mean(values []float64) float64 {
	v := finite(values)
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	lo = max(0, min(lo, n-1))
	hi = max(0, min(hi, n-1))
	frac := pos - math.Floor(pos)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// FeatureCorrelation is the Pearson correlation of one feature with power.
type FeatureCorrelation struct {
	Feature string
	R       float64
}

// Correlation returns the correlation of every non-power column with power,
// in column order.
func Correlation(f *model.Frame) ([]FeatureCorrelation, error) {
	power, err := f.Column(model.PowerColumn)
	if err != nil {
		return nil, err
	}
	var out []FeatureCorrelation
	for _, c := range model.Features(f.Columns()) {
		x, err := f.Column(c)
		if err != nil {
			return nil, err
		}
		out = append(out, FeatureCorrelation{Feature: c, R: stat.Correlation(x, power, nil)})
	}
	return out, nil
}
