// Package scaling standardizes frame columns to zero mean and unit variance.
package scaling

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"pv_forecast/internal/model"
)

// ErrNotFitted is returned when a column has no fitted statistics.
var ErrNotFitted = errors.New("scaler not fitted for column")

// Normalization holds z-score parameters for a single column.
type Normalization struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// StandardScaler keeps one Normalization per column. It is immutable once
// fitted.
type StandardScaler struct {
	columns []string
	params  map[string]Normalization
}

// Fit computes population mean and standard deviation for every column of f.
// A zero standard deviation is replaced by 1.
func Fit(f *model.Frame) (*StandardScaler, error) {
	if f.Len() == 0 {
		return nil, fmt.Errorf("fitting scaler: empty frame")
	}
	s := &StandardScaler{params: make(map[string]Normalization)}
	for _, c := range f.Columns() {
		v, err := f.Column(c)
		if err != nil {
			return nil, err
		}
		s.columns = append(s.columns, c)
		s.params[c] = ComputeNormalization(v)
	}
	return s, nil
}

// ComputeNormalization returns the z-score parameters of values.
func ComputeNormalization(values []float64) Normalization {
	mean, std := stat.PopMeanStdDev(values, nil)
	// Guard against zero std.
	if std < 1e-10 {
		std = 1
	}
	return Normalization{Mean: mean, Std: std}
}

// Columns returns the fitted column names.
func (s *StandardScaler) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Params returns the statistics of a column.
func (s *StandardScaler) Params(column string) (Normalization, error) {
	p, ok := s.params[column]
	if !ok {
		return Normalization{}, fmt.Errorf("%w: %q", ErrNotFitted, column)
	}
	return p, nil
}

// Subset returns a scaler restricted to the given columns.
func (s *StandardScaler) Subset(columns []string) (*StandardScaler, error) {
	out := &StandardScaler{params: make(map[string]Normalization, len(columns))}
	for _, c := range columns {
		p, err := s.Params(c)
		if err != nil {
			return nil, err
		}
		out.columns = append(out.columns, c)
		out.params[c] = p
	}
	return out, nil
}

// TransformColumn standardizes values with the statistics of column.
func (s *StandardScaler) TransformColumn(column string, values []float64) ([]float64, error) {
	p, err := s.Params(column)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - p.Mean) / p.Std
	}
	return out, nil
}

// InverseTransformColumn maps standardized values back to the column's scale.
func (s *StandardScaler) InverseTransformColumn(column string, values []float64) ([]float64, error) {
	p, err := s.Params(column)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v*p.Std + p.Mean
	}
	return out, nil
}

// Transform standardizes every column of f. Each column must have been fitted.
func (s *StandardScaler) Transform(f *model.Frame) (*model.Frame, error) {
	return s.apply(f, s.TransformColumn)
}

// InverseTransform undoes Transform.
func (s *StandardScaler) InverseTransform(f *model.Frame) (*model.Frame, error) {
	return s.apply(f, s.InverseTransformColumn)
}

func (s *StandardScaler) apply(f *model.Frame, fn func(string, []float64) ([]float64, error)) (*model.Frame, error) {
	cols := f.Columns()
	values := make([][]float64, len(cols))
	for i, c := range cols {
		v, err := f.Column(c)
		if err != nil {
			return nil, err
		}
		values[i], err = fn(c, v)
		if err != nil {
			return nil, err
		}
	}
	return model.NewFrame(f.Index(), cols, values)
}
