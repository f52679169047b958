package predictor

import (
	"fmt"

	"pv_forecast/internal/model"
	"pv_forecast/internal/scaling"
	"pv_forecast/internal/svr"
)

// KernelParams configures a kernel regression fit.
type KernelParams struct {
	Filter  []string
	Kernel  svr.Kernel
	C       float64
	Gamma   float64
	Epsilon float64
	Degree  int
	Coef0   float64
	MaxIter int
}

// DefaultKernelParams returns rbf with C=1e3, gamma=0.1 and epsilon=0.1.
func DefaultKernelParams() KernelParams {
	d := svr.DefaultParams()
	return KernelParams{
		Kernel:  d.Kernel,
		C:       d.C,
		Gamma:   d.Gamma,
		Epsilon: d.Epsilon,
		Degree:  d.Degree,
		MaxIter: d.MaxIter,
	}
}

func (p KernelParams) estimator() svr.Params {
	out := svr.DefaultParams()
	if p.Kernel != "" {
		out.Kernel = p.Kernel
	}
	out.C = p.C
	out.Gamma = p.Gamma
	out.Epsilon = p.Epsilon
	out.Coef0 = p.Coef0
	if p.Degree > 0 {
		out.Degree = p.Degree
	}
	if p.MaxIter > 0 {
		out.MaxIter = p.MaxIter
	}
	return out
}

// Kernel maps weather features to power with support vector regression.
// Scaling statistics come from a reference dataset that spans the value range
// of every window the predictor will see.
type Kernel struct {
	cfg       config
	reference *scaling.StandardScaler
}

// NewKernel returns a kernel predictor. reference is required when scaling
// is enabled.
func NewKernel(reference *model.Frame, opts ...Option) (*Kernel, error) {
	k := &Kernel{cfg: newConfig(opts)}
	if !k.cfg.scaling {
		return k, nil
	}
	if reference == nil || reference.Len() == 0 {
		return nil, fmt.Errorf("%w: scaling requires a reference dataset", ErrInvalidParameter)
	}
	var err error
	k.reference, err = scaling.Fit(reference)
	if err != nil {
		return nil, err
	}
	return k, nil
}

// KernelFit is the outcome of one fit.
type KernelFit struct {
	Training *model.Frame
	Model    *svr.Model
	Columns  []string

	scaler *scaling.StandardScaler
	cfg    config
}

// Fit trains on the filtered columns of data.
func (k *Kernel) Fit(data *model.Frame, p KernelParams) (*KernelFit, error) {
	if data == nil || data.Len() == 0 {
		return nil, fmt.Errorf("%w: training data is empty", ErrInvalidParameter)
	}
	cols, err := model.ResolveFilter(data, p.Filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrColumnMismatch, err)
	}
	features := model.Features(cols)
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no feature columns in %v", ErrInvalidParameter, cols)
	}

	selected, err := selectColumns(data, cols, false)
	if err != nil {
		return nil, err
	}
	fit := &KernelFit{Columns: cols, cfg: k.cfg}
	if k.reference != nil {
		fit.scaler, err = k.reference.Subset(cols)
		if err != nil {
			return nil, fmt.Errorf("%w: reference dataset: %w", ErrColumnMismatch, err)
		}
		if selected, err = scale(fit.scaler, selected); err != nil {
			return nil, err
		}
	}
	fit.Training = selected

	X, err := selected.Matrix(features...)
	if err != nil {
		return nil, err
	}
	y, _ := selected.Column(model.PowerColumn)
	fit.Model, err = svr.Fit(X, y, p.estimator())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	if !fit.Model.Converged {
		k.cfg.log.Warn().Int("iterations", fit.Model.Iterations).Msg("kernel regression did not converge")
	}
	return fit, nil
}

// Predict applies the fitted column set and scaling to data and returns the
// predicted power, clipped at zero.
func (f *KernelFit) Predict(data *model.Frame) (*Prediction, error) {
	if data == nil || data.Len() == 0 {
		return nil, fmt.Errorf("%w: prediction data is empty", ErrInvalidParameter)
	}
	selected, err := selectColumns(data, f.Columns, true)
	if err != nil {
		return nil, err
	}
	if selected, err = scale(f.scaler, selected); err != nil {
		return nil, err
	}
	X, err := selected.Matrix(model.Features(f.Columns)...)
	if err != nil {
		return nil, err
	}
	power, err := f.Model.Predict(X)
	if err != nil {
		return nil, err
	}
	if f.scaler != nil {
		if power, err = f.scaler.InverseTransformColumn(model.PowerColumn, power); err != nil {
			return nil, err
		}
	}
	return newPrediction(selected.Index(), power, nil)
}
