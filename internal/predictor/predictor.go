// Package predictor wraps the forecasting estimators behind a common
// fit/predict contract: column selection, scaling, warnings and clipping.
package predictor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"pv_forecast/internal/model"
	"pv_forecast/internal/scaling"
)

var (
	// ErrInvalidParameter is returned for malformed or missing arguments.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrColumnMismatch is returned when a frame does not carry the columns a
	// fit needs.
	ErrColumnMismatch = errors.New("column mismatch")
)

type config struct {
	scaling bool
	strict  bool
	log     zerolog.Logger
}

func newConfig(opts []Option) config {
	cfg := config{scaling: true, log: zerolog.Nop()}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// Option configures a predictor.
type Option func(*config)

// WithScaling enables or disables standardization of columns. Enabled by default.
func WithScaling(on bool) Option {
	return func(c *config) { c.scaling = on }
}

// WithStrict makes numerically unstable estimator solves fail instead of
// being stabilised.
func WithStrict(on bool) Option {
	return func(c *config) { c.strict = on }
}

// WithLogger sets the logger used for warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.log = l }
}

// warnings collects non-fatal notices and logs them as they arrive.
type warnings struct {
	log  zerolog.Logger
	msgs []string
}

func (w *warnings) add(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.log.Warn().Msg(msg)
	w.msgs = append(w.msgs, msg)
}

// Prediction is a forecast power series aligned to its index.
type Prediction struct {
	Frame    *model.Frame
	Warnings []string
}

// Power returns the predicted power values.
func (p *Prediction) Power() []float64 {
	v, _ := p.Frame.Column(model.PowerColumn)
	return v
}

// newPrediction builds a power-only frame with values clipped at zero.
func newPrediction(index []time.Time, power []float64, w []string) (*Prediction, error) {
	clipped := make([]float64, len(power))
	for i, v := range power {
		clipped[i] = math.Max(0, v)
	}
	frame, err := model.NewFrame(index, []string{model.PowerColumn}, [][]float64{clipped})
	if err != nil {
		return nil, err
	}
	return &Prediction{Frame: frame, Warnings: w}, nil
}

// selectColumns returns data restricted to cols. A missing power column is
// filled with zeros when allowMissingPower is set, since forecasting frames
// need not carry the target.
func selectColumns(data *model.Frame, cols []string, allowMissingPower bool) (*model.Frame, error) {
	values := make([][]float64, len(cols))
	for i, c := range cols {
		if c == model.PowerColumn && allowMissingPower && !data.Has(c) {
			values[i] = make([]float64, data.Len())
			continue
		}
		v, err := data.Column(c)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrColumnMismatch, err)
		}
		values[i] = v
	}
	return model.NewFrame(data.Index(), cols, values)
}

func scale(s *scaling.StandardScaler, f *model.Frame) (*model.Frame, error) {
	if s == nil {
		return f, nil
	}
	out, err := s.Transform(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrColumnMismatch, err)
	}
	return out, nil
}
