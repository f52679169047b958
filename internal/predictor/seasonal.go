package predictor

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"pv_forecast/internal/model"
	"pv_forecast/internal/sarimax"
	"pv_forecast/internal/scaling"
)

// SeasonalParams configures a fit with fixed orders.
type SeasonalParams struct {
	// Order is (p, d, q).
	Order []int
	// SeasonalOrder is (P, D, Q, s); empty for none.
	SeasonalOrder []int
	Filter        []string
	UseExogenous  bool
}

// AutoParams configures an order search. P, Q, SP and SQ are (min, max)
// pairs. Nil D or SD lets the search choose the differencing order.
type AutoParams struct {
	P, Q, SP, SQ []int
	D, SD        *int
	Period       int
	Filter       []string
	UseExogenous bool
}

// Seasonal forecasts power with a seasonal ARIMA model, optionally driven by
// exogenous weather columns.
type Seasonal struct {
	cfg config
}

func NewSeasonal(opts ...Option) *Seasonal {
	return &Seasonal{cfg: newConfig(opts)}
}

// SeasonalFit is the outcome of one fit.
type SeasonalFit struct {
	// Training holds the selected columns as handed to the estimator,
	// standardized when scaling is on.
	Training   *model.Frame
	Model      *sarimax.Model
	Columns    []string
	Exogenous  bool
	Candidates []sarimax.Candidate
	Warnings   []string

	scaler *scaling.StandardScaler
	cfg    config
}

// Fit estimates a model with fixed orders on data.
func (s *Seasonal) Fit(data *model.Frame, p SeasonalParams) (*SeasonalFit, error) {
	order, err := sarimax.ParseOrder(p.Order)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	seasonal, err := sarimax.ParseSeasonalOrder(p.SeasonalOrder)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}

	fit, y, exog, err := s.prepare(data, p.Filter, p.UseExogenous)
	if err != nil {
		return nil, err
	}
	fit.Model, err = sarimax.Fit(y, exog, order, seasonal, sarimax.Options{Strict: s.cfg.strict})
	if err != nil {
		return nil, fmt.Errorf("fitting %s%s: %w", order, seasonal, err)
	}
	return fit, nil
}

// FitAuto searches the order ranges and keeps the model with the lowest AIC.
func (s *Seasonal) FitAuto(data *model.Frame, p AutoParams) (*SeasonalFit, error) {
	var r sarimax.Ranges
	for _, rng := range []struct {
		name string
		v    []int
		dst  *sarimax.Range
	}{
		{"p", p.P, &r.P},
		{"q", p.Q, &r.Q},
		{"P", p.SP, &r.SP},
		{"Q", p.SQ, &r.SQ},
	} {
		parsed, err := sarimax.ParseRange(rng.name, rng.v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		*rng.dst = parsed
	}
	r.D, r.SD, r.Period = p.D, p.SD, p.Period

	fit, y, exog, err := s.prepare(data, p.Filter, p.UseExogenous)
	if err != nil {
		return nil, err
	}
	fit.Model, fit.Candidates, err = sarimax.AutoFit(y, exog, r, sarimax.Options{Strict: s.cfg.strict})
	for _, c := range fit.Candidates {
		ev := s.cfg.log.Debug().Str("order", c.Order.String()).Str("seasonal_order", c.Seasonal.String())
		if c.Err != nil {
			ev.Err(c.Err).Msg("candidate failed")
			continue
		}
		ev.Float64("aic", c.AIC).Msg("candidate fitted")
	}
	if err != nil {
		return nil, err
	}
	s.cfg.log.Info().
		Str("order", fit.Model.Order.String()).
		Str("seasonal_order", fit.Model.Seasonal.String()).
		Float64("aic", fit.Model.AIC).
		Msg("selected order")
	return fit, nil
}

// prepare selects and scales the columns and splits target from regressors.
func (s *Seasonal) prepare(data *model.Frame, filter []string, useExog bool) (*SeasonalFit, []float64, mat.Matrix, error) {
	if data == nil || data.Len() == 0 {
		return nil, nil, nil, fmt.Errorf("%w: training data is empty", ErrInvalidParameter)
	}
	w := &warnings{log: s.cfg.log}

	var cols []string
	if useExog {
		var err error
		cols, err = model.ResolveFilter(data, filter)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%w: %w", ErrColumnMismatch, err)
		}
	} else {
		if len(filter) > 0 {
			w.add("filter %v ignored: fitting without exogenous variables uses only %q", filter, model.PowerColumn)
		}
		cols = []string{model.PowerColumn}
	}
	features := model.Features(cols)
	if useExog && len(features) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: exogenous fit requested but %v has no feature column", ErrInvalidParameter, cols)
	}

	selected, err := selectColumns(data, cols, false)
	if err != nil {
		return nil, nil, nil, err
	}
	fit := &SeasonalFit{Columns: cols, Exogenous: useExog, cfg: s.cfg}
	if s.cfg.scaling {
		fit.scaler, err = scaling.Fit(selected)
		if err != nil {
			return nil, nil, nil, err
		}
		if selected, err = scale(fit.scaler, selected); err != nil {
			return nil, nil, nil, err
		}
	}
	fit.Training = selected
	fit.Warnings = w.msgs

	y, _ := selected.Column(model.PowerColumn)
	var exog mat.Matrix
	if fit.Exogenous {
		m, err := selected.Matrix(features...)
		if err != nil {
			return nil, nil, nil, err
		}
		exog = m
	}
	return fit, y, exog, nil
}

// PredictParams selects the forecast horizon. Testing is required for fits
// with exogenous variables; Hours is used otherwise and defaults to the
// training length.
type PredictParams struct {
	Hours   int
	Testing *model.Frame
}

// Predict forecasts power. The result is inverse-scaled and clipped at zero.
func (f *SeasonalFit) Predict(p PredictParams) (*Prediction, error) {
	w := &warnings{log: f.cfg.log}

	var (
		index []time.Time
		fc    []float64
		err   error
	)
	if f.Exogenous {
		if p.Testing == nil {
			return nil, fmt.Errorf("%w: testing data is required for a model fitted with exogenous variables", ErrInvalidParameter)
		}
		if p.Testing.Len() == 0 {
			return nil, fmt.Errorf("%w: testing data is empty", ErrInvalidParameter)
		}
		if p.Hours != 0 {
			w.add("hours=%d ignored: horizon is the length of the testing data (%d)", p.Hours, p.Testing.Len())
		}
		testing, err := selectColumns(p.Testing, f.Columns, true)
		if err != nil {
			return nil, err
		}
		if testing, err = scale(f.scaler, testing); err != nil {
			return nil, err
		}
		exog, err := testing.Matrix(model.Features(f.Columns)...)
		if err != nil {
			return nil, err
		}
		index = testing.Index()
		if fc, err = f.Model.Forecast(len(index), exog); err != nil {
			return nil, err
		}
	} else {
		if p.Testing != nil {
			w.add("testing data ignored: model was fitted without exogenous variables")
		}
		h := p.Hours
		if h == 0 {
			h = f.Training.Len()
		}
		if h < 0 {
			return nil, fmt.Errorf("%w: hours must be positive, got %d", ErrInvalidParameter, h)
		}
		last := f.Training.Index()[f.Training.Len()-1]
		index = model.HourlyIndex(last.Add(time.Hour), h)
		if fc, err = f.Model.Forecast(h, nil); err != nil {
			return nil, err
		}
	}

	if f.scaler != nil {
		if fc, err = f.scaler.InverseTransformColumn(model.PowerColumn, fc); err != nil {
			return nil, err
		}
	}
	return newPrediction(index, fc, w.msgs)
}
