package runner

import (
	"fmt"

	"pv_forecast/internal/config"
	"pv_forecast/internal/predictor"
	"pv_forecast/internal/sarimax"
	"pv_forecast/internal/svr"
)

// ModelSpec is one predictor configuration evaluated on every row.
type ModelSpec struct {
	Name     string
	Kind     string
	Seasonal predictor.SeasonalParams
	Auto     predictor.AutoParams
	Kernel   predictor.KernelParams
	// Hours is the horizon of seasonal fits without exogenous variables.
	// Zero means the length of the testing window.
	Hours int
}

// ModelsFromConfig converts configured models, validating orders up front.
func ModelsFromConfig(ms []config.ModelConfig) ([]ModelSpec, error) {
	out := make([]ModelSpec, 0, len(ms))
	for _, m := range ms {
		spec := ModelSpec{Name: m.Name, Kind: m.Kind, Hours: m.Hours}
		switch m.Kind {
		case config.ModelSeasonal:
			if _, err := sarimax.ParseOrder(m.Order); err != nil {
				return nil, fmt.Errorf("model %q: %w", m.Name, err)
			}
			if _, err := sarimax.ParseSeasonalOrder(m.SeasonalOrder); err != nil {
				return nil, fmt.Errorf("model %q: %w", m.Name, err)
			}
			spec.Seasonal = predictor.SeasonalParams{
				Order:         m.Order,
				SeasonalOrder: m.SeasonalOrder,
				UseExogenous:  m.UseExogenous,
			}
		case config.ModelSeasonalAuto:
			for name, v := range map[string][]int{"p": m.P, "q": m.Q, "sp": m.SP, "sq": m.SQ} {
				if _, err := sarimax.ParseRange(name, v); err != nil {
					return nil, fmt.Errorf("model %q: %w", m.Name, err)
				}
			}
			spec.Auto = predictor.AutoParams{
				P: m.P, Q: m.Q, SP: m.SP, SQ: m.SQ,
				D: m.D, SD: m.SD,
				Period:       m.Period,
				UseExogenous: m.UseExogenous,
			}
		case config.ModelKernel:
			k := predictor.DefaultKernelParams()
			if m.Kernel != "" {
				k.Kernel = svr.Kernel(m.Kernel)
			}
			if m.C != nil {
				k.C = *m.C
			}
			if m.Gamma != nil {
				k.Gamma = *m.Gamma
			}
			if m.Epsilon != nil {
				k.Epsilon = *m.Epsilon
			}
			if m.Degree != 0 {
				k.Degree = m.Degree
			}
			if m.MaxIter != 0 {
				k.MaxIter = m.MaxIter
			}
			k.Coef0 = m.Coef0
			spec.Kernel = k
		case config.ModelProfile:
		default:
			return nil, fmt.Errorf("model %q: unknown kind %q", m.Name, m.Kind)
		}
		out = append(out, spec)
	}
	return out, nil
}
