package predictor

import (
	"fmt"

	"pv_forecast/internal/model"
	"pv_forecast/internal/solar"
)

// Profile is a climatology baseline: the mean training power for each hour
// of day.
type Profile struct{}

func NewProfile() *Profile {
	return &Profile{}
}

// ProfileFit holds the hourly profile of a training window.
type ProfileFit struct {
	Profile solar.PVProfile
}

// Fit builds the hourly profile from the power column of data.
func (p *Profile) Fit(data *model.Frame) (*ProfileFit, error) {
	if data == nil || data.Len() == 0 {
		return nil, fmt.Errorf("%w: training data is empty", ErrInvalidParameter)
	}
	power, err := data.Column(model.PowerColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrColumnMismatch, err)
	}
	return &ProfileFit{Profile: solar.BuildProfile(data.Index(), power)}, nil
}

// Predict evaluates the profile on every timestamp of data.
func (f *ProfileFit) Predict(data *model.Frame) (*Prediction, error) {
	if data == nil || data.Len() == 0 {
		return nil, fmt.Errorf("%w: prediction data is empty", ErrInvalidParameter)
	}
	power := make([]float64, data.Len())
	for i, ts := range data.Index() {
		power[i] = f.Profile.At(ts)
	}
	return newPrediction(data.Index(), power, nil)
}
