package predictor

import (
	"bytes"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pv_forecast/internal/model"
)

// syntheticWeather generates hourly power driven by a daily irradiance curve
// with per-day cloudiness, plus ambient temperature and wind speed.
func syntheticWeather(t *testing.T, days int, seed uint64) *model.Frame {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, 0))
	n := days * 24
	power := make([]float64, n)
	tamb := make([]float64, n)
	wspd := make([]float64, n)
	cloud := 1.0
	for i := 0; i < n; i++ {
		h := i % 24
		if h == 0 {
			cloud = 0.6 + 0.4*rng.Float64()
		}
		irr := 0.0
		if h >= 6 && h <= 18 {
			irr = math.Sin(math.Pi * float64(h-6) / 12)
		}
		power[i] = 3000 * irr * cloud
		tamb[i] = 15 + 8*math.Sin(2*math.Pi*float64(h-9)/24) + rng.NormFloat64()*0.5
		wspd[i] = 3 + rng.Float64()
	}
	idx := model.HourlyIndex(time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC), n)
	f, err := model.NewFrame(idx,
		[]string{model.PowerColumn, model.FeatureTAmb, model.FeatureWSpd},
		[][]float64{power, tamb, wspd})
	require.NoError(t, err)
	return f
}

func split(f *model.Frame, trainHours int) (*model.Frame, *model.Frame) {
	return f.Slice(0, trainHours), f.Slice(trainHours, f.Len())
}

var seasonalParams = SeasonalParams{
	Order:         []int{1, 0, 0},
	SeasonalOrder: []int{1, 0, 0, 24},
	Filter:        []string{model.FeatureTAmb},
	UseExogenous:  true,
}

func TestSeasonal_FitPredictExogenous(t *testing.T) {
	train, test := split(syntheticWeather(t, 12, 1), 240)

	fit, err := NewSeasonal().Fit(train, seasonalParams)
	require.NoError(t, err)
	assert.True(t, fit.Exogenous)
	assert.Equal(t, []string{model.FeatureTAmb, model.PowerColumn}, fit.Columns)
	assert.Empty(t, fit.Warnings)
	require.Len(t, fit.Model.Exog, 1)

	pred, err := fit.Predict(PredictParams{Testing: test})
	require.NoError(t, err)
	assert.Equal(t, test.Index(), pred.Frame.Index())
	assert.Len(t, pred.Power(), 48)
	for _, v := range pred.Power() {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestSeasonal_PredictRequiresTestingData(t *testing.T) {
	train, _ := split(syntheticWeather(t, 12, 2), 240)

	fit, err := NewSeasonal().Fit(train, seasonalParams)
	require.NoError(t, err)

	_, err = fit.Predict(PredictParams{Hours: 24})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestSeasonal_HoursIgnoredWithTestingData(t *testing.T) {
	train, test := split(syntheticWeather(t, 12, 3), 240)

	fit, err := NewSeasonal().Fit(train, seasonalParams)
	require.NoError(t, err)

	pred, err := fit.Predict(PredictParams{Hours: 5, Testing: test})
	require.NoError(t, err)
	assert.Len(t, pred.Power(), test.Len())
	require.Len(t, pred.Warnings, 1)
	assert.Contains(t, pred.Warnings[0], "hours=5 ignored")
}

func TestSeasonal_TestingWithoutPowerColumn(t *testing.T) {
	train, test := split(syntheticWeather(t, 12, 4), 240)

	fit, err := NewSeasonal().Fit(train, seasonalParams)
	require.NoError(t, err)

	weatherOnly := test.Drop(model.PowerColumn)
	withPower, err := fit.Predict(PredictParams{Testing: test})
	require.NoError(t, err)
	without, err := fit.Predict(PredictParams{Testing: weatherOnly})
	require.NoError(t, err)
	assert.InDeltaSlice(t, withPower.Power(), without.Power(), 1e-9)

	_, err = fit.Predict(PredictParams{Testing: test.Drop(model.FeatureTAmb)})
	assert.ErrorIs(t, err, ErrColumnMismatch)
}

func TestSeasonal_FilterIgnoredWithoutExogenous(t *testing.T) {
	train, _ := split(syntheticWeather(t, 12, 5), 240)

	var buf bytes.Buffer
	log := zerolog.New(&buf)

	filtered, err := NewSeasonal(WithLogger(log)).Fit(train, SeasonalParams{
		Order:         []int{1, 0, 0},
		SeasonalOrder: []int{1, 0, 0, 24},
		Filter:        []string{model.FeatureTAmb, model.FeatureWSpd},
	})
	require.NoError(t, err)
	require.Len(t, filtered.Warnings, 1)
	assert.Contains(t, filtered.Warnings[0], "ignored")
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.False(t, filtered.Exogenous)
	assert.Equal(t, []string{model.PowerColumn}, filtered.Columns)

	plain, err := NewSeasonal().Fit(train, SeasonalParams{
		Order:         []int{1, 0, 0},
		SeasonalOrder: []int{1, 0, 0, 24},
	})
	require.NoError(t, err)
	assert.Empty(t, plain.Warnings)

	a, err := filtered.Predict(PredictParams{Hours: 24})
	require.NoError(t, err)
	b, err := plain.Predict(PredictParams{Hours: 24})
	require.NoError(t, err)
	assert.Equal(t, a.Power(), b.Power())
	assert.Equal(t, filtered.Model.AR, plain.Model.AR)
}

func TestSeasonal_DefaultHorizonIsTrainingLength(t *testing.T) {
	train, test := split(syntheticWeather(t, 12, 6), 240)

	fit, err := NewSeasonal().Fit(train, SeasonalParams{
		Order:         []int{1, 0, 0},
		SeasonalOrder: []int{1, 0, 0, 24},
	})
	require.NoError(t, err)

	pred, err := fit.Predict(PredictParams{})
	require.NoError(t, err)
	require.Len(t, pred.Power(), train.Len())
	last := train.Index()[train.Len()-1]
	assert.Equal(t, last.Add(time.Hour), pred.Frame.Index()[0])

	withTesting, err := fit.Predict(PredictParams{Hours: 12, Testing: test})
	require.NoError(t, err)
	assert.Len(t, withTesting.Power(), 12)
	require.Len(t, withTesting.Warnings, 1)
	assert.Contains(t, withTesting.Warnings[0], "testing data ignored")

	_, err = fit.Predict(PredictParams{Hours: -1})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestSeasonal_InvalidParameters(t *testing.T) {
	train, _ := split(syntheticWeather(t, 12, 7), 240)
	s := NewSeasonal()

	_, err := s.Fit(train, SeasonalParams{Order: []int{1, 0}})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = s.Fit(train, SeasonalParams{Order: []int{1, 0, 0}, SeasonalOrder: []int{1, 0, 0}})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = s.Fit(train, SeasonalParams{Order: []int{1, 0, 0}, Filter: []string{model.FeatureHumidity}, UseExogenous: true})
	assert.ErrorIs(t, err, ErrColumnMismatch)

	_, err = s.Fit(nil, SeasonalParams{Order: []int{1, 0, 0}})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestSeasonal_ExogenousWithoutFeatures(t *testing.T) {
	train, _ := split(syntheticWeather(t, 12, 7), 240)
	powerOnly, err := train.Select(model.PowerColumn)
	require.NoError(t, err)

	_, err = NewSeasonal().Fit(powerOnly, SeasonalParams{Order: []int{1, 0, 0}, UseExogenous: true})
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = NewSeasonal().FitAuto(powerOnly, AutoParams{P: []int{1, 1}, Q: []int{0, 0}, SP: []int{0, 0}, SQ: []int{0, 0}, Period: 24, UseExogenous: true})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestSeasonal_ScalingRoundTrip(t *testing.T) {
	train, _ := split(syntheticWeather(t, 12, 8), 240)

	fit, err := NewSeasonal().Fit(train, seasonalParams)
	require.NoError(t, err)
	require.NotNil(t, fit.scaler)

	back, err := fit.scaler.InverseTransform(fit.Training)
	require.NoError(t, err)
	for _, c := range fit.Columns {
		want, _ := train.Column(c)
		got, _ := back.Column(c)
		assert.InDeltaSlice(t, want, got, 1e-9, c)
	}
}

func TestSeasonal_WithoutScaling(t *testing.T) {
	train, test := split(syntheticWeather(t, 12, 9), 240)

	fit, err := NewSeasonal(WithScaling(false)).Fit(train, seasonalParams)
	require.NoError(t, err)
	assert.Nil(t, fit.scaler)

	raw, _ := train.Column(model.PowerColumn)
	got, _ := fit.Training.Column(model.PowerColumn)
	assert.Equal(t, raw, got)

	pred, err := fit.Predict(PredictParams{Testing: test})
	require.NoError(t, err)
	assert.Len(t, pred.Power(), test.Len())
}

func TestSeasonal_FitAuto(t *testing.T) {
	train, test := split(syntheticWeather(t, 12, 10), 240)
	zero := 0

	fit, err := NewSeasonal().FitAuto(train, AutoParams{
		P:            []int{0, 1},
		Q:            []int{0, 0},
		SP:           []int{0, 1},
		SQ:           []int{0, 0},
		D:            &zero,
		SD:           &zero,
		Filter:       []string{model.FeatureTAmb},
		UseExogenous: true,
	})
	require.NoError(t, err)
	assert.Len(t, fit.Candidates, 4)
	require.NotNil(t, fit.Model)
	assert.Equal(t, 24, fit.Model.Seasonal.S)

	pred, err := fit.Predict(PredictParams{Testing: test})
	require.NoError(t, err)
	assert.Len(t, pred.Power(), test.Len())

	_, err = NewSeasonal().FitAuto(train, AutoParams{P: []int{1}, Q: []int{0, 0}, SP: []int{0, 0}, SQ: []int{0, 0}})
	assert.ErrorIs(t, err, ErrInvalidParameter)
}
