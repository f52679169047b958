package main

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pv_forecast/internal/config"
	"pv_forecast/internal/model"
)

func TestParseInts(t *testing.T) {
	v, err := parseInts("2, 0,1")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, v)

	v, err = parseInts("")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = parseInts("2,x")
	assert.Error(t, err)
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"tamb", "wspd"}, parseList("tamb, ,wspd"))
	assert.Nil(t, parseList(""))
}

func TestBuildOptions(t *testing.T) {
	o, err := buildOptions(config.ModelKernel, "1,0,1", "", "tamb", "rmse", "20190104", "20190131", "20190201", "20190202")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, 1}, o.order)
	assert.Nil(t, o.seasonalOrder)
	assert.Equal(t, []string{"tamb"}, o.kernel.Filter)
	assert.Equal(t, time.Date(2019, 2, 2, 0, 0, 0, 0, time.UTC), o.window.TestTo)

	_, err = buildOptions("lstm", "", "", "", "rmse", "20190104", "20190131", "20190201", "20190202")
	assert.ErrorContains(t, err, "unknown model")

	_, err = buildOptions(config.ModelProfile, "", "", "", "mae", "20190104", "20190131", "20190201", "20190202")
	assert.ErrorContains(t, err, "unknown metric")

	_, err = buildOptions(config.ModelProfile, "", "", "", "rmse", "20190131", "20190104", "20190201", "20190202")
	assert.Error(t, err)
}

func dailyFrame(t *testing.T, days int) *model.Frame {
	t.Helper()
	index := model.HourlyIndex(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), days*24)
	power := make([]float64, len(index))
	tamb := make([]float64, len(index))
	for i, ts := range index {
		power[i] = math.Max(0, 500*math.Sin(math.Pi*float64(ts.Hour()-6)/12))
		tamb[i] = 10 + power[i]/50
	}
	f, err := model.NewFrame(index, []string{model.FeatureTAmb, model.PowerColumn}, [][]float64{tamb, power})
	require.NoError(t, err)
	return f
}

func TestForecast_Profile(t *testing.T) {
	o, err := buildOptions(config.ModelProfile, "", "", "", "rmse", "20190104", "20190131", "20190201", "20190202")
	require.NoError(t, err)

	actual, pred, err := forecast(dailyFrame(t, 40), o, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 48, actual.Len())

	v, err := score("rmse", actual, pred)
	require.NoError(t, err)
	assert.InDelta(t, 0, v, 1e-9)

	var buf bytes.Buffer
	require.NoError(t, writePrediction(&buf, actual, pred))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 49)
	assert.Equal(t, "time,actual,predicted", lines[0])
	assert.Equal(t, "2019-02-01 00:00:00,0.00,0.00", lines[1])
}

func TestForecast_EmptyWindow(t *testing.T) {
	o, err := buildOptions(config.ModelProfile, "", "", "", "rmse", "20200104", "20200131", "20200201", "20200202")
	require.NoError(t, err)
	_, _, err = forecast(dailyFrame(t, 10), o, zerolog.Nop())
	assert.ErrorContains(t, err, "window selects")
}
