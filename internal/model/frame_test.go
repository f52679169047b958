package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

func makeFrame(t *testing.T, hours int) *Frame {
	t.Helper()
	power := make([]float64, hours)
	tamb := make([]float64, hours)
	for i := range power {
		power[i] = float64(i)
		tamb[i] = float64(i) / 10
	}
	f, err := NewFrame(HourlyIndex(start, hours), []string{PowerColumn, FeatureTAmb}, [][]float64{power, tamb})
	require.NoError(t, err)
	return f
}

func TestNewFrame_Validation(t *testing.T) {
	idx := HourlyIndex(start, 3)

	_, err := NewFrame(idx, []string{"a"}, [][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrShape)

	_, err = NewFrame(idx, []string{"a", "a"}, [][]float64{{1, 2, 3}, {1, 2, 3}})
	assert.ErrorIs(t, err, ErrShape)

	_, err = NewFrame([]time.Time{start, start}, []string{"a"}, [][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestFrame_SelectAndColumn(t *testing.T) {
	f := makeFrame(t, 5)

	sel, err := f.Select(FeatureTAmb)
	require.NoError(t, err)
	assert.Equal(t, []string{FeatureTAmb}, sel.Columns())
	assert.Equal(t, 5, sel.Len())

	_, err = f.Select("bogus")
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = f.Column("bogus")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestFrame_DropAndWithColumn(t *testing.T) {
	f := makeFrame(t, 3)

	d := f.Drop(FeatureTAmb, "missing")
	assert.Equal(t, []string{PowerColumn}, d.Columns())

	w, err := d.WithColumn(FeatureWSpd, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []string{PowerColumn, FeatureWSpd}, w.Columns())

	replaced, err := w.WithColumn(PowerColumn, []float64{9, 9, 9})
	require.NoError(t, err)
	assert.Equal(t, []string{PowerColumn, FeatureWSpd}, replaced.Columns())
	p, _ := replaced.Column(PowerColumn)
	assert.Equal(t, []float64{9, 9, 9}, p)

	// Original untouched
	p, _ = f.Column(PowerColumn)
	assert.Equal(t, []float64{0, 1, 2}, p)

	_, err = w.WithColumn("short", []float64{1})
	assert.ErrorIs(t, err, ErrShape)
}

func TestFrame_SliceDates(t *testing.T) {
	f := makeFrame(t, 24*5)

	// Jan 2 through Jan 3 inclusive: 48 rows.
	s := f.SliceDates(time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC), time.Date(2019, 1, 3, 0, 0, 0, 0, time.UTC))
	require.Equal(t, 48, s.Len())
	assert.Equal(t, time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC), s.Index()[0])
	assert.Equal(t, time.Date(2019, 1, 3, 23, 0, 0, 0, time.UTC), s.Index()[47])

	p, _ := s.Column(PowerColumn)
	assert.InDelta(t, 24.0, p[0], 1e-9)

	empty := f.SliceDates(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 0, empty.Len())
}

func TestFrame_Matrix(t *testing.T) {
	f := makeFrame(t, 4)

	m, err := f.Matrix(FeatureTAmb, PowerColumn)
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 2, c)
	assert.InDelta(t, 0.3, m.At(3, 0), 1e-9)
	assert.InDelta(t, 3.0, m.At(3, 1), 1e-9)

	_, err = f.Matrix()
	assert.ErrorIs(t, err, ErrShape)
}

func TestFrame_Round(t *testing.T) {
	f, err := NewFrame(HourlyIndex(start, 2), []string{PowerColumn}, [][]float64{{1.005, 2.4449}})
	require.NoError(t, err)

	p, _ := f.Round(2).Column(PowerColumn)
	assert.InDelta(t, 2.44, p[1], 1e-9)
}

func TestResolveFilter(t *testing.T) {
	f := makeFrame(t, 3)

	cols, err := ResolveFilter(f, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{PowerColumn, FeatureTAmb}, cols)

	cols, err = ResolveFilter(f, []string{FeatureTAmb})
	require.NoError(t, err)
	assert.Equal(t, []string{FeatureTAmb, PowerColumn}, cols)

	cols, err = ResolveFilter(f, []string{FeatureTAmb, PowerColumn, FeatureTAmb})
	require.NoError(t, err)
	assert.Equal(t, []string{FeatureTAmb, PowerColumn}, cols)

	_, err = ResolveFilter(f, []string{FeatureHumidity})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	assert.Equal(t, []string{FeatureTAmb}, Features(cols))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "W", Describe(PowerColumn).Unit)
	assert.Equal(t, "custom", Describe("custom").Name)
}
