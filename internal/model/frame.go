package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// PowerColumn is the forecast target present in every dataset.
const PowerColumn = "power"

var (
	// ErrUnknownColumn is returned when a column is not part of a frame's schema.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrShape is returned when index and column lengths disagree.
	ErrShape = errors.New("frame shape mismatch")
)

// Frame is an hourly time-indexed table of named float64 columns.
// Columns are stored column-major and keep their insertion order.
type Frame struct {
	index   []time.Time
	columns []string
	values  map[string][]float64
}

// NewFrame builds a frame from an index and column data. values[i] belongs to
// columns[i]. The index must be strictly increasing.
func NewFrame(index []time.Time, columns []string, values [][]float64) (*Frame, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("%w: %d column names for %d columns", ErrShape, len(columns), len(values))
	}
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return nil, fmt.Errorf("%w: index not strictly increasing at row %d", ErrShape, i)
		}
	}

	f := &Frame{
		index:  index,
		values: make(map[string][]float64, len(columns)),
	}
	for i, name := range columns {
		if _, dup := f.values[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrShape, name)
		}
		if len(values[i]) != len(index) {
			return nil, fmt.Errorf("%w: column %q has %d rows, index has %d", ErrShape, name, len(values[i]), len(index))
		}
		f.columns = append(f.columns, name)
		f.values[name] = values[i]
	}
	return f, nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.index)
}

// Index returns the timestamps. The slice must not be modified.
func (f *Frame) Index() []time.Time {
	return f.index
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Has reports whether the frame has a column.
func (f *Frame) Has(name string) bool {
	_, ok := f.values[name]
	return ok
}

// Column returns the values of a column. The slice must not be modified.
func (f *Frame) Column(name string) ([]float64, error) {
	v, ok := f.values[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return v, nil
}

// Select returns a frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	values := make([][]float64, len(names))
	for i, name := range names {
		v, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return NewFrame(f.index, names, values)
}

// Drop returns a frame without the named columns. Unknown names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	out := &Frame{index: f.index, values: make(map[string][]float64, len(f.columns))}
	for _, c := range f.columns {
		if skip[c] {
			continue
		}
		out.columns = append(out.columns, c)
		out.values[c] = f.values[c]
	}
	return out
}

// WithColumn returns a frame with the column added, or replaced in place when
// it already exists.
func (f *Frame) WithColumn(name string, vals []float64) (*Frame, error) {
	if len(vals) != len(f.index) {
		return nil, fmt.Errorf("%w: column %q has %d rows, index has %d", ErrShape, name, len(vals), len(f.index))
	}
	out := &Frame{index: f.index, values: make(map[string][]float64, len(f.columns)+1)}
	out.columns = append(out.columns, f.columns...)
	for c, v := range f.values {
		out.values[c] = v
	}
	if _, ok := out.values[name]; !ok {
		out.columns = append(out.columns, name)
	}
	out.values[name] = vals
	return out, nil
}

// Slice returns rows [i, j).
func (f *Frame) Slice(i, j int) *Frame {
	i = max(0, min(i, len(f.index)))
	j = max(i, min(j, len(f.index)))
	out := &Frame{index: f.index[i:j], values: make(map[string][]float64, len(f.columns))}
	out.columns = append(out.columns, f.columns...)
	for c, v := range f.values {
		out.values[c] = v[i:j]
	}
	return out
}

// SliceDates returns the rows whose calendar date lies within [from, to],
// both days included. Only the calendar fields of from and to are used; they
// are interpreted in the index's location.
func (f *Frame) SliceDates(from, to time.Time) *Frame {
	if len(f.index) == 0 {
		return f.Slice(0, 0)
	}
	loc := f.index[0].Location()
	start := startOfDay(from, loc)
	end := startOfDay(to, loc).AddDate(0, 0, 1)

	i := searchTime(f.index, start)
	j := searchTime(f.index, end)
	return f.Slice(i, j)
}

// Matrix copies the named columns into a rows x len(cols) matrix.
func (f *Frame) Matrix(cols ...string) (*mat.Dense, error) {
	if len(cols) == 0 || len(f.index) == 0 {
		return nil, fmt.Errorf("%w: empty matrix (%d rows, %d columns)", ErrShape, len(f.index), len(cols))
	}
	m := mat.NewDense(len(f.index), len(cols), nil)
	for j, c := range cols {
		v, err := f.Column(c)
		if err != nil {
			return nil, err
		}
		m.SetCol(j, v)
	}
	return m, nil
}

// Round returns a copy with every value rounded half away from zero to the
// given number of decimal places.
func (f *Frame) Round(places int) *Frame {
	scale := math.Pow(10, float64(places))
	out := &Frame{index: f.index, values: make(map[string][]float64, len(f.columns))}
	out.columns = append(out.columns, f.columns...)
	for c, v := range f.values {
		r := make([]float64, len(v))
		for i, x := range v {
			r[i] = math.Round(x*scale) / scale
		}
		out.values[c] = r
	}
	return out
}

// TimeRange returns the first and last timestamps.
func (f *Frame) TimeRange() (TimeRange, bool) {
	if len(f.index) == 0 {
		return TimeRange{}, false
	}
	return TimeRange{Start: f.index[0], End: f.index[len(f.index)-1]}, true
}

type TimeRange struct {
	Start time.Time
	End   time.Time
}

// HourlyIndex returns n hourly timestamps starting at start.
func HourlyIndex(start time.Time, n int) []time.Time {
	idx := make([]time.Time, n)
	for i := range idx {
		idx[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return idx
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// searchTime returns the first position whose timestamp is not before t.
func searchTime(index []time.Time, t time.Time) int {
	return sort.Search(len(index), func(i int) bool {
		return !index[i].Before(t)
	})
}
