package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the compact date form used in run configurations.
const DateLayout = "20060102"

// Window is a training range followed by a testing range, both given as
// inclusive calendar dates.
type Window struct {
	Name      string
	TrainFrom time.Time
	TrainTo   time.Time
	TestFrom  time.Time
	TestTo    time.Time
}

// ParseWindow builds a window from four dates in DateLayout or ISO form.
func ParseWindow(name, trainFrom, trainTo, testFrom, testTo string) (Window, error) {
	dates := make([]time.Time, 4)
	for i, s := range []string{trainFrom, trainTo, testFrom, testTo} {
		d, err := ParseDate(s)
		if err != nil {
			return Window{}, fmt.Errorf("window %q: %w", name, err)
		}
		dates[i] = d
	}
	w := Window{Name: name, TrainFrom: dates[0], TrainTo: dates[1], TestFrom: dates[2], TestTo: dates[3]}
	if w.TrainTo.Before(w.TrainFrom) || w.TestTo.Before(w.TestFrom) {
		return Window{}, fmt.Errorf("window %q: range ends before it starts", name)
	}
	return w, nil
}

// ParseDate accepts "20190104" or "2019-01-04".
func ParseDate(s string) (time.Time, error) {
	for _, layout := range []string{DateLayout, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q", s)
}

// Split returns the training and testing slices of f.
func (w Window) Split(f *Frame) (train, test *Frame) {
	return f.SliceDates(w.TrainFrom, w.TrainTo), f.SliceDates(w.TestFrom, w.TestTo)
}

// MonthlyWindows returns one window per month of year: training on the last
// 28 days of the month, testing on the first two days of the next month.
// February always trains on the 1st to the 28th, so leap days are skipped.
// December trains from the 2nd to the 29th and tests on the 30th and 31st.
func MonthlyWindows(year int) []Window {
	windows := make([]Window, 0, 12)
	for m := time.January; m <= time.December; m++ {
		first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
		next := first.AddDate(0, 1, 0)
		w := Window{
			Name:      strings.ToLower(first.Format("Jan")),
			TrainFrom: next.AddDate(0, 0, -28),
			TrainTo:   next.AddDate(0, 0, -1),
			TestFrom:  next,
			TestTo:    next.AddDate(0, 0, 1),
		}
		if m == time.February {
			w.TrainFrom = first
			w.TrainTo = time.Date(year, m, 28, 0, 0, 0, 0, time.UTC)
		}
		if m == time.December {
			w.TrainFrom = first.AddDate(0, 0, 1)
			w.TrainTo = time.Date(year, m, 29, 0, 0, 0, 0, time.UTC)
			w.TestFrom = time.Date(year, m, 30, 0, 0, 0, 0, time.UTC)
			w.TestTo = time.Date(year, m, 31, 0, 0, 0, 0, time.UTC)
		}
		windows = append(windows, w)
	}
	return windows
}
