// Package ingest loads power and weather time series into frames.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrFormat is returned when an input file does not follow its expected layout.
var ErrFormat = errors.New("format error")

// TimeColumn is the timestamp column of every CSV input.
const TimeColumn = "time"

// timeLayouts are tried in order when parsing timestamps.
var timeLayouts = []string{
	time.DateTime,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.DateOnly,
}

// table is a row-oriented CSV time series before alignment.
type table struct {
	index   []time.Time
	columns []string
	rows    [][]float64
}

// readTable parses a CSV whose first column is "time" and whose other columns
// are numeric. Rows with an unparseable timestamp are skipped; unparseable
// values become NaN.
func readTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	// Read header
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	t := &table{}
	for _, c := range header[1:] {
		t.columns = append(t.columns, strings.TrimSpace(c))
	}
	lineNum := 1 // header was line 1

	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		ts, err := parseTime(record[0])
		if err != nil {
			// Skip rows without a usable timestamp
			continue
		}
		row := make([]float64, len(t.columns))
		for i := range row {
			row[i] = math.NaN()
			if i+1 < len(record) {
				if v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64); err == nil {
					row[i] = v
				}
			}
		}
		t.index = append(t.index, ts)
		t.rows = append(t.rows, row)
	}

	if len(t.index) == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrFormat)
	}
	return t, nil
}

func validateHeader(header []string) error {
	if len(header) < 2 {
		return fmt.Errorf("%w: expected at least 2 columns, got %d", ErrFormat, len(header))
	}
	first := strings.TrimPrefix(strings.TrimSpace(header[0]), "\uFEFF")
	if first != TimeColumn {
		return fmt.Errorf("%w: expected column 0 to be %q, got %q", ErrFormat, TimeColumn, header[0])
	}
	return nil
}

func (t *table) column(name string) int {
	for i, c := range t.columns {
		if c == name {
			return i
		}
	}
	return -1
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q", s)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
