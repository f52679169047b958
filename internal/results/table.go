// Package results holds the metric table of an evaluation run.
package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"pv_forecast/internal/evaluation"
)

// AverageRow labels the row of column means in a summary table.
const AverageRow = "average"

// Table is a row-labelled table of metric values, safe for concurrent use.
// Rows and columns keep insertion order. Missing cells are blank.
type Table struct {
	mu      sync.RWMutex
	rows    []string
	columns []string
	rowSet  map[string]bool
	colSet  map[string]bool
	cells   map[string]map[string]float64
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	t := &Table{
		rowSet: make(map[string]bool),
		colSet: make(map[string]bool),
		cells:  make(map[string]map[string]float64),
	}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(c string) {
	if !t.colSet[c] {
		t.colSet[c] = true
		t.columns = append(t.columns, c)
	}
}

func (t *Table) addRow(r string) {
	if !t.rowSet[r] {
		t.rowSet[r] = true
		t.rows = append(t.rows, r)
		t.cells[r] = make(map[string]float64)
	}
}

// AddRow registers a row without values.
func (t *Table) AddRow(row string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addRow(row)
}

// Set stores a cell, creating the row and column if needed. NaN clears the
// cell.
func (t *Table) Set(row, column string, v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addRow(row)
	t.addColumn(column)
	if math.IsNaN(v) {
		delete(t.cells[row], column)
		return
	}
	t.cells[row][column] = v
}

// Get returns a cell and whether it is set.
func (t *Table) Get(row, column string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.cells[row][column]
	return v, ok
}

// Rows returns the row labels in insertion order.
func (t *Table) Rows() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.rows...)
}

// Columns returns the column labels in insertion order.
func (t *Table) Columns() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.columns...)
}

// Column returns one value per row, NaN for blank cells.
func (t *Table) Column(column string) []float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]float64, len(t.rows))
	for i, r := range t.rows {
		v, ok := t.cells[r][column]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// Summary returns a table with one row per quantile of each column, labelled
// by the quantile, followed by an "average" row. Blank cells are ignored.
func (t *Table) Summary(ps []float64) *Table {
	columns := t.Columns()
	out := New(columns...)
	for _, p := range ps {
		out.AddRow(QuantileLabel(p))
	}
	out.AddRow(AverageRow)

	for _, c := range columns {
		values := t.Column(c)
		for i, q := range evaluation.Quantiles(values, ps) {
			out.Set(QuantileLabel(ps[i]), c, evaluation.Round(q))
		}
		out.Set(AverageRow, c, evaluation.Mean(values))
	}
	return out
}

// QuantileLabel formats a quantile level as a row label ("0.0", "0.25").
func QuantileLabel(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if p == math.Trunc(p) {
		s += ".0"
	}
	return s
}

// Row is one row of a Snapshot. Nil values are blank cells.
type Row struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
}

// Snapshot is a point-in-time copy of a table.
type Snapshot struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Snapshot copies the table.
func (t *Table) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Snapshot{Columns: append([]string(nil), t.columns...)}
	for _, r := range t.rows {
		row := Row{Name: r, Values: make([]*float64, len(t.columns))}
		for i, c := range t.columns {
			if v, ok := t.cells[r][c]; ok {
				row.Values[i] = &v
			}
		}
		s.Rows = append(s.Rows, row)
	}
	return s
}

// WriteCSV writes the table with the row labels in a first column named
// indexName. Values are rounded to 2 decimals; blank cells stay empty.
func (t *Table) WriteCSV(w io.Writer, indexName string) error {
	s := t.Snapshot()
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{indexName}, s.Columns...)); err != nil {
		return err
	}
	for _, r := range s.Rows {
		record := make([]string, 0, len(r.Values)+1)
		record = append(record, r.Name)
		for _, v := range r.Values {
			record = append(record, formatCell(v))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the table to a file.
func (t *Table) SaveCSV(path, indexName string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f, indexName); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

func formatCell(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return ""
	}
	return decimal.NewFromFloat(*v).Round(2).String()
}
