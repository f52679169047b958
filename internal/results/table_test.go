package results

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pv_forecast/internal/evaluation"
)

func TestTable_SetAndGet(t *testing.T) {
	tab := New("nrmse_arima", "r2_arima")
	tab.Set("berlin_jan", "nrmse_arima", 0.31)
	tab.AddRow("berlin_feb")

	v, ok := tab.Get("berlin_jan", "nrmse_arima")
	require.True(t, ok)
	assert.Equal(t, 0.31, v)

	_, ok = tab.Get("berlin_jan", "r2_arima")
	assert.False(t, ok)
	_, ok = tab.Get("berlin_feb", "nrmse_arima")
	assert.False(t, ok)

	assert.Equal(t, []string{"berlin_jan", "berlin_feb"}, tab.Rows())
	assert.Equal(t, []string{"nrmse_arima", "r2_arima"}, tab.Columns())
}

func TestTable_SetAddsColumnsAndNaNClears(t *testing.T) {
	tab := New()
	tab.Set("a", "x", 1)
	tab.Set("a", "y", 2)
	tab.Set("a", "x", math.NaN())

	assert.Equal(t, []string{"x", "y"}, tab.Columns())
	_, ok := tab.Get("a", "x")
	assert.False(t, ok)
}

func TestTable_Column(t *testing.T) {
	tab := New("x")
	tab.Set("a", "x", 1)
	tab.AddRow("b")
	tab.Set("c", "x", 3)

	col := tab.Column("x")
	require.Len(t, col, 3)
	assert.Equal(t, 1.0, col[0])
	assert.True(t, math.IsNaN(col[1]))
	assert.Equal(t, 3.0, col[2])
}

func TestTable_Summary(t *testing.T) {
	tab := New("nrmse", "r2")
	for i, v := range []float64{1, 2, 3, 4, 5} {
		tab.Set(string(rune('a'+i)), "nrmse", v)
	}
	tab.AddRow("f")

	s := tab.Summary(evaluation.DefaultQuantiles)
	assert.Equal(t, []string{"0.0", "0.25", "0.5", "0.75", "1.0", AverageRow}, s.Rows())

	for label, want := range map[string]float64{"0.0": 1, "0.25": 2, "0.5": 3, "0.75": 4, "1.0": 5, AverageRow: 3} {
		v, ok := s.Get(label, "nrmse")
		require.True(t, ok, label)
		assert.Equal(t, want, v, label)
	}

	// All-blank column stays blank.
	_, ok := s.Get("0.5", "r2")
	assert.False(t, ok)
}

func TestTable_WriteCSV(t *testing.T) {
	tab := New("nrmse_arima", "nrmse_svr")
	tab.Set("muenster_jan", "nrmse_arima", 0.123)
	tab.Set("muenster_jan", "nrmse_svr", 0.5)
	tab.AddRow("muenster_feb")
	tab.Set("muenster_mar", "nrmse_svr", -1.255)

	var buf bytes.Buffer
	require.NoError(t, tab.WriteCSV(&buf, "location_month"))

	want := "location_month,nrmse_arima,nrmse_svr\n" +
		"muenster_jan,0.12,0.5\n" +
		"muenster_feb,,\n" +
		"muenster_mar,,-1.26\n"
	assert.Equal(t, want, buf.String())
}

func TestTable_SaveCSV(t *testing.T) {
	tab := New("x")
	tab.Set("a", "x", 1)
	path := filepath.Join(t.TempDir(), "full.csv")
	require.NoError(t, tab.SaveCSV(path, "row"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "row,x\na,1\n", string(data))
}

func TestTable_SnapshotJSON(t *testing.T) {
	tab := New("x", "y")
	tab.Set("a", "x", 1.5)

	data, err := json.Marshal(tab.Snapshot())
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":["x","y"],"rows":[{"name":"a","values":[1.5,null]}]}`, string(data))
}

func TestTable_ConcurrentSet(t *testing.T) {
	tab := New("x")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			tab.Set(QuantileLabel(float64(i)), "x", float64(i))
		}()
	}
	wg.Wait()
	assert.Len(t, tab.Rows(), 50)
}

func TestQuantileLabel(t *testing.T) {
	assert.Equal(t, "0.0", QuantileLabel(0))
	assert.Equal(t, "0.25", QuantileLabel(0.25))
	assert.Equal(t, "1.0", QuantileLabel(1))
}
