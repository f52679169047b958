package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pv_forecast/internal/model"
)

func pvwattsBody(n int) []byte {
	resp := map[string]any{
		"errors":   []string{},
		"warnings": []string{},
		"outputs": map[string][]float64{
			"ac":   make([]float64, n),
			"tamb": make([]float64, n),
			"wspd": make([]float64, n),
		},
	}
	out := resp["outputs"].(map[string][]float64)
	for i := 0; i < n; i++ {
		out["ac"][i] = float64(i * 10)
		out["tamb"][i] = float64(i)
		out["wspd"][i] = 1.5
	}
	b, _ := json.Marshal(resp)
	return b
}

func testClient(url string) *PVWattsClient {
	c := NewPVWattsClient("key", zerolog.Nop())
	c.BaseURL = url
	c.Backoff = time.Millisecond
	return c
}

func TestParsePVWatts(t *testing.T) {
	f, err := ParsePVWatts(strings.NewReader(string(pvwattsBody(48))), 2019)
	require.NoError(t, err)

	assert.Equal(t, []string{model.FeatureTAmb, model.FeatureWSpd, model.PowerColumn}, f.Columns())
	assert.Equal(t, 48, f.Len())
	assert.Equal(t, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), f.Index()[0])
	assert.Equal(t, time.Date(2019, 1, 2, 23, 0, 0, 0, time.UTC), f.Index()[47])

	power, _ := f.Column(model.PowerColumn)
	assert.Equal(t, 470.0, power[47])
}

func TestParsePVWatts_Errors(t *testing.T) {
	_, err := ParsePVWatts(strings.NewReader(`{"errors":["bad key"]}`), 2019)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Error(), "bad key")

	_, err = ParsePVWatts(strings.NewReader(`{"outputs":{"ac":[1,2],"tamb":[1],"wspd":[1,2]}}`), 2019)
	assert.ErrorIs(t, err, ErrFormat)

	_, err = ParsePVWatts(strings.NewReader(`{"outputs":{}}`), 2019)
	assert.ErrorIs(t, err, ErrFormat)

	_, err = ParsePVWatts(strings.NewReader(`{"outputs":{"ac":[],"tamb":[],"wspd":[]}}`), 2019)
	assert.ErrorIs(t, err, ErrFormat)
}

func TestParsePVWattsKeys(t *testing.T) {
	body := `{"outputs":{"ac":[1,2],"poa":[10,20],"tcell":[5,6],"ac_annual":4321.5}}`
	f, err := ParsePVWattsKeys(strings.NewReader(body), 2019, []string{"ac", "poa", "tcell"})
	require.NoError(t, err)
	assert.Equal(t, []string{"poa", "tcell", model.PowerColumn}, f.Columns())

	poa, _ := f.Column("poa")
	assert.Equal(t, []float64{10, 20}, poa)

	_, err = ParsePVWattsKeys(strings.NewReader(body), 2019, []string{"ac_annual"})
	assert.ErrorIs(t, err, ErrFormat)

	f, err = ParsePVWattsKeys(strings.NewReader(body), 2019, []string{"poa"})
	require.NoError(t, err)
	assert.Equal(t, []string{"poa", model.PowerColumn}, f.Columns())
	power, _ := f.Column(model.PowerColumn)
	assert.Equal(t, []float64{1, 2}, power)

	_, err = ParsePVWattsKeys(strings.NewReader(`{"outputs":{"poa":[10,20]}}`), 2019, []string{"poa"})
	assert.ErrorIs(t, err, ErrFormat)
}

func TestPVWattsClient_Fetch(t *testing.T) {
	var query atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query.Store(r.URL.Query())
		w.Write(pvwattsBody(24))
	}))
	defer srv.Close()

	f, err := testClient(srv.URL).Fetch(context.Background(), DefaultPVWattsParams())
	require.NoError(t, err)
	assert.Equal(t, 24, f.Len())

	q := query.Load().(url.Values)
	assert.Equal(t, []string{"key"}, q["api_key"])
	assert.Equal(t, []string{"4"}, q["system_capacity"])
	assert.Equal(t, []string{"51.9607"}, q["lat"])
	assert.Equal(t, []string{"hourly"}, q["timeframe"])
	assert.Equal(t, []string{DatasetTMY3}, q["dataset"])
}

func TestPVWattsClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(pvwattsBody(24))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), DefaultPVWattsParams())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPVWattsClient_FallsBackToIntl(t *testing.T) {
	var datasets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ds := r.URL.Query().Get("dataset")
		datasets = append(datasets, ds)
		if ds == DatasetTMY3 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"errors":["No weather data found"]}`))
			return
		}
		w.Write(pvwattsBody(24))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), DefaultPVWattsParams())
	require.NoError(t, err)
	assert.Equal(t, []string{DatasetTMY3, DatasetIntl}, datasets)
}

func TestPVWattsClient_AddressNotRetriedWithIntl(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":["address not found"]}`))
	}))
	defer srv.Close()

	p := DefaultPVWattsParams()
	p.Address = "nowhere"
	_, err := testClient(srv.URL).Fetch(context.Background(), p)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnprocessableEntity, ae.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoadStations(t *testing.T) {
	csv := "name,lat,lon\nmuenster,51.96,7.62\nberlin,52.52,13.40\nhamburg,53.55,9.99\n"

	all, err := LoadStations(strings.NewReader(csv), 0, -1)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, Station{Name: "muenster", Lat: 51.96, Lon: 7.62}, all[0])

	some, err := LoadStations(strings.NewReader(csv), 1, 2)
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "berlin", some[0].Name)

	_, err = LoadStations(strings.NewReader(csv), 3, 1)
	assert.Error(t, err)
}

func TestBulkLoad_CachesAndSkipsFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("lat") == "0" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errors":["bad location"]}`))
			return
		}
		w.Write(pvwattsBody(24))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "cache")
	c := testClient(srv.URL)
	stations := []Station{{Name: "good one", Lat: 50, Lon: 8}, {Name: "bad", Lat: 0, Lon: 0}}

	locs, err := c.BulkLoad(context.Background(), stations, DefaultPVWattsParams(), dir)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "good one", locs[0].Name)
	assert.FileExists(t, filepath.Join(dir, "good_one.json"))

	// Second run reads the good station from the cache.
	before := calls.Load()
	locs, err = c.BulkLoad(context.Background(), stations[:1], DefaultPVWattsParams(), dir)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, before, calls.Load())
}

func TestBulkLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient("http://127.0.0.1:0").BulkLoad(ctx, []Station{{Name: "x"}}, DefaultPVWattsParams(), "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCacheName(t *testing.T) {
	assert.Equal(t, "a_b_c", cacheName("a/b c"))
}
