package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pv_forecast/internal/model"
)

// PVWattsURL is the NREL PVWatts v6 endpoint.
const PVWattsURL = "https://developer.nrel.gov/api/pvwatts/v6.json"

// Weather datasets accepted by PVWatts.
const (
	DatasetTMY3 = "tmy3"
	DatasetIntl = "intl"
)

// PVWattsParams describes the simulated PV system and its location.
// When Address is set it takes precedence over Lat/Lon.
type PVWattsParams struct {
	SystemCapacity float64
	ModuleType     int
	Losses         float64
	ArrayType      int
	Tilt           float64
	Azimuth        float64
	Lat            float64
	Lon            float64
	Address        string
	Radius         int
	Dataset        string
}

// DefaultPVWattsParams returns a 4 kW fixed roof-mount system in Münster.
func DefaultPVWattsParams() PVWattsParams {
	return PVWattsParams{
		SystemCapacity: 4,
		ModuleType:     0,
		Losses:         14,
		ArrayType:      1,
		Tilt:           25,
		Azimuth:        180,
		Lat:            51.9607,
		Lon:            7.6261,
		Radius:         0,
		Dataset:        DatasetTMY3,
	}
}

func (p PVWattsParams) query(apiKey string) url.Values {
	q := url.Values{}
	q.Set("api_key", apiKey)
	q.Set("system_capacity", formatFloat(p.SystemCapacity))
	q.Set("module_type", strconv.Itoa(p.ModuleType))
	q.Set("losses", formatFloat(p.Losses))
	q.Set("array_type", strconv.Itoa(p.ArrayType))
	q.Set("tilt", formatFloat(p.Tilt))
	q.Set("azimuth", formatFloat(p.Azimuth))
	if p.Address != "" {
		q.Set("address", p.Address)
	} else {
		q.Set("lat", formatFloat(p.Lat))
		q.Set("lon", formatFloat(p.Lon))
	}
	q.Set("radius", strconv.Itoa(p.Radius))
	q.Set("timeframe", "hourly")
	if p.Dataset != "" {
		q.Set("dataset", p.Dataset)
	}
	return q
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// APIError is a failed PVWatts request.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

func isRetryable(err error) bool {
	var ae *APIError
	if !errors.As(err, &ae) {
		return true // network errors are retryable
	}
	return ae.StatusCode == http.StatusTooManyRequests || ae.StatusCode >= 500
}

type pvwattsResponse struct {
	Errors   []string                   `json:"errors"`
	Warnings []string                   `json:"warnings"`
	Outputs  map[string]json.RawMessage `json:"outputs"`
}

// PVWattsOutputAC is the hourly AC output key, loaded as the power column.
const PVWattsOutputAC = "ac"

// DefaultPVWattsKeys are the hourly outputs loaded by ParsePVWatts.
var DefaultPVWattsKeys = []string{PVWattsOutputAC, model.FeatureTAmb, model.FeatureWSpd}

// PVWattsClient downloads simulated hourly PV output from PVWatts.
type PVWattsClient struct {
	BaseURL  string
	APIKey   string
	HTTP     *http.Client
	Year     int
	Attempts int
	Backoff  time.Duration
	Log      zerolog.Logger
}

// NewPVWattsClient returns a client for the public endpoint.
func NewPVWattsClient(apiKey string, log zerolog.Logger) *PVWattsClient {
	return &PVWattsClient{
		BaseURL:  PVWattsURL,
		APIKey:   apiKey,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
		Year:     2019,
		Attempts: 5,
		Backoff:  time.Second,
		Log:      log,
	}
}

// Fetch downloads and parses one location.
func (c *PVWattsClient) Fetch(ctx context.Context, p PVWattsParams) (*model.Frame, error) {
	body, err := c.FetchRaw(ctx, p)
	if err != nil {
		return nil, err
	}
	return ParsePVWatts(bytes.NewReader(body), c.Year)
}

// FetchRaw returns the raw JSON response for one location. A coordinate
// request rejected under the default dataset is retried once with the
// international dataset.
func (c *PVWattsClient) FetchRaw(ctx context.Context, p PVWattsParams) ([]byte, error) {
	body, err := c.fetchWithRetry(ctx, p)
	var ae *APIError
	if err != nil && p.Address == "" && p.Dataset != DatasetIntl && errors.As(err, &ae) {
		c.Log.Warn().Err(err).
			Float64("lat", p.Lat).Float64("lon", p.Lon).
			Msg("retrying with international dataset")
		p.Dataset = DatasetIntl
		body, err = c.fetchWithRetry(ctx, p)
	}
	return body, err
}

func (c *PVWattsClient) fetchWithRetry(ctx context.Context, p PVWattsParams) ([]byte, error) {
	attempts := max(c.Attempts, 1)
	var (
		body []byte
		err  error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		body, err = c.doRequest(ctx, p)
		if err == nil {
			return body, nil
		}
		if !isRetryable(err) || attempt == attempts-1 {
			break
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * c.Backoff
		c.Log.Debug().Err(err).Dur("wait", wait).Msg("retrying PVWatts request")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	if isRetryable(err) {
		return nil, fmt.Errorf("after %d attempts: %w", attempts, err)
	}
	return nil, err
}

func (c *PVWattsClient) doRequest(ctx context.Context, p PVWattsParams) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+p.query(c.APIKey).Encode(), nil)
	if err != nil {
		return nil, err
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var parsed pvwattsResponse
	jsonErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode != http.StatusOK {
		msgs := parsed.Errors
		if jsonErr != nil || len(msgs) == 0 {
			msgs = []string{strings.TrimSpace(string(body))}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Messages: msgs}
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("parsing JSON: %w", jsonErr)
	}
	if len(parsed.Errors) > 0 {
		return nil, &APIError{StatusCode: resp.StatusCode, Messages: parsed.Errors}
	}
	for _, w := range parsed.Warnings {
		c.Log.Warn().Str("warning", w).Msg("PVWatts")
	}
	return body, nil
}

// ParsePVWatts converts a PVWatts response into an hourly frame starting at
// January 1st of year (UTC) with columns tamb, wspd and power (the AC output
// in W).
func ParsePVWatts(r io.Reader, year int) (*model.Frame, error) {
	return ParsePVWattsKeys(r, year, DefaultPVWattsKeys)
}

// ParsePVWattsKeys is ParsePVWatts for a chosen set of hourly outputs, e.g.
// poa, dn, df or tcell. The ac output is always read and becomes the last
// column, power.
func ParsePVWattsKeys(r io.Reader, year int, keys []string) (*model.Frame, error) {
	if !slices.Contains(keys, PVWattsOutputAC) {
		keys = append(slices.Clone(keys), PVWattsOutputAC)
	}
	var resp pvwattsResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, &APIError{StatusCode: http.StatusOK, Messages: resp.Errors}
	}

	var (
		columns []string
		values  [][]float64
		power   []float64
		n       = -1
	)
	for _, key := range keys {
		raw, ok := resp.Outputs[key]
		if !ok {
			return nil, fmt.Errorf("%w: response has no %q output", ErrFormat, key)
		}
		var v []float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: output %q is not an hourly series: %v", ErrFormat, key, err)
		}
		if n >= 0 && len(v) != n {
			return nil, fmt.Errorf("%w: output %q has %d values, expected %d", ErrFormat, key, len(v), n)
		}
		n = len(v)
		if key == PVWattsOutputAC {
			power = v
			continue
		}
		columns = append(columns, key)
		values = append(values, v)
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: response has no hourly output", ErrFormat)
	}
	columns = append(columns, model.PowerColumn)
	values = append(values, power)

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return model.NewFrame(model.HourlyIndex(start, n), columns, values)
}

// LoadPVWattsFile parses a cached PVWatts response.
func LoadPVWattsFile(path string, year int) (*model.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePVWatts(f, year)
}
