package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pv_forecast/internal/ingest"
)

func TestResolveAPIKey(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("# keys\nNREL_API_KEY=from-file\nOTHER=x\n"), 0o644))
	t.Setenv(apiKeyEnv, "")
	os.Unsetenv(apiKeyEnv)

	key, err := resolveAPIKey("", envPath)
	require.NoError(t, err)
	assert.Equal(t, "from-file", key)

	key, err = resolveAPIKey("from-flag", envPath)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", key)

	key, err = resolveAPIKey("", filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Empty(t, key)

	// The environment wins over the file.
	t.Setenv(apiKeyEnv, "from-env")
	key, err = resolveAPIKey("", envPath)
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}

func TestBulk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[],"outputs":{"ac":[0,1],"tamb":[5,6],"wspd":[1,1]}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	list := filepath.Join(dir, "stations.csv")
	require.NoError(t, os.WriteFile(list, []byte("name,lat,lon\nberlin,52.5,13.4\nbremen,53.1,8.8\n"), 0o644))

	client := ingest.NewPVWattsClient("key", zerolog.Nop())
	client.BaseURL = srv.URL
	client.Backoff = time.Millisecond

	out := filepath.Join(dir, "out")
	require.NoError(t, bulk(context.Background(), client, ingest.DefaultPVWattsParams(), list, 1, -1, out, zerolog.Nop()))

	assert.NoFileExists(t, filepath.Join(out, "berlin.json"))
	assert.FileExists(t, filepath.Join(out, "bremen.json"))
}
