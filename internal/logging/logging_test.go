package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pv_forecast/internal/config"
)

func TestNew_FileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	log, err := New(config.LoggingConfig{Level: "warn", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("location", "berlin").Msg("shown")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "berlin", entry["location"])
	assert.Contains(t, entry, "time")
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "chatty", OutputPath: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestConsole(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, Console(true).GetLevel())
	assert.Equal(t, zerolog.InfoLevel, Console(false).GetLevel())
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, zerolog.DebugLevel, "console")
	log.Debug().Msg("fitting")
	assert.Contains(t, buf.String(), "fitting")
	assert.Contains(t, buf.String(), "DBG")
}
