package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-diet-check/internal/config"
	"mcp-diet-check/internal/pipeline"
	"mcp-diet-check/internal/storage"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, config.TransportStdio, cfg.Transport)
	assert.Equal(t, pipeline.DefaultOptions(), cfg.PipelineOptions())
	assert.Equal(t, storage.KindJSON, cfg.StoreOptions().Kind)
	assert.Equal(t, 50, cfg.ClientConfig().PageSize)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
transport: http
port: 9090
store:
  kind: sqlite
  db_path: /tmp/diet.db
  user: alice
openfoodfacts:
  timeout: 3s
search:
  max_results: 5
  safe_only_without_profile: empty
medical_conditions:
  - condition: gout
    match: "'proteins' in n && n['proteins'] > 20.0"
    reason: "Gout: high protein"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.TransportHTTP, cfg.Transport)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	assert.Equal(t, storage.Options{Kind: storage.KindSQLite, ProfilePath: cfg.Store.ProfilePath, DBPath: "/tmp/diet.db", User: "alice"}, cfg.StoreOptions())
	assert.Equal(t, 3*time.Second, cfg.ClientConfig().Timeout)

	opts := cfg.PipelineOptions()
	assert.Equal(t, 5, opts.MaxResults)
	assert.Equal(t, 50, opts.MaxChecked)
	assert.Equal(t, pipeline.SafeOnlyEmpty, opts.SafeOnlyWithoutProfile)

	require.Len(t, cfg.MedicalConditions, 1)
	assert.Equal(t, "gout", cfg.MedicalConditions[0].Condition)
}

func TestLoad_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unknown key":    "colour: blue\n",
		"bad transport":  "transport: carrier-pigeon\n",
		"bad store":      "store:\n  kind: redis\n",
		"bad log level":  "log:\n  level: loud\n",
		"bad mode":       "search:\n  safe_only_without_profile: maybe\n",
		"zero results":   "search:\n  max_results: 0\n",
		"bad condition":  "medical_conditions:\n  - condition: x\n    match: 'n['\n    reason: r\n",
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = config.Load(t.TempDir())
	require.Error(t, err)
}

func TestValidate_CollectsAll(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Transport = "smoke"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "transport")
	assert.Contains(t, err.Error(), "log.format")
}
