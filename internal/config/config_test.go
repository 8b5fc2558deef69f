package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracelab/opexec/pkg/execstore"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "fs", cfg.Details.Backend)
	assert.Equal(t, 2, cfg.Engine.Workers)
	assert.Equal(t, time.Minute, cfg.Sweeper.MarkInterval)
	assert.Equal(t, 5*time.Minute, cfg.Sweeper.PurgeInterval)
	assert.Equal(t, execstore.DefaultRecordTime, cfg.Availability.RecordDefault)
	assert.Equal(t, execstore.DefaultDetailsTime, cfg.Availability.DetailsMax)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opexec.yaml")
	content := `
server:
  port: 9090
store:
  path: /var/lib/opexec/executions.db
sweeper:
  mark_interval: 30s
logging:
  level: debug
  json: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/var/lib/opexec/executions.db", cfg.Store.Path)
	assert.Equal(t, 30*time.Second, cfg.Sweeper.MarkInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.JSON)

	// Untouched sections keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 64, cfg.Engine.QueueDepth)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("OPEXEC_SERVER_PORT", "7070")
	t.Setenv("OPEXEC_LOGGING_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadRejectsBadBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opexec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("details:\n  backend: gopher\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "details.backend")
}

func TestLoadRequiresBucketForS3(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opexec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("details:\n  backend: s3\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestAvailabilityConversion(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	eng := cfg.Availability.Engine()
	assert.Equal(t, execstore.DefaultAvailabilityConfig(), eng)
}
