package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper clears viper's global state between tests; Load relies on the
// package-global viper instance, same as the teacher's LoadConfig.
func resetViper() {
	viper.Reset()
}

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "syncd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Global.BatchSize)
	assert.Equal(t, 3, cfg.Global.MaxRetries)
	assert.Equal(t, "priority_based", cfg.Conflict.DefaultStrategy)
	assert.True(t, cfg.Conflict.AutoResolve)
	assert.Equal(t, 8085, cfg.Realtime.Port)
	assert.Equal(t, 10000, cfg.Realtime.MaxConnections)
	assert.Equal(t, 0.1, cfg.Monitor.AlertThresholds.SyncFailureRate)
	assert.Equal(t, 0, cfg.Conflict.SystemPriorities["relational"])
	assert.Equal(t, 1, cfg.Conflict.SystemPriorities["tracker"])
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	resetViper()

	path := writeTempYAML(t, `
global:
  batch_size: 200
realtime:
  port: 9090
conflict:
  default_strategy: timestamp_based
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Global.BatchSize)
	assert.Equal(t, 9090, cfg.Realtime.Port)
	assert.Equal(t, "timestamp_based", cfg.Conflict.DefaultStrategy)
	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Global.MaxRetries)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	resetViper()
	path := writeTempYAML(t, `
realtime:
  port: 9090
`)

	t.Setenv("SYNCD_REALTIME_PORT", "7070")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Realtime.Port)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	resetViper()

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Global.BatchSize)
}

func TestValidate_RejectsUnknownConflictStrategy(t *testing.T) {
	resetViper()
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Conflict.DefaultStrategy = "rock_paper_scissors"
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsOutOfRangePort(t *testing.T) {
	resetViper()
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Realtime.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNonPositiveBatchSize(t *testing.T) {
	resetViper()
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Global.BatchSize = 0
	assert.Error(t, cfg.Validate())
}
