package mapper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/syncengine/internal/domain"
)

func writeMappingsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMappingsFromFile_RegistersOverrides(t *testing.T) {
	m := newTestMapper(ModeStrict)
	path := writeMappingsFile(t, `
systems:
  tracker:
    completed: Resolved
  vcs:
    failed: Rejected
`)

	require.NoError(t, m.LoadMappingsFromFile(path))

	native, err := m.MapStatus(domain.SystemTracker, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, "Resolved", native)

	native, err = m.MapStatus(domain.SystemVCS, domain.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, "Rejected", native)
}

func TestLoadMappingsFromFile_MissingFile(t *testing.T) {
	m := newTestMapper(ModeStrict)
	err := m.LoadMappingsFromFile(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestLoadMappingsFromFile_InvalidYAML(t *testing.T) {
	m := newTestMapper(ModeStrict)
	path := writeMappingsFile(t, "systems: [this is not a map")

	err := m.LoadMappingsFromFile(path)
	require.Error(t, err)
}
