package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recwave.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, PolicyReject, cfg.ResubmitPolicy)
	assert.Equal(t, 0, cfg.ProgressCadence)
	assert.Empty(t, cfg.StoragePath)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FullFile(t *testing.T) {
	path := writeConfig(t, `
resubmit_policy: preempt
progress_cadence: 500
storage_path: /tmp/recwave.db
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, PolicyPreempt, cfg.ResubmitPolicy)
	assert.Equal(t, 500, cfg.ProgressCadence)
	assert.Equal(t, "/tmp/recwave.db", cfg.StoragePath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `storage_path: out.db`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, PolicyReject, cfg.ResubmitPolicy)
	assert.Equal(t, "out.db", cfg.StoragePath)
}

func TestLoad_RejectsUnknownPolicy(t *testing.T) {
	path := writeConfig(t, `resubmit_policy: maybe`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resubmit_policy")
}

func TestLoad_RejectsNegativeCadence(t *testing.T) {
	path := writeConfig(t, `progress_cadence: -1`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
