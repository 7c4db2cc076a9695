package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/simbiota/simbiotad/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadMinimalConfig(t *testing.T) {
	path := writeConfig(t, `
monitor:
  paths:
    - path: /usr/bin
      dir: true
      mask: ["OPEN_EXEC_PERM"]
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultDetectorClass, cfg.Detector.Class)
	assert.Equal(t, config.DefaultThreshold, cfg.Detector.Config.Threshold)
	require.Len(t, cfg.Monitor.Paths, 1)
	assert.Equal(t, "/usr/bin", cfg.Monitor.Paths[0].Path)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadRejectsMountAndFilesystemTogether(t *testing.T) {
	path := writeConfig(t, `
monitor:
  paths:
    - path: /
      mount: true
      filesystem: true
      mask: ["OPEN_PERM"]
`)

	_, err := config.Load(path)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadRejectsEmailEnabledWithoutRecipients(t *testing.T) {
	path := writeConfig(t, `
monitor:
  paths:
    - path: /usr/bin
      mask: ["OPEN_EXEC_PERM"]
email:
  enabled: true
`)

	_, err := config.Load(path)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadRejectsInvalidLoggerLevel(t *testing.T) {
	path := writeConfig(t, `
monitor:
  paths:
    - path: /usr/bin
      mask: ["OPEN_EXEC_PERM"]
logger:
  - output: console
    level: verbose
    target: stderr
`)

	_, err := config.Load(path)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestDefaultConfigIsSelfConsistent(t *testing.T) {
	cfg := config.Default()
	require.NotEmpty(t, cfg.Monitor.Paths)
	assert.Equal(t, config.DefaultDetectorClass, cfg.Detector.Class)
	assert.True(t, cfg.Quarantine.Enabled)
}
