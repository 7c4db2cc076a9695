package daemonctl_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/simbiota/simbiotad/internal/daemonctl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteStatusReadyRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, daemonctl.WriteStatusReady(path))

	status, err := daemonctl.ReadStatus(path)
	require.NoError(t, err)
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Empty(t, status.Error)
}

func TestWriteStatusErrorRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, daemonctl.WriteStatusError(path, errors.New("fanotify_init: permission denied")))

	status, err := daemonctl.ReadStatus(path)
	require.NoError(t, err)
	assert.Equal(t, "error", status.Status)
	assert.Contains(t, status.Error, "permission denied")
}

func TestRemoveStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, daemonctl.WriteStatusReady(path))
	require.NoError(t, daemonctl.RemoveStatus(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
