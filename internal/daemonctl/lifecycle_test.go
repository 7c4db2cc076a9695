package daemonctl_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/simbiota/simbiotad/internal/daemonctl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRemovePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simbiota.pid")

	require.NoError(t, daemonctl.WritePIDFile(path))

	pid, err := daemonctl.ReadPIDFile(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, daemonctl.RemovePIDFile(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestIsDaemonRunningWithOwnPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simbiota.pid")
	require.NoError(t, daemonctl.WritePIDFile(path))

	assert.True(t, daemonctl.IsDaemonRunning(path), "our own pid must be reported as running")
}

func TestIsDaemonRunningWithNoPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.pid")
	assert.False(t, daemonctl.IsDaemonRunning(path))
}

func TestIsProcessRunningForDeadPID(t *testing.T) {
	// PID 1 belongs to init inside any container/namespace this test
	// runs in; an arbitrarily large PID is a safer bet for "definitely
	// not a live process" across environments.
	assert.False(t, daemonctl.IsProcessRunning(1<<30))
}

func TestRecoverFromStaleDaemonWithNoPIDFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	err := daemonctl.RecoverFromStaleDaemon(filepath.Join(dir, "simbiota.pid"), filepath.Join(dir, "bookkeeping"))
	assert.NoError(t, err)
}

func TestRecoverFromStaleDaemonCleansUpDeadProcess(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "simbiota.pid")
	bkDir := filepath.Join(dir, "bookkeeping")
	require.NoError(t, os.MkdirAll(bkDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(bkDir, "LOCK"), []byte("stale"), 0o644))
	require.NoError(t, os.WriteFile(pidPath, []byte("1073741824"), 0o644)) // 1<<30, not a live pid

	require.NoError(t, daemonctl.RecoverFromStaleDaemon(pidPath, bkDir))

	_, err := os.Stat(pidPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(bkDir, "LOCK"))
	assert.True(t, os.IsNotExist(err))
}

func TestRecoverFromStaleDaemonRefusesWhileLive(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "simbiota.pid")
	require.NoError(t, daemonctl.WritePIDFile(pidPath)) // our own, very much live, pid

	err := daemonctl.RecoverFromStaleDaemon(pidPath, filepath.Join(dir, "bookkeeping"))
	assert.ErrorIs(t, err, daemonctl.ErrDaemonAlreadyRunning)
}
