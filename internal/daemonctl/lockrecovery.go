package daemonctl

import (
	"os"
	"path/filepath"

	"github.com/simbiota/simbiotad/internal/logging"
)

// RecoverFromStaleDaemon checks pidPath for a prior run's PID. If that
// process is still alive, it returns ErrDaemonAlreadyRunning. Otherwise
// it cleans up the stale PID file and the bookkeeping store's badger
// LOCK file, left behind by a process that died without unwinding
// cleanly — bookkeeping.Open would otherwise fail forever on the stale
// lock.
func RecoverFromStaleDaemon(pidPath, bookkeepingDir string) error {
	pid, err := ReadPIDFile(pidPath)
	if err != nil {
		return nil //nolint:nilerr // no PID file means nothing to recover
	}

	if IsProcessRunning(pid) {
		return ErrDaemonAlreadyRunning
	}

	log := logging.Get("daemonctl")
	log.Warn("cleaning up stale daemon files", "stale_pid", pid)

	_ = os.Remove(pidPath)
	_ = os.Remove(filepath.Join(bookkeepingDir, "LOCK"))

	return nil
}
