package daemonctl

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Paths collects the filesystem locations simbiotad needs for its own
// bookkeeping, as opposed to the config-driven database/quarantine paths.
type Paths struct {
	PIDFile        string
	BookkeepingDir string
	StatusFile     string
}

// DefaultPaths returns the root-mode paths (spec §5: "PID recorded at
// /run/simbiota.pid") when running as root, falling back to XDG-rooted
// paths under the invoking user's data/state directories otherwise — the
// same root-vs-user split the teacher's cmd/sweepd and pkg/sweep/config
// apply via xdg.DataHome.
func DefaultPaths() Paths {
	if os.Geteuid() == 0 {
		return Paths{
			PIDFile:        "/run/simbiota.pid",
			BookkeepingDir: "/var/lib/simbiota/bookkeeping",
			StatusFile:     "/run/simbiota.status",
		}
	}

	dataDir := filepath.Join(xdg.DataHome, "simbiota")
	stateDir := filepath.Join(xdg.StateHome, "simbiota")
	return Paths{
		PIDFile:        filepath.Join(stateDir, "simbiota.pid"),
		BookkeepingDir: filepath.Join(dataDir, "bookkeeping"),
		StatusFile:     filepath.Join(stateDir, "simbiota.status"),
	}
}
