package quarantine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/simbiota/simbiotad/internal/logging"
)

// ErrNotFound is returned when no quarantine entry matches a lookup.
var ErrNotFound = errors.New("quarantine: entry not found")

// Manager owns a quarantine directory and the entries moved into it.
type Manager struct {
	dir   string
	index *Index
	log   *logging.Logger
}

// Open creates (if needed) the quarantine directory with mode 0700 and
// returns a Manager over it. The directory and the files moved into it
// are root-owned, per spec §4.D.
func Open(dir string, idx *Index) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating quarantine dir %s: %w", dir, err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return nil, fmt.Errorf("setting quarantine dir mode: %w", err)
	}
	return &Manager{dir: dir, index: idx, log: logging.Get("quarantine")}, nil
}

// Add moves originalPath into the quarantine directory under a new UUID,
// sets it to mode 0600 owned by root:root, and writes its sidecar record.
// Quarantine failure is an error, not a panic: spec §7 says the file
// simply stays in place and the caller still denies + alerts.
func (m *Manager) Add(originalPath, verdict string) (*Entry, error) {
	id := uuid.New().String()
	dest := filepath.Join(m.dir, id)

	if err := atomicMove(originalPath, dest); err != nil {
		return nil, fmt.Errorf("moving %s into quarantine: %w", originalPath, err)
	}

	if err := os.Chmod(dest, 0o600); err != nil {
		m.log.Error("failed to chmod quarantined file", "path", dest, "error", err)
	}
	if err := os.Chown(dest, 0, 0); err != nil {
		m.log.Error("failed to chown quarantined file", "path", dest, "error", err)
	}

	entry := &Entry{ID: id, OriginalPath: originalPath, Timestamp: time.Now(), Verdict: verdict}
	if err := m.writeSidecar(entry); err != nil {
		return nil, fmt.Errorf("writing quarantine sidecar for %s: %w", originalPath, err)
	}

	if m.index != nil {
		_ = m.index.Put(entry)
	}

	m.log.Info("quarantined file", "original_path", originalPath, "id", id, "verdict", verdict)
	return entry, nil
}

// atomicMove renames src to dest when both are on the same filesystem,
// falling back to copy+fsync+unlink across filesystems, per spec §4.D.
func atomicMove(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	return os.Remove(src)
}

func (m *Manager) sidecarPath(id string) string {
	return filepath.Join(m.dir, "."+id+sidecarSuffix)
}

func (m *Manager) writeSidecar(e *Entry) error {
	line := fmt.Sprintf("%s\t%d\t%s\n", e.OriginalPath, e.Timestamp.Unix(), e.Verdict)
	if err := os.WriteFile(m.sidecarPath(e.ID), []byte(line), 0o600); err != nil {
		return err
	}
	return os.Chmod(m.sidecarPath(e.ID), 0o600)
}

// List returns every entry found in the quarantine directory, re-pairing
// each quarantined file with its sidecar. A quarantined file whose sidecar
// is missing or malformed is skipped and logged, not an error; sidecars
// whose file is gone are not listed.
func (m *Manager) List() ([]*Entry, error) {
	dirEntries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, sidecarSuffix) {
			continue
		}
		entry, err := m.readSidecar(name)
		if err != nil {
			m.log.Warn("orphaned quarantine file missing sidecar", "id", name, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (m *Manager) readSidecar(id string) (*Entry, error) {
	data, err := os.ReadFile(m.sidecarPath(id))
	if err != nil {
		return nil, err
	}
	fields := strings.SplitN(strings.TrimSpace(string(data)), "\t", 3)
	if len(fields) != 3 {
		return nil, fmt.Errorf("malformed sidecar for %s", id)
	}
	ts, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed sidecar timestamp for %s: %w", id, err)
	}
	return &Entry{ID: id, OriginalPath: fields[0], Timestamp: time.Unix(ts, 0), Verdict: fields[2]}, nil
}

// Remove permanently deletes a quarantined file and its sidecar.
func (m *Manager) Remove(id string) error {
	if err := os.Remove(filepath.Join(m.dir, id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(m.sidecarPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if m.index != nil {
		_ = m.index.Delete(id)
	}
	return nil
}

// Restore moves a quarantined file back to its original location and
// removes its sidecar record.
func (m *Manager) Restore(id string) error {
	entry, err := m.readSidecar(id)
	if err != nil {
		return ErrNotFound
	}
	if err := atomicMove(filepath.Join(m.dir, id), entry.OriginalPath); err != nil {
		return fmt.Errorf("restoring %s: %w", entry.OriginalPath, err)
	}
	if err := os.Remove(m.sidecarPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if m.index != nil {
		_ = m.index.Delete(id)
	}
	return nil
}
