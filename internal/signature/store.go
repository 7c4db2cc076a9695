package signature

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/simbiota/simbiotad/internal/bookkeeping"
	"github.com/simbiota/simbiotad/internal/logging"
)

const bookkeepingKeyPrefix = "signature:last_reload:"

// reloadRecord is the bookkeeping metadata kept about the last successful
// load, so a restart can log how stale the on-disk database file is
// relative to the last time this process actually parsed it.
type reloadRecord struct {
	Path        string    `json:"path"`
	LoadedAt    time.Time `json:"loaded_at"`
	EntryCount  int       `json:"entry_count"`
	SchemaBuilt int       `json:"schema"`
}

// Store owns the current signature Snapshot and publishes new ones
// atomically. A nil *Snapshot is never observable once the store has
// loaded successfully at least once.
type Store struct {
	snapshot atomic.Pointer[Snapshot]
	bk       *bookkeeping.Store
	log      *logging.Logger
}

// New creates a Store. bk may be nil, in which case reload bookkeeping is
// skipped (used in tests).
func New(bk *bookkeeping.Store) *Store {
	return &Store{bk: bk, log: logging.Get("signature")}
}

// Current returns the active snapshot, or nil if Load has never succeeded.
func (s *Store) Current() *Snapshot {
	return s.snapshot.Load()
}

// Load parses the database file at path and publishes it as the new
// snapshot. It is used both for the initial startup load and for reloads
// triggered by the database watcher. On parse failure the previous
// snapshot, if any, is left untouched — callers decide whether that is
// fatal (startup) or merely alert-worthy (runtime reload).
func (s *Store) Load(path string, defaultThreshold int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening signature database %s: %w", path, err)
	}
	defer f.Close()

	var sigs []Signature
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sig, err := parseLine(line)
		if err != nil {
			return fmt.Errorf("signature database %s:%d: %w", path, lineNo, err)
		}
		sigs = append(sigs, sig)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading signature database %s: %w", path, err)
	}

	snap := &Snapshot{
		Signatures:       sigs,
		DefaultThreshold: defaultThreshold,
		LoadedAt:         time.Now(),
		SourcePath:       path,
	}
	s.snapshot.Store(snap)
	s.log.Info("loaded signature database", "path", path, "entries", len(sigs))

	s.recordReload(path, len(sigs))
	return nil
}

func parseLine(line string) (Signature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 1 || fields[0] == "" {
		return Signature{}, fmt.Errorf("missing digest field")
	}
	digest, err := hex.DecodeString(fields[0])
	if err != nil {
		return Signature{}, fmt.Errorf("invalid digest hex: %w", err)
	}
	sig := Signature{Digest: digest}
	if len(fields) > 1 && fields[1] != "" {
		threshold, err := strconv.Atoi(fields[1])
		if err != nil {
			return Signature{}, fmt.Errorf("invalid threshold: %w", err)
		}
		sig.Threshold = threshold
	}
	if len(fields) > 2 {
		sig.Name = fields[2]
	}
	return sig, nil
}

func (s *Store) recordReload(path string, count int) {
	if s.bk == nil {
		return
	}
	rec := reloadRecord{Path: path, LoadedAt: time.Now(), EntryCount: count, SchemaBuilt: bookkeeping.CurrentSchemaVersion}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_ = s.bk.Put([]byte(bookkeepingKeyPrefix+path), data)
}

// LastReload returns bookkeeping metadata about the last successful load
// of path from a prior process lifetime, if any is recorded.
func (s *Store) LastReload(path string) (time.Time, int, bool) {
	if s.bk == nil {
		return time.Time{}, 0, false
	}
	data, err := s.bk.Get([]byte(bookkeepingKeyPrefix + path))
	if err != nil {
		return time.Time{}, 0, false
	}
	var rec reloadRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return time.Time{}, 0, false
	}
	return rec.LoadedAt, rec.EntryCount, true
}
