// Package dbwatch implements the Database Watcher (spec §4.G): it
// watches the configured signature database file and, on change,
// reloads the Signature Store and clears the Result Cache. Shaped after
// the teacher's pkg/daemon/watcher package — an fsnotify.Watcher driving
// a Run event loop — narrowed from a recursive directory tree to a
// single file, and given the debounce the original's database-watch
// thread in main.rs performs with a short sleep-and-recheck loop.
package dbwatch

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/simbiota/simbiotad/internal/alert"
	"github.com/simbiota/simbiotad/internal/logging"
	"github.com/simbiota/simbiotad/internal/resultcache"
	"github.com/simbiota/simbiotad/internal/signature"
)

// DefaultDebounce is spec §4.G's "debounce events (>= 500ms quiet
// period)" minimum.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a single database file for close-after-write and
// move-into-place events and drives signature reloads.
type Watcher struct {
	path             string
	defaultThreshold int
	debounce         time.Duration

	fsw    *fsnotify.Watcher
	store  *signature.Store
	cache  *resultcache.Cache
	alerts *alert.Dispatcher
	log    *logging.Logger

	stop chan struct{}
	done chan struct{}
}

// New creates a Watcher over path. The containing directory, not the
// file itself, is watched — fsnotify cannot watch a path that atomic
// move-into-place replaces out from under it, but the parent directory
// observes the rename event that creates the new inode at path.
func New(path string, defaultThreshold int, debounce time.Duration, store *signature.Store, cache *resultcache.Cache, alerts *alert.Dispatcher) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		path:             path,
		defaultThreshold: defaultThreshold,
		debounce:         debounce,
		fsw:              fsw,
		store:            store,
		cache:            cache,
		alerts:           alerts,
		log:              logging.Get("dbwatch"),
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}, nil
}

// Run blocks, watching for changes to the database file until Stop is
// called. Matching events are coalesced into a single reload after the
// debounce period's quiet interval.
func (w *Watcher) Run() {
	defer close(w.done)

	var pending *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-w.stop:
			if pending != nil {
				pending.Stop()
			}
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("database watcher error", "error", err)

		case <-reload:
			w.reloadDatabase()
		}
	}
}

// reloadDatabase loads the current file into the Signature Store. On
// success the Result Cache is cleared, since every cached verdict was
// computed against a snapshot that no longer exists (spec §4.G). On
// failure the prior snapshot is retained untouched and an alert fires.
func (w *Watcher) reloadDatabase() {
	if err := w.store.Load(w.path, w.defaultThreshold); err != nil {
		w.log.Error("signature database reload failed, keeping prior snapshot", "path", w.path, "error", err)
		w.alerts.Notify(alert.DetectionEvent{
			Path: w.path,
			Time: time.Now(),
			Note: "signature database reload failed: " + err.Error(),
		})
		return
	}
	w.cache.Clear()

	snap := w.store.Current()
	w.log.Info("signature database reloaded", "path", w.path, "signatures", len(snap.Signatures))
}

// Stop signals Run to exit and waits for it to finish.
func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
	_ = w.fsw.Close()
}
