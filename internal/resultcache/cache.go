// Package resultcache implements the result cache: a bounded, sharded,
// in-memory memoization layer in front of the classifier, keyed by path
// and validated by FileIdentity. It has no persistence — a process
// restart starts cold, exactly like the original's MemoryDetectionCache —
// and can be disabled entirely, in which case Lookup always misses and
// Store is a no-op, matching the original's NoopCache.
package resultcache

import (
	"github.com/dgraph-io/ristretto/v2"
	"github.com/simbiota/simbiotad/internal/classify"
)

// DefaultMaxEntries bounds the cache at spec's approximate 48 bytes/entry
// budget for a modest daemon footprint.
const DefaultMaxEntries = 200_000

const bytesPerEntry = 48

type entry struct {
	identity FileIdentity
	verdict  classify.Verdict
}

// Cache is the result cache. It is safe for concurrent use; ristretto
// shards internally, satisfying spec's "sharded for concurrency"
// requirement without simbiotad needing to manage locks itself.
type Cache struct {
	rc       *ristretto.Cache[string, entry]
	disabled bool
}

// New creates a Cache. If disabled is true, Lookup always misses and Store
// is a no-op — the cache becomes the NoopCache contract from the original
// client-lib.
func New(disabled bool) (*Cache, error) {
	if disabled {
		return &Cache{disabled: true}, nil
	}

	rc, err := ristretto.NewCache(&ristretto.Config[string, entry]{
		NumCounters: DefaultMaxEntries * 10,
		MaxCost:     DefaultMaxEntries * bytesPerEntry,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{rc: rc}, nil
}

// Lookup returns the cached verdict for path if present and its stored
// FileIdentity matches identity exactly. A mismatch (the file changed
// since it was cached) is treated the same as a miss.
func (c *Cache) Lookup(path string, identity FileIdentity) (classify.Verdict, bool) {
	if c.disabled {
		return classify.Benign, false
	}
	e, ok := c.rc.Get(path)
	if !ok || e.identity != identity {
		return classify.Benign, false
	}
	return e.verdict, true
}

// Store records a verdict for path under the given identity.
func (c *Cache) Store(path string, identity FileIdentity, verdict classify.Verdict) {
	if c.disabled {
		return
	}
	c.rc.Set(path, entry{identity: identity, verdict: verdict}, bytesPerEntry)
}

// Invalidate drops any cached entry for path, e.g. after a quarantine
// move changes the file's identity out from under its cache entry.
func (c *Cache) Invalidate(path string) {
	if c.disabled {
		return
	}
	c.rc.Del(path)
}

// Clear drops every cached entry. It is called after every signature
// store hot-swap (spec §4.C): old verdicts were computed against a
// snapshot that no longer exists.
func (c *Cache) Clear() {
	if c.disabled {
		return
	}
	c.rc.Clear()
}
