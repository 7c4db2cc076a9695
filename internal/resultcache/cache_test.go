package resultcache_test

import (
	"testing"
	"time"

	"github.com/simbiota/simbiotad/internal/classify"
	"github.com/simbiota/simbiotad/internal/resultcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(size int64) resultcache.FileIdentity {
	return resultcache.FileIdentity{Size: size, MtimeSec: 1000}
}

func TestCacheStoreThenLookupHits(t *testing.T) {
	c, err := resultcache.New(false)
	require.NoError(t, err)

	id := identity(10)
	c.Store("/bin/true", id, classify.Benign)

	// ristretto applies writes to its internal store asynchronously via a
	// buffered ring, so a Lookup immediately after Store is not
	// guaranteed to observe it yet.
	require.Eventually(t, func() bool {
		verdict, ok := c.Lookup("/bin/true", id)
		return ok && verdict == classify.Benign
	}, time.Second, 5*time.Millisecond)
}

func TestCacheIdentityMismatchIsMiss(t *testing.T) {
	c, err := resultcache.New(false)
	require.NoError(t, err)

	c.Store("/bin/true", identity(10), classify.Benign)

	_, ok := c.Lookup("/bin/true", identity(11))
	assert.False(t, ok, "a changed FileIdentity must not reuse a stale verdict")
}

func TestCacheInvalidateRemovesEntry(t *testing.T) {
	c, err := resultcache.New(false)
	require.NoError(t, err)

	id := identity(10)
	c.Store("/bin/evil", id, classify.Malicious)
	c.Invalidate("/bin/evil")

	// ristretto applies deletes asynchronously; poll briefly rather than
	// asserting immediately after Invalidate.
	require.Eventually(t, func() bool {
		_, ok := c.Lookup("/bin/evil", id)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestCacheClearDropsEverything(t *testing.T) {
	c, err := resultcache.New(false)
	require.NoError(t, err)

	c.Store("/a", identity(1), classify.Benign)
	c.Store("/b", identity(2), classify.Malicious)
	c.Clear()

	require.Eventually(t, func() bool {
		_, aOK := c.Lookup("/a", identity(1))
		_, bOK := c.Lookup("/b", identity(2))
		return !aOK && !bOK
	}, time.Second, 5*time.Millisecond)
}

func TestDisabledCacheNeverHits(t *testing.T) {
	c, err := resultcache.New(true)
	require.NoError(t, err)

	id := identity(10)
	c.Store("/bin/true", id, classify.Malicious)

	verdict, ok := c.Lookup("/bin/true", id)
	assert.False(t, ok)
	assert.Equal(t, classify.Benign, verdict)
}
