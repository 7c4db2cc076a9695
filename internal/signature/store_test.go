package signature_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/simbiota/simbiotad/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDB(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "system.sdb")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesSignatures(t *testing.T) {
	path := writeDB(t, "# comment\n\ndeadbeef\t10\tsig-a\ncafebabe\t\tsig-b\n")

	store := signature.New(nil)
	require.NoError(t, store.Load(path, 40))

	snap := store.Current()
	require.NotNil(t, snap)
	require.Len(t, snap.Signatures, 2)
	assert.Equal(t, "sig-a", snap.Signatures[0].Name)
	assert.Equal(t, 10, snap.Signatures[0].Threshold)
	assert.Equal(t, "sig-b", snap.Signatures[1].Name)
	assert.Equal(t, 0, snap.Signatures[1].Threshold)
	assert.Equal(t, 40, snap.DefaultThreshold)
}

func TestLoadFailureKeepsPriorSnapshot(t *testing.T) {
	good := writeDB(t, "deadbeef\t10\tsig-a\n")
	store := signature.New(nil)
	require.NoError(t, store.Load(good, 40))
	first := store.Current()

	err := store.Load(filepath.Join(t.TempDir(), "missing.sdb"), 40)
	require.Error(t, err)

	assert.Same(t, first, store.Current(), "a failed reload must not disturb the prior snapshot")
}

func TestLoadRejectsMalformedDigest(t *testing.T) {
	path := writeDB(t, "not-hex\t10\tsig-a\n")
	store := signature.New(nil)
	assert.Error(t, store.Load(path, 40))
}

func TestLoadOfEmptyDatabaseSucceedsWithNoSignatures(t *testing.T) {
	path := writeDB(t, "# only comments\n\n")
	store := signature.New(nil)
	require.NoError(t, store.Load(path, 40))
	assert.Empty(t, store.Current().Signatures)
}
