package quarantine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/simbiota/simbiotad/internal/quarantine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddMovesFileAndSetsMode(t *testing.T) {
	dir := t.TempDir()
	qdir := filepath.Join(dir, "quarantine")

	mgr, err := quarantine.Open(qdir, nil)
	require.NoError(t, err)

	src := filepath.Join(dir, "evil")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	entry, err := mgr.Add(src, "malicious:sig#7")
	require.NoError(t, err)
	assert.Equal(t, src, entry.OriginalPath)
	assert.Equal(t, "malicious:sig#7", entry.Verdict)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "original path must no longer exist after quarantine")

	quarantined := filepath.Join(qdir, entry.ID)
	info, err := os.Stat(quarantined)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestListReturnsEveryQuarantinedEntry(t *testing.T) {
	dir := t.TempDir()
	qdir := filepath.Join(dir, "quarantine")
	mgr, err := quarantine.Open(qdir, nil)
	require.NoError(t, err)

	for _, name := range []string{"a", "b", "c"} {
		src := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(src, []byte(name), 0o644))
		_, err := mgr.Add(src, "malicious:test")
		require.NoError(t, err)
	}

	entries, err := mgr.List()
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRestoreMovesFileBack(t *testing.T) {
	dir := t.TempDir()
	qdir := filepath.Join(dir, "quarantine")
	mgr, err := quarantine.Open(qdir, nil)
	require.NoError(t, err)

	src := filepath.Join(dir, "evil")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	entry, err := mgr.Add(src, "malicious:test")
	require.NoError(t, err)

	require.NoError(t, mgr.Restore(entry.ID))

	data, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = os.Stat(filepath.Join(qdir, entry.ID))
	assert.True(t, os.IsNotExist(err), "quarantine copy must be gone after restore")
}

func TestRemoveDeletesQuarantinedFileAndSidecar(t *testing.T) {
	dir := t.TempDir()
	qdir := filepath.Join(dir, "quarantine")
	mgr, err := quarantine.Open(qdir, nil)
	require.NoError(t, err)

	src := filepath.Join(dir, "evil")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))
	entry, err := mgr.Add(src, "malicious:test")
	require.NoError(t, err)

	require.NoError(t, mgr.Remove(entry.ID))

	entries, err := mgr.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = os.Stat(filepath.Join(qdir, "."+entry.ID+".info"))
	assert.True(t, os.IsNotExist(err), "sidecar must be gone after remove")
}

func TestQuarantineDirModeIsRestricted(t *testing.T) {
	dir := t.TempDir()
	qdir := filepath.Join(dir, "quarantine")
	_, err := quarantine.Open(qdir, nil)
	require.NoError(t, err)

	info, err := os.Stat(qdir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestRestoreUnknownIDFails(t *testing.T) {
	dir := t.TempDir()
	mgr, err := quarantine.Open(filepath.Join(dir, "quarantine"), nil)
	require.NoError(t, err)

	err = mgr.Restore("does-not-exist")
	assert.ErrorIs(t, err, quarantine.ErrNotFound)
}

