package bookkeeping_test

import (
	"path/filepath"
	"testing"

	"github.com/simbiota/simbiotad/internal/bookkeeping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *bookkeeping.Store {
	t.Helper()
	store, err := bookkeeping.Open(filepath.Join(t.TempDir(), "bk"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutGet(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Put([]byte("k"), []byte("v")))

	got, err := store.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestGetMissingKeyReturnsErrNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get([]byte("missing"))
	assert.ErrorIs(t, err, bookkeeping.ErrNotFound)
}

func TestDeleteRemovesKey(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	require.NoError(t, store.Delete([]byte("k")))

	_, err := store.Get([]byte("k"))
	assert.ErrorIs(t, err, bookkeeping.ErrNotFound)
}

func TestForEachPrefixVisitsOnlyMatchingKeys(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Put([]byte("a:1"), []byte("x")))
	require.NoError(t, store.Put([]byte("a:2"), []byte("y")))
	require.NoError(t, store.Put([]byte("b:1"), []byte("z")))

	var keys []string
	err := store.ForEachPrefix([]byte("a:"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a:1", "a:2"}, keys)
}

func TestSchemaRoundTrip(t *testing.T) {
	store := openTestStore(t)

	schema, err := store.GetSchema()
	require.NoError(t, err)
	assert.Nil(t, schema, "schema is nil until PutSchema is called")

	require.NoError(t, store.PutSchema())

	schema, err = store.GetSchema()
	require.NoError(t, err)
	require.NotNil(t, schema)
	assert.Equal(t, bookkeeping.CurrentSchemaVersion, schema.Version)
}
