package quarantine

import (
	"encoding/json"
	"fmt"

	"github.com/simbiota/simbiotad/internal/bookkeeping"
)

const indexKeyPrefix = "quarantine:entry:"

// Index is a bookkeeping-backed id -> metadata index. The quarantine
// directory's sidecar files remain the durable source of truth (spec
// requires them); this index exists only so management operations
// (restore/delete/list by id) don't need to re-list the directory and
// re-read every sidecar, the way the original's get_stored_entries does
// on every call. See SPEC_FULL.md §4.
type Index struct {
	bk *bookkeeping.Store
}

// NewIndex wraps a bookkeeping store as a quarantine index.
func NewIndex(bk *bookkeeping.Store) *Index {
	return &Index{bk: bk}
}

// Put records an entry in the index.
func (idx *Index) Put(e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return idx.bk.Put([]byte(indexKeyPrefix+e.ID), data)
}

// Get looks up an entry by id.
func (idx *Index) Get(id string) (*Entry, error) {
	data, err := idx.bk.Get([]byte(indexKeyPrefix + id))
	if err != nil {
		if err == bookkeeping.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding quarantine index entry %s: %w", id, err)
	}
	return &e, nil
}

// Delete removes an entry from the index.
func (idx *Index) Delete(id string) error {
	return idx.bk.Delete([]byte(indexKeyPrefix + id))
}

// List returns every indexed entry.
func (idx *Index) List() ([]*Entry, error) {
	var entries []*Entry
	err := idx.bk.ForEachPrefix([]byte(indexKeyPrefix), func(_, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return err
		}
		entries = append(entries, &e)
		return nil
	})
	return entries, err
}
