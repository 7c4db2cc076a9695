package bookkeeping

import (
	"encoding/json"
	"time"
)

// CurrentSchemaVersion identifies the bookkeeping record layout.
// 1 - initial version (signature reload metadata, quarantine id index).
const CurrentSchemaVersion = 1

const schemaKey = "m:__schema__"

// Schema records the bookkeeping store's own layout version.
type Schema struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetSchema returns the stored schema, or nil if never written.
func (s *Store) GetSchema() (*Schema, error) {
	value, err := s.Get([]byte(schemaKey))
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	var schema Schema
	if err := json.Unmarshal(value, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// PutSchema stamps the store with the current schema version.
func (s *Store) PutSchema() error {
	data, err := json.Marshal(Schema{Version: CurrentSchemaVersion, UpdatedAt: time.Now()})
	if err != nil {
		return err
	}
	return s.Put([]byte(schemaKey), data)
}
