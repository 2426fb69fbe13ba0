// Package sqlite is the public entry point to docket's storage backend.
//
// A data directory holds documents.jsonl and document_types.jsonl, which
// are the durable copy of every document and schema. Attaching rebuilds a
// throwaway SQLite database beside them for listing, filtering and counts.
package sqlite

import (
	"fmt"

	"github.com/mesh-intelligence/docket/internal/sqlite"
	"github.com/mesh-intelligence/docket/pkg/types"
)

// NewBackend returns a detached backend. Attach it before calling GetTable.
func NewBackend() types.Store {
	return sqlite.NewBackend()
}

// Open returns a backend already attached to cfg.DataDir. The caller owns
// the store and must Detach it.
//
//	store, err := sqlite.Open(types.Config{Backend: types.BackendSQLite, DataDir: ".docket-db"})
//	if err != nil {
//		return err
//	}
//	defer store.Detach()
//	docs, _ := store.GetTable(types.TableDocuments)
func Open(cfg types.Config) (types.Store, error) {
	store := NewBackend()
	if err := store.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach %s backend at %s: %w", cfg.Backend, cfg.DataDir, err)
	}
	return store, nil
}
