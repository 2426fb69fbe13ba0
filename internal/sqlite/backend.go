// Package sqlite implements the SQLite storage backend for docket.
// JSONL files in DataDir are the source of truth; SQLite is rebuilt from
// them on every Attach and serves the queries.
//
// This file implements the backend lifecycle: Attach, GetTable and Detach.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/docket/pkg/types"
)

// dbFile is the SQLite database file name inside DataDir.
const dbFile = "docket.db"

// Backend implements the Store interface using SQLite as the query engine
// and JSONL files as the source of truth.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	tables   map[string]types.Table

	// now is the clock used for timestamps; tests replace it.
	now func() time.Time
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{
		tables: make(map[string]types.Table),
		now:    time.Now,
	}
}

// GetTable returns the documents or document_types table.
func (b *Backend) GetTable(name string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	table, ok := b.tables[name]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return table, nil
}

// Attach validates config, then rebuilds the query database of DataDir
// from its JSONL files. DataDir defaults to the working directory and is
// created when missing. Returns ErrAlreadyAttached on a second call.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.DataDir == "" {
		config.DataDir = "."
	}

	db, err := openDatabase(config.DataDir)
	if err != nil {
		return err
	}

	b.db = db
	b.config = config
	b.attached = true
	b.tables[types.TableDocuments] = &documentsTable{backend: b}
	b.tables[types.TableDocumentTypes] = &documentTypesTable{backend: b}
	return nil
}

// openDatabase replaces the SQLite file of dataDir with a fresh one loaded
// from the JSONL files, creating those when missing.
func openDatabase(dataDir string) (*sql.DB, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	if err := touchFiles(dataDir); err != nil {
		return nil, err
	}

	path := filepath.Join(dataDir, dbFile)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale %s: %w", dbFile, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbFile, err)
	}
	// One connection: every statement runs under the backend lock anyway.
	db.SetMaxOpenConns(1)

	ddl := append(append([]string{}, schemaDDL...), indexDDL...)
	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	if err := rebuild(db, dataDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading JSONL: %w", err)
	}
	return db, nil
}

// Detach closes the database. Table accessors fail with ErrStoreDetached
// afterwards; calling Detach again is a no-op.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	b.tables = make(map[string]types.Table)

	return nil
}

// checkAttached returns ErrStoreDetached once Detach has run. Table
// accessors obtained before Detach keep pointing at the backend.
// The caller must hold b.mu.
func (b *Backend) checkAttached() error {
	if !b.attached {
		return types.ErrStoreDetached
	}
	return nil
}

func (b *Backend) jsonl(file string) jsonlFile {
	return jsonlFile(filepath.Join(b.config.DataDir, file))
}

// newUUID generates a UUID v7 string for entity IDs.
func newUUID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating UUID v7: %w", err)
	}
	return id.String(), nil
}
