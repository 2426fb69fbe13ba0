package types

import "errors"

// Store is the persistence collaborator of the document service. A Store is
// attached to a data directory, hands out tables by name and is detached
// when the caller is done.
type Store interface {
	// GetTable returns the Table for name, or ErrTableNotFound.
	GetTable(name string) (Table, error)

	// Attach opens the backend described by config, creating DataDir when
	// needed. Returns ErrAlreadyAttached on a second call.
	Attach(config Config) error

	// Detach releases backend resources and may be called more than once.
	// Tables obtained before Detach fail with ErrStoreDetached.
	Detach() error
}

// Table names served by every Store.
const (
	TableDocuments     = "documents"
	TableDocumentTypes = "document_types"
)

// StandardTableNames lists every table a Store serves.
var StandardTableNames = []string{
	TableDocumentTypes,
	TableDocuments,
}

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
	ErrTableNotFound   = errors.New("table not found")
)
