package types

import (
	"errors"
	"fmt"
)

// Config selects the storage backend and its data directory for Store.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// BackendSQLite is the only backend docket ships.
const BackendSQLite = "sqlite"

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
)

// Validate reports ErrBackendEmpty or ErrBackendUnknown. An empty DataDir
// is valid; backends pick their own default.
func (c Config) Validate() error {
	switch c.Backend {
	case "":
		return ErrBackendEmpty
	case BackendSQLite:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrBackendUnknown, c.Backend)
	}
}
