// This file implements the document_types table accessor for the SQLite backend.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/docket/pkg/types"
)

var _ types.Table = (*documentTypesTable)(nil)

const documentTypeColumns = "type_id, name, version, field_groups, created_at, updated_at"

// documentTypesTable implements Table for *types.DocumentType.
type documentTypesTable struct {
	backend *Backend
}

// Get retrieves a document type by ID.
func (tt *documentTypesTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	b := tt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return nil, err
	}

	row := b.db.QueryRow("SELECT "+documentTypeColumns+" FROM document_types WHERE type_id = ?", id)
	dt, err := hydrateDocumentType(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrTypeNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document type %s: %w", id, err)
	}
	return dt, nil
}

// Set creates or replaces a *types.DocumentType. An empty id generates a
// UUID v7. Returns the type ID.
func (tt *documentTypesTable) Set(id string, data any) (string, error) {
	dt, ok := data.(*types.DocumentType)
	if !ok || dt == nil {
		return "", types.ErrInvalidData
	}
	if dt.Name == "" {
		return "", types.ErrInvalidName
	}
	groups, err := json.Marshal(dt.Groups)
	if err != nil {
		return "", fmt.Errorf("encoding groups: %w", err)
	}

	b := tt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkAttached(); err != nil {
		return "", err
	}

	if id == "" {
		if id, err = newUUID(); err != nil {
			return "", err
		}
	}
	now := b.now().UTC()

	// Keep the original creation time across replacements.
	var createdAt string
	err = b.db.QueryRow("SELECT created_at FROM document_types WHERE type_id = ?", id).Scan(&createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		createdAt = formatTime(now)
	case err != nil:
		return "", fmt.Errorf("checking document type existence: %w", err)
	}

	_, err = b.db.Exec(`INSERT INTO document_types (`+documentTypeColumns+`)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(type_id) DO UPDATE SET
    name = excluded.name,
    version = excluded.version,
    field_groups = excluded.field_groups,
    updated_at = excluded.updated_at`,
		id, dt.Name, nullString(dt.Version), string(groups), createdAt, formatTime(now),
	)
	if err != nil {
		return "", fmt.Errorf("persisting document type: %w", err)
	}

	dt.TypeID = id
	dt.CreatedAt = parseTime(createdAt)
	dt.UpdatedAt = now

	if err := tt.persistJSONL(); err != nil {
		return "", fmt.Errorf("persisting %s: %w", documentTypesJSONL, err)
	}
	return id, nil
}

// Delete removes a document type.
func (tt *documentTypesTable) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	b := tt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkAttached(); err != nil {
		return err
	}

	res, err := b.db.Exec("DELETE FROM document_types WHERE type_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document type: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", types.ErrTypeNotFound, id)
	}

	if err := tt.persistJSONL(); err != nil {
		return fmt.Errorf("persisting %s: %w", documentTypesJSONL, err)
	}
	return nil
}

// Fetch returns document types ordered by name, optionally restricted to
// an exact name.
func (tt *documentTypesTable) Fetch(filter types.Filter) ([]any, error) {
	query := "SELECT " + documentTypeColumns + " FROM document_types"
	var args []any
	if v, ok := filter[types.FilterName]; ok {
		name, ok := v.(string)
		if !ok {
			return nil, types.ErrInvalidFilter
		}
		query += " WHERE name = ?"
		args = append(args, name)
	}
	query += " ORDER BY name, type_id"

	b := tt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return nil, err
	}

	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying document types: %w", err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		dt, err := hydrateDocumentType(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document type: %w", err)
		}
		out = append(out, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document types: %w", err)
	}
	return out, nil
}

// persistJSONL rewrites document_types.jsonl. The caller must hold b.mu.
func (tt *documentTypesTable) persistJSONL() error {
	rows, err := tt.backend.db.Query("SELECT " + documentTypeColumns + " FROM document_types ORDER BY created_at, type_id")
	if err != nil {
		return fmt.Errorf("querying document types for JSONL: %w", err)
	}
	defer rows.Close()

	var recs []documentTypeJSON
	for rows.Next() {
		var (
			rec     documentTypeJSON
			version sql.NullString
			groups  string
		)
		if err := rows.Scan(&rec.TypeID, &rec.Name, &version, &groups, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return fmt.Errorf("scanning document type row: %w", err)
		}
		rec.Version = version.String
		rec.Groups = json.RawMessage(groups)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating document types for JSONL: %w", err)
	}

	return writeValues(tt.backend.jsonl(documentTypesJSONL), recs)
}

func hydrateDocumentType(s scanner) (*types.DocumentType, error) {
	var (
		dt                   types.DocumentType
		version              sql.NullString
		groups               string
		createdAt, updatedAt string
	)
	if err := s.Scan(&dt.TypeID, &dt.Name, &version, &groups, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	dt.Version = version.String
	dt.CreatedAt = parseTime(createdAt)
	dt.UpdatedAt = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(groups), &dt.Groups); err != nil {
		return nil, fmt.Errorf("decoding groups of %s: %w", dt.TypeID, err)
	}
	return &dt, nil
}
