// This file implements rebuilding the SQLite tables from the JSONL files.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// tableSpec ties a JSONL file to the SQLite table rebuilt from it.
type tableSpec struct {
	file    string
	table   string
	columns []string
}

var tableSpecs = []tableSpec{
	{documentTypesJSONL, "document_types", []string{"type_id", "name", "version", "field_groups", "created_at", "updated_at"}},
	{documentsJSONL, "documents", []string{"doc_id", "type_id", "name", "reference", "status", "is_deleted", "result", "edited", "debug", "uploaded_at", "updated_at"}},
}

func (s tableSpec) insertSQL() string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(s.columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.table, strings.Join(s.columns, ", "), marks)
}

// touchFiles creates every missing JSONL file in dataDir.
func touchFiles(dataDir string) error {
	for _, s := range tableSpecs {
		if err := jsonlFile(filepath.Join(dataDir, s.file)).touch(); err != nil {
			return err
		}
	}
	return nil
}

// rebuild loads every JSONL file of dataDir into db inside one
// transaction: either all files load or the database stays empty. Lines
// that do not decode or violate a constraint are skipped, as are fields
// without a column.
func rebuild(db *sql.DB, dataDir string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range tableSpecs {
		records, err := jsonlFile(filepath.Join(dataDir, s.file)).records()
		if err != nil {
			return err
		}
		if err := s.load(tx, records); err != nil {
			return fmt.Errorf("loading %s: %w", s.file, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}

func (s tableSpec) load(tx *sql.Tx, records []json.RawMessage) error {
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(s.insertSQL())
	if err != nil {
		return fmt.Errorf("preparing insert into %s: %w", s.table, err)
	}
	defer stmt.Close()

	args := make([]any, len(s.columns))
	for _, rec := range records {
		var obj map[string]json.RawMessage
		if json.Unmarshal(rec, &obj) != nil {
			continue
		}
		for i, col := range s.columns {
			args[i] = columnValue(obj[col])
		}
		stmt.Exec(args...)
	}
	return nil
}

// columnValue converts one JSON field to a column value. Objects and
// arrays are kept as their JSON text so key order survives.
func columnValue(raw json.RawMessage) any {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '{' || raw[0] == '[' {
		return string(raw)
	}
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return nil
	}
	return v
}
