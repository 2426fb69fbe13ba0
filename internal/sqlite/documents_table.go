// This file implements the documents table accessor for the SQLite backend,
// including the filtered, paged listing and the per-status count.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/docket/pkg/types"
)

var (
	_ types.Table   = (*documentsTable)(nil)
	_ types.Counter = (*documentsTable)(nil)
)

const documentColumns = "doc_id, type_id, name, reference, status, is_deleted, result, edited, debug, uploaded_at, updated_at"

// documentSorts maps accepted sort keys to their column.
var documentSorts = map[string]string{
	"uploaded_at": "uploaded_at",
	"updated_at":  "updated_at",
	"name":        "name",
	"status":      "status",
}

// documentGroupings lists the columns CountBy accepts.
var documentGroupings = map[string]bool{
	"status":  true,
	"type_id": true,
}

// documentsTable implements Table for *types.Document. Deleted documents
// stay in storage with is_deleted set and are invisible to Get, Fetch and
// Count.
type documentsTable struct {
	backend *Backend
}

// Get retrieves a live document by ID.
func (dt *documentsTable) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	b := dt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return nil, err
	}

	row := b.db.QueryRow("SELECT "+documentColumns+" FROM documents WHERE doc_id = ? AND is_deleted = 0", id)
	doc, err := hydrateDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %s: %w", id, err)
	}
	return doc, nil
}

// Set persists a *types.Document. An empty id creates a new document with a
// UUID v7, status UPLOADED and an empty edited layer. A known id replaces
// the stored document. Returns the document ID.
func (dt *documentsTable) Set(id string, data any) (string, error) {
	doc, ok := data.(*types.Document)
	if !ok || doc == nil {
		return "", types.ErrInvalidData
	}
	if doc.TypeID == "" {
		return "", fmt.Errorf("%w: document type id is required", types.ErrInvalidData)
	}

	b := dt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkAttached(); err != nil {
		return "", err
	}

	now := b.now().UTC()
	if id == "" {
		newID, err := newUUID()
		if err != nil {
			return "", err
		}
		id = newID
		doc.Status = types.StatusUploaded
		doc.UploadedAt = now
		if doc.Edited == nil {
			doc.Edited = &types.Layer{}
		}
	}
	doc.DocumentID = id
	if doc.Status == "" {
		doc.Status = types.StatusUploaded
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}
	doc.UpdatedAt = now

	result, err := encodeLayer(doc.Result)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	edited, err := encodeLayer(doc.Edited)
	if err != nil {
		return "", fmt.Errorf("encoding edited: %w", err)
	}

	_, err = b.db.Exec(`INSERT INTO documents (`+documentColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(doc_id) DO UPDATE SET
    type_id = excluded.type_id,
    name = excluded.name,
    reference = excluded.reference,
    status = excluded.status,
    is_deleted = excluded.is_deleted,
    result = excluded.result,
    edited = excluded.edited,
    debug = excluded.debug,
    uploaded_at = excluded.uploaded_at,
    updated_at = excluded.updated_at`,
		id, doc.TypeID, doc.Name, nullString(doc.Reference), doc.Status, doc.IsDeleted,
		result, edited, nullString(doc.Debug), formatTime(doc.UploadedAt), formatTime(doc.UpdatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("persisting document: %w", err)
	}

	if err := dt.persistJSONL(); err != nil {
		return "", fmt.Errorf("persisting %s: %w", documentsJSONL, err)
	}
	return id, nil
}

// Delete flags a live document as deleted.
func (dt *documentsTable) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	b := dt.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkAttached(); err != nil {
		return err
	}

	res, err := b.db.Exec(
		"UPDATE documents SET is_deleted = 1, updated_at = ? WHERE doc_id = ? AND is_deleted = 0",
		formatTime(b.now()), id,
	)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrDocumentNotFound, id)
	}

	if err := dt.persistJSONL(); err != nil {
		return fmt.Errorf("persisting %s: %w", documentsJSONL, err)
	}
	return nil
}

// Fetch returns live documents matching filter as []any of *types.Document.
// Ordered by uploaded_at descending unless the filter sorts otherwise.
func (dt *documentsTable) Fetch(filter types.Filter) ([]any, error) {
	q, err := buildDocumentQuery(filter)
	if err != nil {
		return nil, err
	}
	b := dt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return nil, err
	}

	query := "SELECT " + documentColumns + " FROM documents" + q.whereClause() + q.orderClause() + q.pageClause()
	rows, err := b.db.Query(query, q.args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		doc, err := hydrateDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return out, nil
}

// Count returns the number of live documents matching filter.
func (dt *documentsTable) Count(filter types.Filter) (int, error) {
	q, err := buildDocumentQuery(filter)
	if err != nil {
		return 0, err
	}
	b := dt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return 0, err
	}

	var n int
	if err := b.db.QueryRow("SELECT COUNT(*) FROM documents"+q.whereClause(), q.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// CountBy counts live documents matching filter per value of column, which
// must be status or type_id.
func (dt *documentsTable) CountBy(filter types.Filter, column string) (map[string]int, error) {
	if !documentGroupings[column] {
		return nil, fmt.Errorf("%w: cannot group by %q", types.ErrInvalidFilter, column)
	}
	q, err := buildDocumentQuery(filter)
	if err != nil {
		return nil, err
	}
	b := dt.backend
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkAttached(); err != nil {
		return nil, err
	}

	rows, err := b.db.Query("SELECT "+column+", COUNT(*) FROM documents"+q.whereClause()+" GROUP BY "+column, q.args...)
	if err != nil {
		return nil, fmt.Errorf("counting documents by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", err)
	}
	return counts, nil
}

// persistJSONL rewrites documents.jsonl from the table, deleted documents
// included. The caller must hold b.mu.
func (dt *documentsTable) persistJSONL() error {
	rows, err := dt.backend.db.Query("SELECT " + documentColumns + " FROM documents ORDER BY uploaded_at, doc_id")
	if err != nil {
		return fmt.Errorf("querying documents for JSONL: %w", err)
	}
	defer rows.Close()

	var recs []documentJSON
	for rows.Next() {
		var (
			rec              documentJSON
			reference, debug sql.NullString
			result, edited   sql.NullString
		)
		if err := rows.Scan(&rec.DocID, &rec.TypeID, &rec.Name, &reference, &rec.Status, &rec.IsDeleted,
			&result, &edited, &debug, &rec.UploadedAt, &rec.UpdatedAt); err != nil {
			return fmt.Errorf("scanning document row: %w", err)
		}
		rec.Reference = reference.String
		rec.Debug = debug.String
		rec.Result = rawOrNil(nullPtr(result))
		rec.Edited = rawOrNil(nullPtr(edited))
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating documents for JSONL: %w", err)
	}

	return writeValues(dt.backend.jsonl(documentsJSONL), recs)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func hydrateDocument(s scanner) (*types.Document, error) {
	var (
		doc                   types.Document
		reference, debug      sql.NullString
		result, edited        sql.NullString
		uploadedAt, updatedAt string
	)
	if err := s.Scan(&doc.DocumentID, &doc.TypeID, &doc.Name, &reference, &doc.Status, &doc.IsDeleted,
		&result, &edited, &debug, &uploadedAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Reference = reference.String
	doc.Debug = debug.String
	doc.UploadedAt = parseTime(uploadedAt)
	doc.UpdatedAt = parseTime(updatedAt)

	var err error
	if doc.Result, err = decodeLayer(result); err != nil {
		return nil, fmt.Errorf("decoding result of %s: %w", doc.DocumentID, err)
	}
	if doc.Edited, err = decodeLayer(edited); err != nil {
		return nil, fmt.Errorf("decoding edited of %s: %w", doc.DocumentID, err)
	}
	return &doc, nil
}

func encodeLayer(l *types.Layer) (any, error) {
	if l == nil {
		return nil, nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeLayer(s sql.NullString) (*types.Layer, error) {
	raw := rawOrNil(nullPtr(s))
	if raw == nil {
		return nil, nil
	}
	var l types.Layer
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}

// documentQuery is the SQL form of a documents filter.
type documentQuery struct {
	where  []string
	args   []any
	order  string
	limit  int
	offset int
}

func buildDocumentQuery(filter types.Filter) (documentQuery, error) {
	q := documentQuery{
		where: []string{"is_deleted = 0"},
		order: "uploaded_at DESC, doc_id DESC",
	}

	if v, ok := filter[types.FilterTypeID]; ok {
		typeID, ok := v.(string)
		if !ok {
			return q, types.ErrInvalidFilter
		}
		if typeID != "" {
			q.where = append(q.where, "type_id = ?")
			q.args = append(q.args, typeID)
		}
	}

	if v, ok := filter[types.FilterStatus]; ok {
		var statuses []string
		switch s := v.(type) {
		case string:
			if s != "" {
				statuses = []string{s}
			}
		case []string:
			statuses = s
		default:
			return q, types.ErrInvalidFilter
		}
		if len(statuses) > 0 {
			placeholders := make([]string, len(statuses))
			for i, s := range statuses {
				placeholders[i] = "?"
				q.args = append(q.args, s)
			}
			q.where = append(q.where, "status IN ("+strings.Join(placeholders, ", ")+")")
		}
	}

	if v, ok := filter[types.FilterQuery]; ok {
		text, ok := v.(string)
		if !ok {
			return q, types.ErrInvalidFilter
		}
		for _, token := range strings.Fields(strings.ToLower(text)) {
			pattern := "%" + escapeLike(token) + "%"
			q.where = append(q.where, `(lower(name) LIKE ? ESCAPE '\' OR lower(coalesce(result, '')) LIKE ? ESCAPE '\' OR lower(coalesce(edited, '')) LIKE ? ESCAPE '\')`)
			q.args = append(q.args, pattern, pattern, pattern)
		}
	}

	col := "uploaded_at"
	if v, ok := filter[types.FilterSort]; ok {
		key, ok := v.(string)
		if !ok {
			return q, types.ErrInvalidFilter
		}
		if key != "" {
			if col, ok = documentSorts[key]; !ok {
				return q, fmt.Errorf("%w: unknown sort %q", types.ErrInvalidFilter, key)
			}
		}
	}
	dir := "DESC"
	if v, ok := filter[types.FilterOrder]; ok {
		order, ok := v.(string)
		if !ok {
			return q, types.ErrInvalidFilter
		}
		switch strings.ToLower(order) {
		case "", "desc":
		case "asc":
			dir = "ASC"
		default:
			return q, fmt.Errorf("%w: unknown order %q", types.ErrInvalidFilter, order)
		}
	}
	q.order = col + " " + dir + ", doc_id " + dir

	var err error
	if q.limit, err = intFilter(filter, types.FilterLimit); err != nil {
		return q, err
	}
	if q.offset, err = intFilter(filter, types.FilterOffset); err != nil {
		return q, err
	}
	return q, nil
}

func (q documentQuery) whereClause() string {
	return " WHERE " + strings.Join(q.where, " AND ")
}

func (q documentQuery) orderClause() string {
	return " ORDER BY " + q.order
}

func (q documentQuery) pageClause() string {
	switch {
	case q.limit > 0 && q.offset > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", q.limit, q.offset)
	case q.limit > 0:
		return fmt.Sprintf(" LIMIT %d", q.limit)
	case q.offset > 0:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", q.offset)
	}
	return ""
}

func intFilter(filter types.Filter, key string) (int, error) {
	v, ok := filter[key]
	if !ok || v == nil {
		return 0, nil
	}
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		n = int(t)
	default:
		return 0, types.ErrInvalidFilter
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", types.ErrInvalidFilter, key)
	}
	return n, nil
}

// escapeLike escapes the LIKE wildcards of s for use with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
