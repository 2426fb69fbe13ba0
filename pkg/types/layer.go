package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// TableKey is the reserved layer key holding the ordered row sequence.
const TableKey = "TABELLA"

// rowIDKey is the row field carrying the row identifier.
const rowIDKey = "id"

// Group maps field names to values inside one layer group.
type Group map[string]any

// Layer is one document body: named groups of fields plus an optional
// ordered row sequence stored under TableKey. A nil Table means the layer
// has no TableKey at all; an empty non-nil Table means it has one with no
// rows.
type Layer struct {
	Groups map[string]Group
	Table  []Row
}

// Row is one entry of a layer's row sequence. ID is unique within a layer.
// A row whose Fields are empty is a tombstone.
type Row struct {
	ID     int
	Fields map[string]any
}

// IsTombstone reports whether the row carries nothing but its id.
func (r Row) IsTombstone() bool {
	return len(r.Fields) == 0
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	return Row{ID: r.ID, Fields: cloneMap(r.Fields)}
}

// HasTable reports whether the layer carries the TableKey.
func (l *Layer) HasTable() bool {
	return l != nil && l.Table != nil
}

// Value returns the value stored at (group, field) and whether the key is
// present. A present key may hold nil.
func (l *Layer) Value(group, field string) (any, bool) {
	if l == nil {
		return nil, false
	}
	g, ok := l.Groups[group]
	if !ok {
		return nil, false
	}
	v, ok := g[field]
	return v, ok
}

// Set writes value at (group, field), creating the group when needed.
func (l *Layer) Set(group, field string, value any) {
	if l.Groups == nil {
		l.Groups = make(map[string]Group)
	}
	g, ok := l.Groups[group]
	if !ok || g == nil {
		g = make(Group)
		l.Groups[group] = g
	}
	g[field] = value
}

// RowIndex returns the position of the row with the given id, or -1.
func (l *Layer) RowIndex(id int) int {
	if l == nil {
		return -1
	}
	for i, r := range l.Table {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// MaxRowID returns the largest row id in the layer, or 0 without rows.
func (l *Layer) MaxRowID() int {
	highest := 0
	if l == nil {
		return highest
	}
	for _, r := range l.Table {
		if r.ID > highest {
			highest = r.ID
		}
	}
	return highest
}

// IsEmpty reports whether the layer carries no groups and no TableKey.
func (l *Layer) IsEmpty() bool {
	return l == nil || (len(l.Groups) == 0 && l.Table == nil)
}

// Clone returns a deep copy of the layer. Clone of nil is nil.
func (l *Layer) Clone() *Layer {
	if l == nil {
		return nil
	}
	out := &Layer{}
	if l.Groups != nil {
		out.Groups = make(map[string]Group, len(l.Groups))
		for name, g := range l.Groups {
			out.Groups[name] = Group(cloneMap(g))
		}
	}
	if l.Table != nil {
		out.Table = make([]Row, len(l.Table))
		for i, r := range l.Table {
			out.Table[i] = r.Clone()
		}
	}
	return out
}

// MarshalJSON encodes the layer as a single object: one key per group plus
// TableKey when the layer has rows.
func (l Layer) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(l.Groups)+1)
	for name, g := range l.Groups {
		if g == nil {
			g = Group{}
		}
		obj[name] = map[string]any(g)
	}
	if l.Table != nil {
		obj[TableKey] = l.Table
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes a layer object. Every key other than TableKey must
// hold an object; TableKey must hold an array of rows.
func (l *Layer) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding layer: %w", err)
	}
	l.Groups = make(map[string]Group, len(raw))
	l.Table = nil
	for key, msg := range raw {
		if key == TableKey {
			var rows []Row
			if err := json.Unmarshal(msg, &rows); err != nil {
				return fmt.Errorf("decoding %s: %w", TableKey, err)
			}
			l.Table = rows
			continue
		}
		var g map[string]any
		if err := json.Unmarshal(msg, &g); err != nil {
			return fmt.Errorf("decoding group %q: %w", key, err)
		}
		if g == nil {
			continue
		}
		l.Groups[key] = Group(g)
	}
	return nil
}

// MarshalJSON encodes the row as a flat object with its id.
func (r Row) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		obj[k] = v
	}
	obj[rowIDKey] = r.ID
	return json.Marshal(obj)
}

// UnmarshalJSON decodes a flat row object. The id must be an integer or a
// string holding one.
func (r *Row) UnmarshalJSON(data []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decoding row: %w", err)
	}
	raw, ok := obj[rowIDKey]
	if !ok {
		return fmt.Errorf("%w: row without id", ErrInvalidData)
	}
	id, err := parseRowID(raw)
	if err != nil {
		return err
	}
	delete(obj, rowIDKey)
	r.ID = id
	r.Fields = nil
	if len(obj) > 0 {
		r.Fields = obj
	}
	return nil
}

// RowFromMap builds a row from a flat payload, dropping any id it carries.
func RowFromMap(id int, payload map[string]any) Row {
	fields := make(map[string]any, len(payload))
	for k, v := range payload {
		if k == rowIDKey {
			continue
		}
		fields[k] = CloneValue(v)
	}
	if len(fields) == 0 {
		fields = nil
	}
	return Row{ID: id, Fields: fields}
}

func parseRowID(raw any) (int, error) {
	switch v := raw.(type) {
	case float64:
		if v == math.Trunc(v) {
			return int(v), nil
		}
	case string:
		if id, err := strconv.Atoi(v); err == nil {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: row id %v is not an integer", ErrInvalidData, raw)
}

// CloneValue deep-copies JSON-shaped values (objects, arrays, scalars).
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Group:
		return Group(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}
