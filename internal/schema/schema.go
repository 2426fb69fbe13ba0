// Package schema resolves field names to their storage location inside a
// document type and flattens a layer into the ordered list of schema fields
// consumed by the validation engine.
package schema

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/docket/pkg/types"
)

// Location addresses one field value inside a layer.
type Location struct {
	Path  string // Layer group holding the value.
	Field string // Field name as declared in the schema.
	Label string
}

// Entry pairs a field definition with the value found for it.
type Entry struct {
	Def   types.FieldDef
	Value any
}

// Index answers field lookups for one document type. Field definitions are
// kept in declaration order with their Path defaulted to the declaring group.
// An Index is immutable and safe for concurrent use.
type Index struct {
	defs []types.FieldDef
}

// New builds an Index over dt. A nil dt yields an empty index.
func New(dt *types.DocumentType) *Index {
	ix := &Index{}
	if dt == nil {
		return ix
	}
	for _, group := range dt.Groups {
		for _, def := range group.Fields {
			if def.Path == "" {
				def.Path = group.Name
			}
			ix.defs = append(ix.defs, def)
		}
	}
	return ix
}

// Fields returns the field definitions in declaration order.
func (ix *Index) Fields() []types.FieldDef {
	out := make([]types.FieldDef, len(ix.defs))
	copy(out, ix.defs)
	return out
}

// Resolve finds the first field whose name matches name, ignoring case and
// surrounding whitespace. Returns ErrFieldNotFound when nothing matches.
func (ix *Index) Resolve(name string) (Location, error) {
	want := normalize(name)
	for _, def := range ix.defs {
		if normalize(def.Field) == want {
			return Location{Path: def.Path, Field: def.Field, Label: def.Label}, nil
		}
	}
	return Location{}, fmt.Errorf("%w: %q", types.ErrFieldNotFound, strings.TrimSpace(name))
}

// Lookup returns the definition stored at (path, field). The field name is
// matched like Resolve; the path must match exactly.
func (ix *Index) Lookup(path, field string) (types.FieldDef, bool) {
	want := normalize(field)
	for _, def := range ix.defs {
		if def.Path == path && normalize(def.Field) == want {
			return def, true
		}
	}
	return types.FieldDef{}, false
}

// Flatten walks the schema in declaration order and pairs each field with
// its value in view. Missing groups and fields yield nil values.
func (ix *Index) Flatten(view *types.Layer) []Entry {
	entries := make([]Entry, 0, len(ix.defs))
	for _, def := range ix.defs {
		value, _ := view.Value(def.Path, def.Field)
		entries = append(entries, Entry{Def: def, Value: value})
	}
	return entries
}

// Duplicates lists field names declared more than once. Resolve always
// returns the first declaration, so a document type carrying duplicates
// can never address the later ones.
func (ix *Index) Duplicates() []string {
	seen := make(map[string]int, len(ix.defs))
	var dups []string
	for _, def := range ix.defs {
		key := normalize(def.Field)
		seen[key]++
		if seen[key] == 2 {
			dups = append(dups, strings.TrimSpace(def.Field))
		}
	}
	return dups
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
