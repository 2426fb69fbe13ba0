// Package rows edits individual rows of a document's patch layer. The base
// layer is only read: deletions of base rows become tombstones in the patch.
package rows

import (
	"fmt"

	"github.com/mesh-intelligence/docket/pkg/types"
)

// AddRow appends a new row to doc.Edited. The row id is one more than the
// largest id in either layer; any id in payload is ignored. An empty payload
// yields a row holding every known column set to nil, so that the new row is
// never mistaken for a tombstone.
func AddRow(doc *types.Document, payload map[string]any) (types.Row, error) {
	if err := requireTable(doc); err != nil {
		return types.Row{}, err
	}
	id := max(doc.Result.MaxRowID(), doc.Edited.MaxRowID()) + 1
	row := types.RowFromMap(id, payload)
	if row.IsTombstone() {
		cols := columns(doc)
		if len(cols) == 0 {
			return types.Row{}, fmt.Errorf("%w: new row needs at least one field", types.ErrMalformedPatch)
		}
		row.Fields = make(map[string]any, len(cols))
		for _, c := range cols {
			row.Fields[c] = nil
		}
	}
	return upsert(doc, row), nil
}

// EditRow overlays payload onto the edited row rowID, or records it as a new
// patch row when the row so far only exists in doc.Result.
func EditRow(doc *types.Document, rowID int, payload map[string]any) (types.Row, error) {
	if err := requireTable(doc); err != nil {
		return types.Row{}, err
	}
	if doc.Result.RowIndex(rowID) < 0 && doc.Edited.RowIndex(rowID) < 0 {
		return types.Row{}, fmt.Errorf("%w: %d", types.ErrRowNotFound, rowID)
	}
	row := types.RowFromMap(rowID, payload)
	if row.IsTombstone() {
		return types.Row{}, fmt.Errorf("%w: row edit without fields", types.ErrMalformedPatch)
	}
	return upsert(doc, row), nil
}

// DeleteRow hides row rowID from the effective view. A row present in
// doc.Result is shadowed by a tombstone; a row that only ever existed in
// doc.Edited is removed outright.
func DeleteRow(doc *types.Document, rowID int) error {
	if err := requireTable(doc); err != nil {
		return err
	}
	if doc.Result.RowIndex(rowID) >= 0 {
		upsert(doc, types.Row{ID: rowID})
		return nil
	}
	idx := doc.Edited.RowIndex(rowID)
	if idx < 0 {
		return fmt.Errorf("%w: %d", types.ErrRowNotFound, rowID)
	}
	doc.Edited.Table = append(doc.Edited.Table[:idx], doc.Edited.Table[idx+1:]...)
	return nil
}

// columns lists the field names used by any row of either layer.
func columns(doc *types.Document) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, l := range []*types.Layer{doc.Result, doc.Edited} {
		if l == nil {
			continue
		}
		for _, r := range l.Table {
			for k := range r.Fields {
				if !seen[k] {
					seen[k] = true
					cols = append(cols, k)
				}
			}
		}
	}
	return cols
}

func requireTable(doc *types.Document) error {
	if doc == nil {
		return types.ErrDocumentNotFound
	}
	if !doc.Result.HasTable() && !doc.Edited.HasTable() {
		return types.ErrNoTabularData
	}
	return nil
}

// upsert writes row into doc.Edited. An existing edited row with the same id
// is replaced by a tombstone, or has the new fields laid over it; otherwise
// the row is appended. Returns the stored row.
func upsert(doc *types.Document, row types.Row) types.Row {
	if doc.Edited == nil {
		doc.Edited = &types.Layer{}
	}
	if doc.Edited.Table == nil {
		doc.Edited.Table = []types.Row{}
	}

	idx := doc.Edited.RowIndex(row.ID)
	if idx < 0 {
		doc.Edited.Table = append(doc.Edited.Table, row)
		return row.Clone()
	}

	existing := doc.Edited.Table[idx]
	if row.IsTombstone() {
		existing = row
	} else {
		if existing.Fields == nil {
			existing.Fields = make(map[string]any, len(row.Fields))
		}
		for k, v := range row.Fields {
			existing.Fields[k] = v
		}
	}
	doc.Edited.Table[idx] = existing
	return existing.Clone()
}
