// Package merge computes the effective view of a document from its base
// layer and its sparse patch layer.
package merge

import (
	"sort"

	"github.com/mesh-intelligence/docket/pkg/types"
)

// Merge overlays patch onto base and returns a new layer; neither input is
// modified. When either layer is nil a copy of the other is returned.
//
// Group fields of patch are written only where base already holds a non-nil
// value, unless union is set. Rows are matched by id: a tombstone removes
// its base row, any other patch row is overlaid field by field under the
// same rule. Patch rows without a base counterpart are new rows: they are
// placed in front of the base rows in ascending id order whatever union
// says, since union only gates fields. Tombstones without a base
// counterpart shadow nothing and are dropped, which keeps Merge idempotent
// for a fixed patch.
func Merge(base, patch *types.Layer, union bool) *types.Layer {
	if base == nil || patch == nil {
		if patch != nil {
			return patch.Clone()
		}
		return base.Clone()
	}

	merged := base.Clone()
	for group, fields := range patch.Groups {
		for field, value := range fields {
			if union || hasValue(merged.Groups[group], field) {
				merged.Set(group, field, types.CloneValue(value))
			}
		}
	}

	if patch.Table != nil {
		rows := mergeRows(merged.Table, patch.Table, union)
		if merged.Table != nil || len(rows) > 0 {
			merged.Table = rows
		}
	}
	return merged
}

// mergeRows reconciles base rows with patch rows keyed by id. base is owned
// by the caller's clone and may be reused.
func mergeRows(base, patch []types.Row, union bool) []types.Row {
	pending := make(map[int]types.Row, len(patch))
	for _, row := range patch {
		pending[row.ID] = row
	}

	kept := make([]types.Row, 0, len(base))
	for _, row := range base {
		edit, ok := pending[row.ID]
		if !ok {
			kept = append(kept, row)
			continue
		}
		delete(pending, row.ID)
		if edit.IsTombstone() {
			continue
		}
		kept = append(kept, overlayRow(row, edit, union))
	}

	added := make([]types.Row, 0, len(pending))
	for _, row := range pending {
		if row.IsTombstone() {
			continue
		}
		added = append(added, row.Clone())
	}
	sort.Slice(added, func(i, j int) bool { return added[i].ID < added[j].ID })

	return append(added, kept...)
}

func overlayRow(base, edit types.Row, union bool) types.Row {
	if base.Fields == nil {
		base.Fields = make(map[string]any, len(edit.Fields))
	}
	for key, value := range edit.Fields {
		if union || hasValue(base.Fields, key) {
			base.Fields[key] = types.CloneValue(value)
		}
	}
	return base
}

func hasValue(fields map[string]any, key string) bool {
	v, ok := fields[key]
	return ok && v != nil
}
