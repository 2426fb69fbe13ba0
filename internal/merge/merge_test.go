package merge

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/docket/pkg/types"
)

func row(id int, kv ...any) types.Row {
	if len(kv) == 0 {
		return types.Row{ID: id}
	}
	fields := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i].(string)] = kv[i+1]
	}
	return types.Row{ID: id, Fields: fields}
}

func ids(rows []types.Row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestMergeAbsentLayers(t *testing.T) {
	l := &types.Layer{Groups: map[string]types.Group{"CAMPI": {"a": 1}}}

	assert.Nil(t, Merge(nil, nil, true))
	assert.Equal(t, l, Merge(l, nil, false))
	assert.Equal(t, l, Merge(nil, l, false))

	got := Merge(nil, l, true)
	got.Groups["CAMPI"]["a"] = 2
	assert.Equal(t, 1, l.Groups["CAMPI"]["a"], "absent base returns a copy of the patch")
}

func TestMergeGroupFields(t *testing.T) {
	base := &types.Layer{Groups: map[string]types.Group{
		"INFORMAZIONI": {"nome": "Al", "vuoto": nil},
	}}
	patch := &types.Layer{Groups: map[string]types.Group{
		"INFORMAZIONI": {"nome": "Alberto", "nuovo": "x", "vuoto": "y"},
		"CAMPI":        {"totale": 10.0},
	}}

	t.Run("union introduces new fields and groups", func(t *testing.T) {
		got := Merge(base, patch, true)
		assert.Equal(t, types.Group{"nome": "Alberto", "nuovo": "x", "vuoto": "y"}, got.Groups["INFORMAZIONI"])
		assert.Equal(t, types.Group{"totale": 10.0}, got.Groups["CAMPI"])
	})

	t.Run("non-union only overwrites existing values", func(t *testing.T) {
		got := Merge(base, patch, false)
		assert.Equal(t, types.Group{"nome": "Alberto", "vuoto": nil}, got.Groups["INFORMAZIONI"])
		assert.NotContains(t, got.Groups, "CAMPI")
	})

	assert.Equal(t, "Al", base.Groups["INFORMAZIONI"]["nome"], "base is never mutated")
}

func TestMergeTombstoneRemovesBaseRow(t *testing.T) {
	base := &types.Layer{Table: []types.Row{row(4, "q", 1.0), row(5, "q", 2.0), row(6, "q", 3.0)}}
	patch := &types.Layer{Table: []types.Row{row(5)}}

	for _, union := range []bool{true, false} {
		got := Merge(base, patch, union)
		assert.Equal(t, []int{4, 6}, ids(got.Table), "union=%v", union)
	}
	assert.Len(t, base.Table, 3)
}

func TestMergeRowOverlay(t *testing.T) {
	base := &types.Layer{Table: []types.Row{row(1, "descrizione", "viti", "qta", 10.0)}}
	patch := &types.Layer{Table: []types.Row{row(1, "qta", 12.0, "nota", "urgente")}}

	got := Merge(base, patch, true)
	require.Len(t, got.Table, 1)
	assert.Equal(t, map[string]any{"descrizione": "viti", "qta": 12.0, "nota": "urgente"}, got.Table[0].Fields)

	got = Merge(base, patch, false)
	assert.Equal(t, map[string]any{"descrizione": "viti", "qta": 12.0}, got.Table[0].Fields)
}

func TestMergeNewRowsGoInFrontAscending(t *testing.T) {
	base := &types.Layer{Table: []types.Row{row(1, "a", 1.0), row(2, "a", 2.0)}}
	patch := &types.Layer{Table: []types.Row{row(11, "a", "y"), row(9, "a", "x"), row(2, "a", 20.0)}}

	got := Merge(base, patch, true)
	assert.Equal(t, []int{9, 11, 1, 2}, ids(got.Table))
	assert.Equal(t, "x", got.Table[0].Fields["a"])
	assert.Equal(t, 20.0, got.Table[3].Fields["a"])
}

func TestMergeNewRowWithoutBaseTable(t *testing.T) {
	base := &types.Layer{Groups: map[string]types.Group{"CAMPI": {"a": 1}}}
	patch := &types.Layer{Table: []types.Row{row(9, "descrizione", "nuova")}}

	got := Merge(base, patch, true)
	require.Len(t, got.Table, 1)
	assert.Equal(t, 9, got.Table[0].ID)
	assert.Equal(t, "nuova", got.Table[0].Fields["descrizione"])

	got = Merge(base, patch, false)
	require.Len(t, got.Table, 1, "new rows do not depend on union")
	assert.Equal(t, "nuova", got.Table[0].Fields["descrizione"])

	tombstonesOnly := &types.Layer{Table: []types.Row{row(3)}}
	assert.False(t, Merge(base, tombstonesOnly, true).HasTable())
}

func TestMergeNonUnionKeepsNewRows(t *testing.T) {
	base := &types.Layer{Table: []types.Row{row(1, "a", 1.0)}}
	patch := &types.Layer{Table: []types.Row{row(9, "a", "x"), row(1, "a", 5.0, "b", "nuovo")}}

	got := Merge(base, patch, false)
	assert.Equal(t, []int{9, 1}, ids(got.Table))
	assert.Equal(t, "x", got.Table[0].Fields["a"])
	assert.Equal(t, 5.0, got.Table[1].Fields["a"])
	assert.NotContains(t, got.Table[1].Fields, "b", "union still gates fields of existing rows")
}

func TestMergeOrphanTombstoneIsDropped(t *testing.T) {
	base := &types.Layer{Table: []types.Row{row(1, "a", 1.0)}}
	patch := &types.Layer{Table: []types.Row{row(7)}}

	got := Merge(base, patch, true)
	assert.Equal(t, []int{1}, ids(got.Table))
}

func TestMergePatchWithoutTableKeepsBaseRows(t *testing.T) {
	base := &types.Layer{Table: []types.Row{row(1, "a", 1.0)}}
	patch := &types.Layer{Groups: map[string]types.Group{"CAMPI": {"x": "y"}}}

	got := Merge(base, patch, true)
	assert.Equal(t, base.Table, got.Table)
}

// randomLayer builds a layer over a small key space so that base and patch
// overlap often.
func randomLayer(r *rand.Rand, withTombstones bool) *types.Layer {
	l := &types.Layer{Groups: map[string]types.Group{}}
	for g := 0; g < 3; g++ {
		if r.Intn(3) == 0 {
			continue
		}
		group := types.Group{}
		for f := 0; f < 4; f++ {
			switch r.Intn(4) {
			case 0:
			case 1:
				group[fmt.Sprintf("f%d", f)] = nil
			default:
				group[fmt.Sprintf("f%d", f)] = float64(r.Intn(100))
			}
		}
		l.Groups[fmt.Sprintf("G%d", g)] = group
	}
	if r.Intn(4) == 0 {
		return l
	}
	l.Table = []types.Row{}
	perm := r.Perm(8)
	for _, id := range perm[:r.Intn(6)] {
		if withTombstones && r.Intn(3) == 0 {
			l.Table = append(l.Table, row(id+1))
			continue
		}
		l.Table = append(l.Table, row(id+1, "c", float64(r.Intn(10)), fmt.Sprintf("k%d", r.Intn(3)), "v"))
	}
	return l
}

func TestMergeProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		base := randomLayer(r, false)
		patch := randomLayer(r, true)

		for _, union := range []bool{true, false} {
			once := Merge(base, patch, union)
			twice := Merge(once, patch, union)
			require.Equal(t, once, twice, "idempotence, case %d union=%v", i, union)
		}

		narrow := Merge(base, patch, false)
		for group, fields := range narrow.Groups {
			for field := range fields {
				_, ok := base.Value(group, field)
				require.True(t, ok, "non-union introduced %s.%s in case %d", group, field, i)
			}
		}
		if base.HasTable() {
			require.True(t, narrow.HasTable(), "case %d", i)
		}

		for _, union := range []bool{true, false} {
			merged := Merge(base, patch, union)
			for _, p := range patch.Table {
				if p.IsTombstone() && base.RowIndex(p.ID) >= 0 {
					require.Equal(t, -1, merged.RowIndex(p.ID), "tombstone law, case %d union=%v", i, union)
				}
				if !p.IsTombstone() && base.RowIndex(p.ID) < 0 {
					idx := merged.RowIndex(p.ID)
					require.GreaterOrEqual(t, idx, 0, "new-row law, case %d union=%v", i, union)
					require.Equal(t, p.Fields, merged.Table[idx].Fields, "case %d union=%v", i, union)
				}
			}
		}
	}
}
