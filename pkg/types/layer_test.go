package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayerJSONRoundTrip(t *testing.T) {
	input := `{
		"INFORMAZIONI": {"nome": "Al", "importo": 12.5},
		"TABELLA": [{"id": 1, "descrizione": "bulloni"}, {"id": 2}]
	}`

	var l Layer
	require.NoError(t, json.Unmarshal([]byte(input), &l))

	v, ok := l.Value("INFORMAZIONI", "nome")
	require.True(t, ok)
	assert.Equal(t, "Al", v)
	require.Len(t, l.Table, 2)
	assert.Equal(t, 1, l.Table[0].ID)
	assert.Equal(t, "bulloni", l.Table[0].Fields["descrizione"])
	assert.True(t, l.Table[1].IsTombstone())

	out, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(out))
}

func TestLayerWithoutTable(t *testing.T) {
	var l Layer
	require.NoError(t, json.Unmarshal([]byte(`{"CAMPI": {"x": 1}}`), &l))
	assert.False(t, l.HasTable())

	require.NoError(t, json.Unmarshal([]byte(`{"TABELLA": []}`), &l))
	assert.True(t, l.HasTable())
	assert.Empty(t, l.Table)
}

func TestLayerUnmarshalRejectsMalformedShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "group is not an object", input: `{"CAMPI": "x"}`},
		{name: "table is not an array", input: `{"TABELLA": {"id": 1}}`},
		{name: "row without id", input: `{"TABELLA": [{"x": 1}]}`},
		{name: "fractional row id", input: `{"TABELLA": [{"id": 1.5}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l Layer
			assert.Error(t, json.Unmarshal([]byte(tt.input), &l))
		})
	}
}

func TestRowIDFromString(t *testing.T) {
	var r Row
	require.NoError(t, json.Unmarshal([]byte(`{"id": "7", "qta": 3}`), &r))
	assert.Equal(t, 7, r.ID)
	assert.Equal(t, float64(3), r.Fields["qta"])
}

func TestLayerCloneIsDeep(t *testing.T) {
	l := &Layer{
		Groups: map[string]Group{"CAMPI": {"tags": []any{"a"}}},
		Table:  []Row{{ID: 1, Fields: map[string]any{"x": map[string]any{"y": 1}}}},
	}
	c := l.Clone()
	c.Groups["CAMPI"]["tags"].([]any)[0] = "b"
	c.Table[0].Fields["x"].(map[string]any)["y"] = 2

	assert.Equal(t, "a", l.Groups["CAMPI"]["tags"].([]any)[0])
	assert.Equal(t, 1, l.Table[0].Fields["x"].(map[string]any)["y"])
	assert.Nil(t, (*Layer)(nil).Clone())
}

func TestLayerHelpers(t *testing.T) {
	var l *Layer
	assert.Equal(t, 0, l.MaxRowID())
	assert.Equal(t, -1, l.RowIndex(1))
	assert.True(t, l.IsEmpty())

	l = &Layer{Table: []Row{{ID: 3}, {ID: 9}, {ID: 4}}}
	assert.Equal(t, 9, l.MaxRowID())
	assert.Equal(t, 2, l.RowIndex(4))

	l.Set("CAMPI", "nuovo", "v")
	v, ok := l.Value("CAMPI", "nuovo")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestRowFromMapDropsID(t *testing.T) {
	r := RowFromMap(5, map[string]any{"id": 99, "qta": 1})
	assert.Equal(t, 5, r.ID)
	assert.Equal(t, map[string]any{"qta": 1}, r.Fields)

	assert.True(t, RowFromMap(6, map[string]any{"id": 6}).IsTombstone())
}
