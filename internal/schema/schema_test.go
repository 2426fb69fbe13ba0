package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/docket/pkg/types"
)

func invoiceType() *types.DocumentType {
	return &types.DocumentType{
		Name: "fattura",
		Groups: types.Groups{
			{Name: "INFORMAZIONI", Fields: []types.FieldDef{
				{Field: "Nome ", Label: "Nome", Type: types.FieldTypeString, Mandatory: true},
				{Field: "data", Label: "Data", Type: types.FieldTypeDate},
			}},
			{Name: "Totali", Fields: []types.FieldDef{
				{Path: "CAMPI", Field: "totale", Label: "Totale", Type: types.FieldTypeFloat},
			}},
		},
	}
}

func TestResolve(t *testing.T) {
	ix := New(invoiceType())

	tests := []struct {
		name      string
		query     string
		wantPath  string
		wantLabel string
		wantErr   error
	}{
		{name: "case and whitespace insensitive", query: "  NOME", wantPath: "INFORMAZIONI", wantLabel: "Nome"},
		{name: "explicit path wins over group name", query: "totale", wantPath: "CAMPI", wantLabel: "Totale"},
		{name: "unknown field", query: "iban", wantErr: types.ErrFieldNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ix.Resolve(tt.query)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, types.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, loc.Path)
			assert.Equal(t, tt.wantLabel, loc.Label)
		})
	}
}

func TestResolveFirstMatchWins(t *testing.T) {
	dt := &types.DocumentType{Groups: types.Groups{
		{Name: "A", Fields: []types.FieldDef{{Field: "codice", Label: "primo"}}},
		{Name: "B", Fields: []types.FieldDef{{Field: "CODICE", Label: "secondo"}}},
	}}
	ix := New(dt)

	loc, err := ix.Resolve("codice")
	require.NoError(t, err)
	assert.Equal(t, "A", loc.Path)
	assert.Equal(t, "primo", loc.Label)
	assert.Equal(t, []string{"CODICE"}, ix.Duplicates())
}

func TestFlatten(t *testing.T) {
	ix := New(invoiceType())
	view := &types.Layer{Groups: map[string]types.Group{
		"INFORMAZIONI": {"Nome ": "ACME", "extra": "ignored"},
		"CAMPI":        {"totale": 0.0},
	}}

	entries := ix.Flatten(view)
	require.Len(t, entries, 3)
	assert.Equal(t, "ACME", entries[0].Value)
	assert.Equal(t, "INFORMAZIONI", entries[1].Def.Path)
	assert.Nil(t, entries[1].Value)
	assert.Equal(t, 0.0, entries[2].Value, "zero is a value, not absence")
}

func TestFlattenNilView(t *testing.T) {
	entries := New(invoiceType()).Flatten(nil)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Nil(t, e.Value)
	}
}

func TestLookup(t *testing.T) {
	ix := New(invoiceType())

	def, ok := ix.Lookup("CAMPI", "TOTALE")
	require.True(t, ok)
	assert.Equal(t, types.FieldTypeFloat, def.Type)

	_, ok = ix.Lookup("Totali", "totale")
	assert.False(t, ok, "lookup uses the storage path, not the schema group")
	assert.Empty(t, ix.Duplicates())
	assert.Empty(t, New(nil).Fields())
}
