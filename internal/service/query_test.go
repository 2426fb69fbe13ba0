package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/docket/pkg/types"
)

func TestListPagesEffectiveDocuments(t *testing.T) {
	s := newService(t, nil)
	typeID, err := s.PutType(invoiceType())
	require.NoError(t, err)

	var ids []string
	for _, nome := range []string{"Anna", "Bruno", "Carla", "Dario", "Elena"} {
		doc, err := s.Create(&types.Document{TypeID: typeID, Name: nome + ".pdf", Result: invoiceResult(nome)})
		require.NoError(t, err)
		ids = append(ids, doc.DocumentID)
	}
	require.NoError(t, s.DeleteRow(ids[0], 1))

	page, err := s.List(ListOptions{Sort: "name", Order: "asc", Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.TotalItems)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Content, 2)
	assert.Equal(t, ids[0], page.Content[0].DocumentID)
	assert.Len(t, page.Content[0].Result.Table, 1, "content carries the merged view")

	last, err := s.List(ListOptions{Sort: "name", Order: "asc", Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, last.Content, 1)
	assert.Equal(t, ids[4], last.Content[0].DocumentID)

	found, err := s.List(ListOptions{Query: "carla"})
	require.NoError(t, err)
	assert.Equal(t, 1, found.TotalItems)
	assert.Equal(t, ids[2], found.Content[0].DocumentID)

	defaults, err := s.List(ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, defaults.TotalPages)
	assert.Len(t, defaults.Content, 5)
}

func TestListFiltersByStatus(t *testing.T) {
	s := newService(t, nil)
	doc, typeID := createInvoice(t, s, "Al")
	createInvoice(t, s, "Bo")
	_, err := s.Confirm(context.Background(), doc.DocumentID)
	require.NoError(t, err)

	page, err := s.List(ListOptions{Statuses: []string{types.StatusConfirmed}})
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalItems)
	assert.Equal(t, doc.DocumentID, page.Content[0].DocumentID)

	counts, err := s.Count("")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{types.StatusConfirmed: 1, types.StatusUploaded: 1}, counts)

	counts, err = s.Count(typeID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[types.StatusConfirmed])
}

func TestDatasets(t *testing.T) {
	s := newService(t, nil)

	_, err := s.Datasets()
	assert.ErrorIs(t, err, types.ErrNotFound)

	doc, _ := createInvoice(t, s, "Al")
	createInvoice(t, s, "Bo")
	require.NoError(t, s.DeleteRow(doc.DocumentID, 2))
	_, err = s.Confirm(context.Background(), doc.DocumentID)
	require.NoError(t, err)

	entries, err := s.Datasets()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "FATTURA Al", entries[0].InputText)
	assert.Len(t, entries[0].TargetText.Table, 1)

	one, err := s.Dataset(doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, entries[0], one)

	_, err = s.Dataset("missing")
	assert.ErrorIs(t, err, types.ErrDocumentNotFound)
}
