// Tests for the SQLite backend lifecycle: Attach, GetTable, Detach.
package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/docket/pkg/types"
)

// attachAt attaches a backend to dir with a clock that advances one second
// per call, and detaches it at test end.
func attachAt(t *testing.T, dir string) *Backend {
	t.Helper()
	b := NewBackend()
	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	b.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}))
	t.Cleanup(func() { b.Detach() })
	return b
}

func table(t *testing.T, b *Backend, name string) types.Table {
	t.Helper()
	tbl, err := b.GetTable(name)
	require.NoError(t, err)
	return tbl
}

func TestBackendAttachCreatesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	attachAt(t, dir)

	for _, name := range []string{dbFile, documentsJSONL, documentTypesJSONL} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		if name != dbFile {
			assert.Zero(t, info.Size(), name)
		}
	}
}

func TestBackendAttachTwice(t *testing.T) {
	dir := t.TempDir()
	b := attachAt(t, dir)
	assert.ErrorIs(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: dir}), types.ErrAlreadyAttached)
}

func TestBackendAttachValidatesConfig(t *testing.T) {
	b := NewBackend()
	assert.ErrorIs(t, b.Attach(types.Config{DataDir: t.TempDir()}), types.ErrBackendEmpty)
	assert.ErrorIs(t, b.Attach(types.Config{Backend: "postgres", DataDir: t.TempDir()}), types.ErrBackendUnknown)
}

func TestBackendGetTable(t *testing.T) {
	b := attachAt(t, t.TempDir())
	for _, name := range types.StandardTableNames {
		_, err := b.GetTable(name)
		assert.NoError(t, err, name)
	}
	_, err := b.GetTable("invoices")
	assert.ErrorIs(t, err, types.ErrTableNotFound)
}

func TestBackendDetach(t *testing.T) {
	b := attachAt(t, t.TempDir())
	docs := table(t, b, types.TableDocuments)

	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach(), "detach is idempotent")

	_, err := b.GetTable(types.TableDocuments)
	assert.ErrorIs(t, err, types.ErrStoreDetached)

	_, err = docs.Fetch(nil)
	assert.ErrorIs(t, err, types.ErrStoreDetached, "stale accessors fail after detach")
}

func TestBackendReloadsFromJSONL(t *testing.T) {
	dir := t.TempDir()

	b := attachAt(t, dir)
	typeID, err := table(t, b, types.TableDocumentTypes).Set("", sampleType())
	require.NoError(t, err)
	docID, err := table(t, b, types.TableDocuments).Set("", sampleDocument(typeID))
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	b2 := attachAt(t, dir)
	got, err := table(t, b2, types.TableDocuments).Get(docID)
	require.NoError(t, err)
	doc := got.(*types.Document)
	assert.Equal(t, typeID, doc.TypeID)
	assert.Equal(t, "fattura-001.pdf", doc.Name)
	assert.Equal(t, "ACME", mustValue(t, doc.Result, "FORNITORE", "ragione"))
	require.NotNil(t, doc.Edited)
	assert.True(t, doc.Edited.IsEmpty())
	assert.Len(t, doc.Result.Table, 2)

	gotType, err := table(t, b2, types.TableDocumentTypes).Get(typeID)
	require.NoError(t, err)
	assert.Equal(t, []string{"FORNITORE", "RIEPILOGO"}, groupNames(gotType.(*types.DocumentType)))
}

func mustValue(t *testing.T, l *types.Layer, group, field string) any {
	t.Helper()
	v, ok := l.Value(group, field)
	require.True(t, ok, "%s.%s", group, field)
	return v
}
