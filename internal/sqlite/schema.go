// SQLite DDL for the documents and document_types tables.
package sqlite

// Schema DDL. The database is rebuilt from the JSONL files on every Attach,
// so these statements only ever run against an empty database.
const (
	createDocuments = `CREATE TABLE documents (
    doc_id TEXT PRIMARY KEY,
    type_id TEXT NOT NULL,
    name TEXT NOT NULL,
    reference TEXT,
    status TEXT NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    result TEXT,
    edited TEXT,
    debug TEXT,
    uploaded_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createDocumentTypes = `CREATE TABLE document_types (
    type_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    version TEXT,
    field_groups TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`
)

// Index DDL for the list and count queries.
const (
	idxDocumentsType     = `CREATE INDEX idx_documents_type ON documents(type_id, is_deleted);`
	idxDocumentsStatus   = `CREATE INDEX idx_documents_status ON documents(status, is_deleted);`
	idxDocumentsUploaded = `CREATE INDEX idx_documents_uploaded ON documents(uploaded_at);`
	idxDocumentTypesName = `CREATE INDEX idx_document_types_name ON document_types(name);`
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createDocuments,
	createDocumentTypes,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxDocumentsType,
	idxDocumentsStatus,
	idxDocumentsUploaded,
	idxDocumentTypesName,
}
