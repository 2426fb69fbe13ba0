// JSONL record layouts for documents and document types.
package sqlite

import (
	"encoding/json"
	"time"
)

// JSONL file names inside DataDir.
const (
	documentsJSONL     = "documents.jsonl"
	documentTypesJSONL = "document_types.jsonl"
)

// documentJSON is one line of documents.jsonl. Keys match the SQLite
// columns so that the loader can insert records without hydrating them.
type documentJSON struct {
	DocID      string          `json:"doc_id"`
	TypeID     string          `json:"type_id"`
	Name       string          `json:"name"`
	Reference  string          `json:"reference,omitempty"`
	Status     string          `json:"status"`
	IsDeleted  bool            `json:"is_deleted"`
	Result     json.RawMessage `json:"result,omitempty"`
	Edited     json.RawMessage `json:"edited,omitempty"`
	Debug      string          `json:"debug,omitempty"`
	UploadedAt string          `json:"uploaded_at"`
	UpdatedAt  string          `json:"updated_at"`
}

// documentTypeJSON is one line of document_types.jsonl.
type documentTypeJSON struct {
	TypeID    string          `json:"type_id"`
	Name      string          `json:"name"`
	Version   string          `json:"version,omitempty"`
	Groups    json.RawMessage `json:"field_groups"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

// timeLayout keeps a fixed fraction width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime reads a stored timestamp. Unparsable values yield the zero time.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// rawOrNil returns nil for empty or null JSON text so the column stays NULL.
func rawOrNil(s *string) json.RawMessage {
	if s == nil || *s == "" || *s == "null" {
		return nil
	}
	return json.RawMessage(*s)
}
