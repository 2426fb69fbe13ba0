package types

import "time"

// Document statuses.
const (
	StatusUploaded  = "UPLOADED"
	StatusProcessed = "PROCESSED"
	StatusConfirmed = "CONFIRMED"
	StatusError     = "ERROR"
)

// Document is one extracted file with its base and patch layers.
// Result is written only by the extraction process; Edited grows through
// row edits and field patches. Documents are deleted logically.
type Document struct {
	DocumentID string    `json:"id"`
	TypeID     string    `json:"type_id"`
	Name       string    `json:"name,omitempty"`
	Reference  string    `json:"reference,omitempty"`
	Status     string    `json:"status"`
	IsDeleted  bool      `json:"is_deleted"`
	Result     *Layer    `json:"result,omitempty"`
	Edited     *Layer    `json:"edited,omitempty"`
	Debug      string    `json:"debug,omitempty"` // Raw extraction input text.
	UploadedAt time.Time `json:"uploaded_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
