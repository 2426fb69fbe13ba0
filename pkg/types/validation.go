package types

// FieldSummary is the part of a FieldDef, plus the checked value, that a
// caller needs to render a validation message without the schema.
type FieldSummary struct {
	Label     string `json:"label"`
	Path      string `json:"path"`
	Field     string `json:"field"`
	Type      string `json:"type"`
	Mandatory bool   `json:"mandatory"`
	Value     any    `json:"value"`
}

// FieldError is one failing field of a validation pass.
type FieldError struct {
	Field   FieldSummary `json:"field"`
	Message string       `json:"error"`
}

// Summarize copies the reportable metadata of def alongside value.
func Summarize(def FieldDef, value any) FieldSummary {
	return FieldSummary{
		Label:     def.Label,
		Path:      def.Path,
		Field:     def.Field,
		Type:      def.Type,
		Mandatory: def.Mandatory,
		Value:     value,
	}
}
