package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Field types accepted by the validation engine.
const (
	FieldTypeString           = "string"
	FieldTypeNumber           = "number"
	FieldTypeInteger          = "integer"
	FieldTypeFloat            = "float"
	FieldTypeDate             = "date"
	FieldTypeRemoteValidation = "remoteValidation"
)

// DocumentType is the field schema shared by every document of one type.
type DocumentType struct {
	TypeID    string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
	Groups    Groups    `json:"groups" yaml:"groups"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// FieldGroup is one named, ordered list of field definitions.
type FieldGroup struct {
	Name   string
	Fields []FieldDef
}

// Groups keeps schema groups in declaration order. It encodes as an object
// mapping group name to its field list, in both JSON and YAML.
type Groups []FieldGroup

// FieldDef is the schema metadata of one addressable field. Path is the
// layer group holding the value; when empty it defaults to the name of the
// schema group declaring the field.
type FieldDef struct {
	Path             string            `json:"path,omitempty" yaml:"path,omitempty"`
	Field            string            `json:"field" yaml:"field"`
	Label            string            `json:"label,omitempty" yaml:"label,omitempty"`
	Type             string            `json:"type" yaml:"type"`
	Mandatory        bool              `json:"mandatory" yaml:"mandatory"`
	LengthMin        *int              `json:"lengthMin,omitempty" yaml:"lengthMin,omitempty"`
	LengthMax        *int              `json:"lengthMax,omitempty" yaml:"lengthMax,omitempty"`
	Min              any               `json:"min,omitempty" yaml:"min,omitempty"` // Number, or DD/MM/YYYY for dates.
	Max              any               `json:"max,omitempty" yaml:"max,omitempty"`
	RemoteValidation *RemoteValidation `json:"remoteValidation,omitempty" yaml:"remoteValidation,omitempty"`
}

// RemoteValidation configures an external lookup confirming that a value
// exists in a remote record set.
type RemoteValidation struct {
	URL       string         `json:"url" yaml:"url"`
	APIKey    string         `json:"apiKey" yaml:"apiKey"`
	APISecret string         `json:"apiSecret" yaml:"apiSecret"`
	Key       string         `json:"key" yaml:"key"`
	Params    map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Input     map[string]any `json:"input,omitempty" yaml:"input,omitempty"`
}

// MarshalJSON writes the groups as an object in declaration order.
func (g Groups) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, group := range g {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(group.Name)
		if err != nil {
			return nil, err
		}
		fields := group.Fields
		if fields == nil {
			fields = []FieldDef{}
		}
		body, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("encoding group %q: %w", group.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a group object token by token so that declaration
// order survives decoding.
func (g *Groups) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decoding groups: %w", err)
	}
	if tok == nil {
		*g = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: groups must be an object", ErrInvalidData)
	}
	var out Groups
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decoding groups: %w", err)
		}
		name, _ := tok.(string)
		var fields []FieldDef
		if err := dec.Decode(&fields); err != nil {
			return fmt.Errorf("decoding group %q: %w", name, err)
		}
		out = append(out, FieldGroup{Name: name, Fields: fields})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decoding groups: %w", err)
	}
	*g = out
	return nil
}

// MarshalYAML writes the groups as a mapping in declaration order.
func (g Groups) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, group := range g {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: group.Name}
		value := &yaml.Node{}
		fields := group.Fields
		if fields == nil {
			fields = []FieldDef{}
		}
		if err := value.Encode(fields); err != nil {
			return nil, fmt.Errorf("encoding group %q: %w", group.Name, err)
		}
		node.Content = append(node.Content, key, value)
	}
	return node, nil
}

// UnmarshalYAML reads a group mapping keeping declaration order.
func (g *Groups) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: groups must be a mapping (line %d)", ErrInvalidData, value.Line)
	}
	out := make(Groups, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		name := value.Content[i].Value
		var fields []FieldDef
		if err := value.Content[i+1].Decode(&fields); err != nil {
			return fmt.Errorf("decoding group %q: %w", name, err)
		}
		out = append(out, FieldGroup{Name: name, Fields: fields})
	}
	*g = out
	return nil
}
