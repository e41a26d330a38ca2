// Package schema holds the provider-neutral JSON schema used for tool
// parameters and structured model responses. Type names use the upper-case
// spelling of the native structured-output API; providers that expect
// lower-case names sanitize on the way out.
package schema

import "strings"

// Type is a schema type name.
type Type string

const (
	TypeObject  Type = "OBJECT"
	TypeArray   Type = "ARRAY"
	TypeString  Type = "STRING"
	TypeNumber  Type = "NUMBER"
	TypeInteger Type = "INTEGER"
	TypeBoolean Type = "BOOLEAN"
)

// Schema describes a JSON value.
type Schema struct {
	Type        Type               `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Object builds an OBJECT schema.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

// String builds a STRING schema.
func String(description string, enum ...string) *Schema {
	return &Schema{Type: TypeString, Description: description, Enum: enum}
}

// Number builds a NUMBER schema.
func Number(description string) *Schema {
	return &Schema{Type: TypeNumber, Description: description}
}

// Integer builds an INTEGER schema.
func Integer(description string) *Schema {
	return &Schema{Type: TypeInteger, Description: description}
}

// Boolean builds a BOOLEAN schema.
func Boolean(description string) *Schema {
	return &Schema{Type: TypeBoolean, Description: description}
}

// Array builds an ARRAY schema.
func Array(description string, items *Schema) *Schema {
	return &Schema{Type: TypeArray, Description: description, Items: items}
}

// Map converts s to a plain JSON-schema map. When lower is true type names
// are lower-cased, which is what OpenAI-compatible endpoints accept.
func (s *Schema) Map(lower bool) map[string]any {
	if s == nil {
		return nil
	}
	t := string(s.Type)
	if lower {
		t = strings.ToLower(t)
	}
	m := map[string]any{"type": t}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		m["enum"] = append([]string(nil), s.Enum...)
	}
	if s.Items != nil {
		m["items"] = s.Items.Map(lower)
	}
	if s.Type == TypeObject {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.Map(lower)
		}
		m["properties"] = props
		if len(s.Required) > 0 {
			m["required"] = append([]string(nil), s.Required...)
		}
	}
	return m
}
