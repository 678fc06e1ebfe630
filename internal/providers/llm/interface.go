package llm

import (
	"context"
)

// Client is the text generation backend used by the agents.
// Any provider implementation should satisfy this.
type Client interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	// GenerateJSON asks for output constrained to schema; the returned string is raw JSON.
	GenerateJSON(ctx context.Context, prompt string, schema *Schema) (string, error)
	// GenerateTextStream calls onDelta with each incremental chunk.
	GenerateTextStream(ctx context.Context, prompt string, onDelta func(chunk string) error) error
}

type SchemaType string

const (
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeBoolean SchemaType = "boolean"
	TypeArray   SchemaType = "array"
	TypeObject  SchemaType = "object"
)

// Schema is a provider-neutral subset of JSON schema for structured output.
type Schema struct {
	Type       SchemaType         `json:"type"`
	Items      *Schema            `json:"items,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

// StringArray is the schema for a JSON array of strings.
func StringArray() *Schema {
	return &Schema{Type: TypeArray, Items: &Schema{Type: TypeString}}
}

// schemaInstruction renders a schema as a prompt suffix for providers without native support.
func schemaInstruction(schema *Schema) string {
	if schema == nil {
		return ""
	}
	return "\n\nRespond with JSON only, no prose and no code fences, matching this schema: " + schema.describe()
}

func (s *Schema) describe() string {
	switch s.Type {
	case TypeArray:
		if s.Items == nil {
			return "array"
		}
		return "array of " + s.Items.describe()
	case TypeObject:
		out := "object {"
		first := true
		for _, name := range s.Required {
			p, ok := s.Properties[name]
			if !ok {
				continue
			}
			if !first {
				out += ", "
			}
			out += name + ": " + p.describe()
			first = false
		}
		return out + "}"
	default:
		return string(s.Type)
	}
}
