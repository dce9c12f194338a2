package gemini

import (
	"encoding/json"

	"github.com/google/generative-ai-go/genai"
)

type jsonSchema struct {
	Type        any                    `json:"type"`
	Description string                 `json:"description"`
	Format      string                 `json:"format"`
	Enum        []string               `json:"enum"`
	Items       *jsonSchema            `json:"items"`
	Properties  map[string]*jsonSchema `json:"properties"`
	Required    []string               `json:"required"`
}

// toSchema converts the JSON-schema subset tools declare into a genai
// schema. A missing schema becomes an empty object.
func toSchema(raw json.RawMessage) *genai.Schema {
	var s jsonSchema
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	return convert(&s)
}

func convert(s *jsonSchema) *genai.Schema {
	out := &genai.Schema{
		Description: s.Description,
		Format:      s.Format,
		Enum:        s.Enum,
		Required:    s.Required,
	}

	typ, nullable := schemaType(s.Type)
	out.Type = typ
	out.Nullable = nullable

	if s.Items != nil {
		out.Items = convert(s.Items)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = convert(prop)
		}
	}

	return out
}

// schemaType maps a JSON-schema "type", which may be a list such as
// ["string", "null"].
func schemaType(v any) (genai.Type, bool) {
	var names []string
	switch t := v.(type) {
	case string:
		names = []string{t}
	case []any:
		for _, n := range t {
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
	}

	typ, nullable := genai.TypeObject, false
	for _, n := range names {
		switch n {
		case "string":
			typ = genai.TypeString
		case "number":
			typ = genai.TypeNumber
		case "integer":
			typ = genai.TypeInteger
		case "boolean":
			typ = genai.TypeBoolean
		case "array":
			typ = genai.TypeArray
		case "object":
			typ = genai.TypeObject
		case "null":
			nullable = true
		}
	}

	return typ, nullable
}
