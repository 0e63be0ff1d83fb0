package extractor

import (
	"sync"

	"github.com/AustinJR6/wwjd-memory/pkg/model"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

func memoryTypeEnum() []any {
	enum := make([]any, len(model.MemoryTypes))
	for i, t := range model.MemoryTypes {
		enum[i] = string(t)
	}
	return enum
}

// itemSchema is the minimum shape an extracted item must have to be kept.
// importance and tags are coerced afterwards instead of validated.
func itemSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"type": {Type: "string", Enum: memoryTypeEnum()},
			"text": {Type: "string", MinLength: jsonschema.Ptr(1)},
		},
		Required: []string{"type", "text"},
	}
}

// responseSchema is what the model is asked to produce
func responseSchema() *jsonschema.Schema {
	item := itemSchema()
	item.Properties["text"].Description = "A durable fact about the user, at most 160 characters"
	item.Properties["importance"] = &jsonschema.Schema{
		Type:        "integer",
		Description: "How useful this is for future conversations, 1 (trivial) to 5 (essential)",
	}
	item.Properties["tags"] = &jsonschema.Schema{
		Type:     "array",
		Items:    &jsonschema.Schema{Type: "string"},
		MaxItems: jsonschema.Ptr(model.MaxTags),
	}
	item.Required = []string{"type", "text", "importance", "tags"}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"items": {
				Type:     "array",
				Items:    item,
				MaxItems: jsonschema.Ptr(MaxCandidates),
			},
		},
		Required: []string{"items"},
	}
}

var resolvedItemSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return itemSchema().Resolve(nil)
})

// toGenaiSchema converts a JSON Schema into the subset understood by Gemini structured output
func toGenaiSchema(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	out := &genai.Schema{
		Description: schema.Description,
		Required:    schema.Required,
	}

	switch schema.Type {
	case "object":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "integer":
		out.Type = genai.TypeInteger
	case "number":
		out.Type = genai.TypeNumber
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		return nil, goerr.New("unsupported schema type", goerr.V("type", schema.Type))
	}

	for _, v := range schema.Enum {
		if s, ok := v.(string); ok {
			out.Enum = append(out.Enum, s)
		}
	}

	if schema.MaxItems != nil {
		out.MaxItems = genai.Ptr(int64(*schema.MaxItems))
	}

	if len(schema.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, prop := range schema.Properties {
			converted, err := toGenaiSchema(prop)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema", goerr.V("property", name))
			}
			out.Properties[name] = converted
		}
	}

	if schema.Items != nil {
		converted, err := toGenaiSchema(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		out.Items = converted
	}

	return out, nil
}
