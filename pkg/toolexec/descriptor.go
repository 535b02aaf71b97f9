package toolexec

import (
	"context"
	"fmt"
)

// Handler is the function signature for tool execution. The returned string
// becomes the tool-result message content.
type Handler func(ctx context.Context, args map[string]interface{}) (string, error)

// Descriptor is the normalized registration form of a tool
type Descriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON schema for the arguments object
	Handler     Handler                `json:"-"`
}

// NormalizeSchema converts a raw tool schema into a Descriptor. Two wire
// shapes are accepted: flat {name, description, parameters} and nested
// {type: "function", function: {name, description, parameters}}. Both
// resolve to the same name lookup.
func NormalizeSchema(raw map[string]interface{}) (Descriptor, error) {
	if raw == nil {
		return Descriptor{}, fmt.Errorf("tool schema cannot be nil")
	}

	obj := raw
	if nested, ok := raw["function"].(map[string]interface{}); ok {
		obj = nested
	}

	name, _ := obj["name"].(string)
	if name == "" {
		return Descriptor{}, fmt.Errorf("tool schema has no name")
	}

	desc := Descriptor{Name: name}
	if d, ok := obj["description"].(string); ok {
		desc.Description = d
	}

	params, ok := obj["parameters"].(map[string]interface{})
	if !ok {
		// Anthropic-style schemas call the same field input_schema
		params, _ = obj["input_schema"].(map[string]interface{})
	}
	if params == nil {
		params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
	}
	desc.Parameters = params

	return desc, nil
}

// ProviderSchema renders the descriptor in the shape provider adapters
// consume: {name, description, input_schema}.
func (d *Descriptor) ProviderSchema() map[string]interface{} {
	return map[string]interface{}{
		"name":         d.Name,
		"description":  d.Description,
		"input_schema": d.Parameters,
	}
}
