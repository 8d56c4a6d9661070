package mcptool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// argSchema validates tool call arguments against a compiled JSON Schema.
// A nil compiled schema accepts everything; some servers advertise tools
// without an input schema.
type argSchema struct {
	compiled *jsonschema.Schema
}

// compileArgSchema compiles the tool's advertised input schema.
func compileArgSchema(t mcp.Tool) (*argSchema, error) {
	if t.InputSchema.Properties == nil && t.InputSchema.Required == nil {
		return &argSchema{}, nil
	}

	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema for %q: %w", t.Name, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", t.Name, err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", t.Name, err)
	}
	return &argSchema{compiled: compiled}, nil
}

func (s *argSchema) validate(args map[string]any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	// Round-trip through JSON so nested values use the types the validator
	// expects (map[string]any, []any, float64).
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.compiled.Validate(v)
}
