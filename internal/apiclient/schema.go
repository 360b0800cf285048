package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildStatusEnvelopeSchema returns a JSON-Schema (draft 2020-12 subset) for
// the poll response envelope. The API's status vocabulary is outside our
// control; the schema pins the shape only, so a vocabulary change shows up as
// a compatibility warning instead of a wrong terminal outcome.
func BuildStatusEnvelopeSchema() map[string]any {
	task := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"status"},
	}
	record := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":   map[string]any{"type": "string"},
			"Task": map[string]any{"type": "array", "items": task},
		},
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"data": map[string]any{"type": "array", "items": record},
		},
		"required": []string{"data"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
