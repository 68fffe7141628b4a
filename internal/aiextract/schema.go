package aiextract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema is the shape the model must return: an object with a
// "fields" array of {key, value} pairs.
var responseSchema = map[string]any{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type":    "object",
	"properties": map[string]any{
		"fields": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key":   map[string]any{"type": "string", "minLength": 1},
					"value": map[string]any{"type": "number"},
				},
				"required":             []any{"key", "value"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []any{"fields"},
	"additionalProperties": false,
}

// validateResponse checks raw model output against the schema.
func validateResponse(raw []byte) error {
	b, err := json.Marshal(responseSchema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("response.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile("response.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return sch.Validate(doc)
}

func schemaJSON() string {
	b, _ := json.MarshalIndent(responseSchema, "", "  ")
	return string(b)
}
