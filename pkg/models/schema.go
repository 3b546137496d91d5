package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// FlowSchema is the JSON schema flow documents are checked against before decoding.
var FlowSchema = map[string]any{
	"type":     "object",
	"required": []any{"id", "nodes"},
	"properties": map[string]any{
		"id":   map[string]any{"type": "string", "minLength": 1},
		"name": map[string]any{"type": "string"},
		"nodes": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":     "object",
				"required": []any{"id", "type"},
				"properties": map[string]any{
					"id": map[string]any{"type": "string", "minLength": 1},
					"type": map[string]any{
						"type": "string",
						"enum": []any{"trigger", "message", "questionnaire", "condition", "http"},
					},
					"config": map[string]any{"type": "object"},
				},
			},
		},
		"edges": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"from", "to"},
				"properties": map[string]any{
					"from":  map[string]any{"type": "string", "minLength": 1},
					"to":    map[string]any{"type": "string", "minLength": 1},
					"label": map[string]any{"type": "string"},
				},
			},
		},
	},
}

// ValidateFlowDocument checks a raw flow document against FlowSchema.
func ValidateFlowDocument(document []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(FlowSchema),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return fmt.Errorf("failed to validate flow document: %w", err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return fmt.Errorf("flow document does not match schema: %s", strings.Join(messages, "; "))
	}

	return nil
}

// ParseFlow validates a raw document against the schema, decodes it and checks its invariants.
func ParseFlow(document []byte) (*Flow, error) {
	if err := ValidateFlowDocument(document); err != nil {
		return nil, err
	}

	var flow Flow
	if err := json.Unmarshal(document, &flow); err != nil {
		return nil, fmt.Errorf("failed to decode flow: %w", err)
	}

	if err := flow.Validate(); err != nil {
		return nil, err
	}

	return &flow, nil
}
