package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/common"
)

// BuildResultSchema returns the JSON-Schema (draft 2020-12 subset) for the
// backend's SUCCESS payload, as a generic map. It is generated from the
// declared field lists, so the 26-field contract is enforced at the wire
// instead of trusted: a payload with unknown enrichment keys fails loudly.
func BuildResultSchema() map[string]any {
	baseRow := map[string]any{
		"type":                 "object",
		"required":             []string{constants.FieldLineNumber},
		"properties":           stringProps(constants.BaseFields),
		"additionalProperties": false,
	}

	enrichmentProps := map[string]any{}
	for _, role := range constants.EnrichmentRoles() {
		keys := append([]string{constants.FieldLineNumber}, constants.FieldsForRole(role)...)
		enrichmentProps[string(role)] = map[string]any{
			"type":     "object",
			"required": []string{"status"},
			"properties": map[string]any{
				"status": map[string]any{"enum": []string{"ok", "failed"}},
				"error":  map[string]any{"type": "string"},
				"rows": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":                 "object",
						"required":             []string{constants.FieldLineNumber},
						"properties":           stringProps(keys),
						"additionalProperties": false,
					},
				},
			},
			"additionalProperties": false,
		}
	}

	return map[string]any{
		"type":     "object",
		"required": []string{"base"},
		"properties": map[string]any{
			"base": map[string]any{
				"type":     "object",
				"required": []string{"rows"},
				"properties": map[string]any{
					"rows": map[string]any{"type": "array", "items": baseRow},
				},
				"additionalProperties": false,
			},
			"enrichments": map[string]any{
				"type":                 "object",
				"properties":           enrichmentProps,
				"additionalProperties": false,
			},
		},
		"additionalProperties": false,
	}
}

func stringProps(keys []string) map[string]any {
	props := make(map[string]any, len(keys))
	for _, k := range keys {
		props[k] = map[string]any{"type": "string"}
	}
	return props
}

var (
	resultSchemaOnce sync.Once
	resultSchema     *jsonschema.Schema
	resultSchemaErr  error
)

func compiledResultSchema() (*jsonschema.Schema, error) {
	resultSchemaOnce.Do(func() {
		raw, err := json.Marshal(BuildResultSchema())
		if err != nil {
			resultSchemaErr = err
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("result.json", bytes.NewReader(raw)); err != nil {
			resultSchemaErr = err
			return
		}
		resultSchema, resultSchemaErr = compiler.Compile("result.json")
	})
	return resultSchema, resultSchemaErr
}

// ValidateResult checks a SUCCESS payload against the result schema.
func ValidateResult(payload []byte) error {
	schema, err := compiledResultSchema()
	if err != nil {
		return common.NewAppError("SCHEMA_ERROR", "compile result schema: "+err.Error(), common.ErrInternal)
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("result payload is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("result payload violates schema: %w", err)
	}
	return nil
}
