package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildCandidateListSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. It is both passed to the extraction model as a structured
// output constraint and used locally to validate what comes back.
func BuildCandidateListSchema() map[string]any {
	riskProps := map[string]any{
		"risk":       map[string]any{"type": "string", "minLength": 1},
		"mitigation": map[string]any{"type": "string"},
	}
	candidateProps := map[string]any{
		"team_name":        map[string]any{"type": "string", "minLength": 1},
		"leader_name":      map[string]any{"type": "string"},
		"headcount":        map[string]any{"type": "integer", "minimum": 0, "maximum": 500},
		"work_description": map[string]any{"type": "string"},
		"risks": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           riskProps,
				"required":             []string{"risk"},
			},
		},
		"feedback": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	}
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           candidateProps,
			"required":             []string{"team_name"},
		},
	}
}

// ValidateCandidatesJSON validates raw service output against the candidate
// list schema.
func ValidateCandidatesJSON(data []byte) error {
	b, err := json.Marshal(BuildCandidateListSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("candidates.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("candidates.json")
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
