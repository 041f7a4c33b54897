package verify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/idverify/constants"
)

var (
	outcomeSchemaOnce sync.Once
	outcomeSchema     *jsonschema.Schema
	outcomeSchemaErr  error
)

// BuildOutcomeJSONSchema returns the JSON-Schema every stored Outcome must satisfy.
func BuildOutcomeJSONSchema() map[string]any {
	field := func(extra map[string]any) map[string]any {
		props := map[string]any{
			"provided": map[string]any{"type": "string", "minLength": 1},
			"verified": map[string]any{"type": "boolean"},
			"match":    map[string]any{"type": "string"},
			"found_in": map[string]any{"type": "string", "pattern": `^\.\.\.[\s\S]*\.\.\.$`},
			"error":    map[string]any{"type": "string"},
		}
		for k, v := range extra {
			props[k] = v
		}
		return map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties":           props,
			"required":             []string{"provided", "verified"},
		}
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"verified": map[string]any{"type": "boolean"},
			"verification": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"last_name":  field(nil),
					"birthday":   field(map[string]any{"normalized": map[string]any{"type": "string"}}),
					"student_id": field(nil),
				},
				"required": []string{"last_name", "birthday", "student_id"},
			},
			"extracted_text": map[string]any{"type": "string", "minLength": 1},
			"profiles": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    map[string]any{"type": "string", "enum": constants.AsStringSlice(constants.DefaultProfiles)},
			},
			"warnings":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"duration_ms": map[string]any{"type": "integer", "minimum": 0},
		},
		"required": []string{"verified", "verification", "extracted_text", "profiles"},
	}
}

func compiledOutcomeSchema() (*jsonschema.Schema, error) {
	outcomeSchemaOnce.Do(func() {
		b, err := json.Marshal(BuildOutcomeJSONSchema())
		if err != nil {
			outcomeSchemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("outcome.json", bytes.NewReader(b)); err != nil {
			outcomeSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		outcomeSchema, outcomeSchemaErr = compiler.Compile("outcome.json")
	})
	return outcomeSchema, outcomeSchemaErr
}

// ValidateOutcome checks the JSON form of o against the outcome schema and
// the rule that the overall verdict is the AND of the field verdicts.
func ValidateOutcome(o *Outcome) error {
	if o == nil {
		return fmt.Errorf("nil outcome")
	}
	want := o.Verification.LastName.Verified && o.Verification.Birthday.Verified && o.Verification.StudentID.Verified
	if o.Verified != want {
		return fmt.Errorf("verified=%v disagrees with field verdicts", o.Verified)
	}

	schema, err := compiledOutcomeSchema()
	if err != nil {
		return err
	}
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal outcome: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("outcome does not match schema: %w", err)
	}
	return nil
}
