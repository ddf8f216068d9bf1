package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParsePlan loads an invocation plan from planner text output and validates it.
// The output is untyped; parse failure is an ordinary error, never a panic.
func ParsePlan(text string) (*Plan, error) {
	var plan Plan
	if err := decodeDocument(text, &plan); err != nil {
		return nil, err
	}
	for i, call := range plan.Calls {
		if strings.TrimSpace(call.Tool) == "" {
			return nil, fmt.Errorf("plan call %d has no tool name", i)
		}
		if call.Arguments == nil {
			plan.Calls[i].Arguments = map[string]any{}
		}
	}
	return &plan, nil
}

// ParseSummary loads a discovery summary from planner text output and validates it.
func ParseSummary(text string) (*Summary, error) {
	var summary Summary
	if err := decodeDocument(text, &summary); err != nil {
		return nil, err
	}
	if strings.TrimSpace(summary.Name) == "" {
		return nil, fmt.Errorf("summary has no name")
	}
	if strings.TrimSpace(summary.Guidance) == "" {
		return nil, fmt.Errorf("summary has no guidance")
	}
	return &summary, nil
}

// decodeDocument parses a structured document out of model output. Models
// asked for bare JSON still wrap it in markdown fences or emit YAML often
// enough that both are accepted.
func decodeDocument(text string, v any) error {
	payload := stripFences(text)
	if payload == "" {
		return fmt.Errorf("empty planner output")
	}
	jsonErr := json.Unmarshal([]byte(payload), v)
	if jsonErr == nil {
		return nil
	}
	if yamlErr := yaml.Unmarshal([]byte(payload), v); yamlErr == nil {
		return nil
	}
	return fmt.Errorf("parse planner output: %w", jsonErr)
}

// stripFences removes a surrounding markdown code fence, if any, and trims
// whitespace.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// Drop the language tag line (```json etc).
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
