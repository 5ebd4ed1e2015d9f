package parser

import (
	"errors"
	"fmt"

	"integrity-analyze-service/models"
)

var validTypes = func() map[string]bool {
	m := make(map[string]bool, len(models.FindingTypes))
	for _, t := range models.FindingTypes {
		m[t] = true
	}
	return m
}()

var validSeverities = map[string]bool{
	models.SeverityLow:    true,
	models.SeverityMedium: true,
	models.SeverityHigh:   true,
}

// ValidateFindings checks a payload against the findings schema:
// "differences" must be an array of objects whose fields, when present,
// carry the expected types and enum values. Absent fields are tolerated;
// the normalizer fills their defaults. bbox is deliberately unchecked.
func ValidateFindings(payload Payload) error {
	raw, ok := payload["differences"]
	if !ok || raw == nil {
		return errors.New("differences is required")
	}
	items, ok := raw.([]any)
	if !ok {
		return errors.New("differences must be an array")
	}
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("differences[%d] must be an object", i)
		}
		if err := validateFinding(obj); err != nil {
			return fmt.Errorf("differences[%d]: %w", i, err)
		}
	}
	return nil
}

func validateFinding(obj map[string]any) error {
	for _, key := range []string{"id", "region", "description", "suggested_action"} {
		if v, ok := obj[key]; ok && v != nil {
			if _, ok := v.(string); !ok {
				return fmt.Errorf("%s must be a string", key)
			}
		}
	}

	if v, ok := obj["type"]; ok && v != nil {
		s, isString := v.(string)
		if !isString || !validTypes[s] {
			return fmt.Errorf("type %v is not a recognized finding type", v)
		}
	}

	if v, ok := obj["severity"]; ok && v != nil {
		s, isString := v.(string)
		if !isString || !validSeverities[s] {
			return fmt.Errorf("severity %v must be LOW, MEDIUM or HIGH", v)
		}
	}

	for _, key := range []string{"confidence", "tis_delta"} {
		if v, ok := obj[key]; ok && v != nil {
			if _, isNumber := v.(float64); !isNumber {
				return fmt.Errorf("%s must be a number", key)
			}
		}
	}

	if v, ok := obj["explainability"]; ok && v != nil {
		arr, isArray := v.([]any)
		if !isArray {
			return errors.New("explainability must be an array")
		}
		for _, entry := range arr {
			if _, isString := entry.(string); !isString {
				return errors.New("explainability must contain only strings")
			}
		}
	}

	return nil
}
