package parser

import (
	"strconv"

	"integrity-analyze-service/models"
)

// maxFindings bounds how many findings one analysis may carry.
const maxFindings = 8

// NormalizeFindings converts the loosely-typed finding objects of a payload
// into canonical Findings: defaults filled, primitives coerced, at most
// eight items kept in model-given order, and the view label attached to
// every item. Numeric values are coerced but not clamped; the scorer clamps
// the final aggregate only.
func NormalizeFindings(payload Payload, view string) []models.Finding {
	raw, _ := payload["differences"].([]any)
	findings := make([]models.Finding, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		findings = append(findings, normalizeFinding(obj, view))
		if len(findings) == maxFindings {
			break
		}
	}
	return findings
}

func normalizeFinding(obj map[string]any, view string) models.Finding {
	f := models.Finding{
		ID:              "diff-unknown",
		Region:          "unknown",
		Type:            models.TypeOther,
		Severity:        models.SeverityLow,
		Confidence:      0.5,
		Explainability:  []string{},
		SuggestedAction: "Review",
		View:            view,
	}

	if v, ok := obj["id"]; ok && v != nil {
		f.ID = stringify(v)
	}
	if s := stringValue(obj["region"]); s != "" {
		f.Region = s
	}
	f.BBox = floatSlice(obj["bbox"])
	if s := stringValue(obj["type"]); s != "" {
		f.Type = s
	}
	f.Description = stringValue(obj["description"])
	if s := stringValue(obj["severity"]); s != "" {
		f.Severity = s
	}
	if n, ok := numberValue(obj["confidence"]); ok && n != 0 {
		f.Confidence = n
	}
	if arr, ok := obj["explainability"].([]any); ok {
		for _, entry := range arr {
			if s, ok := entry.(string); ok {
				f.Explainability = append(f.Explainability, s)
			}
		}
	}
	if s := stringValue(obj["suggested_action"]); s != "" {
		f.SuggestedAction = s
	}
	if n, ok := numberValue(obj["tis_delta"]); ok {
		f.TISDelta = int(n)
	}

	return f
}

// stringify renders any present id value as a string.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return "diff-unknown"
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func numberValue(v any) (float64, bool) {
	n, ok := v.(float64)
	return n, ok
}

func floatSlice(v any) []float64 {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(arr))
	for _, entry := range arr {
		n, ok := entry.(float64)
		if !ok {
			return nil
		}
		out = append(out, n)
	}
	return out
}
