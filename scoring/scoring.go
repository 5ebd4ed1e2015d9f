package scoring

import (
	"fmt"
	"strings"

	"integrity-analyze-service/models"
)

// ScoringVersion tags every analysis result with the heuristic revision
// that produced it.
const ScoringVersion = "cv-gemini-v1"

// CanUploadThreshold is the minimum trust score that allows the shipment
// to proceed without quarantine. Distinct from the tier boundaries.
const CanUploadThreshold = 40

var severityWeights = map[string]float64{
	models.SeverityHigh:   1.0,
	models.SeverityMedium: 0.6,
	models.SeverityLow:    0.3,
}

const defaultSeverityWeight = 0.3

// Overall is the aggregate outcome for one finding sequence.
type Overall struct {
	TIS        int
	Assessment string
	Confidence float64
	Notes      string
}

// ComputeOverall maps a normalized finding sequence to a trust score, risk
// tier, aggregate confidence and a human-readable note. Pure and
// deterministic: identical inputs always yield identical outputs, and the
// rule order is fixed (base tier, then critical-issue override, then
// multi-issue override).
func ComputeOverall(findings []models.Finding) Overall {
	if len(findings) == 0 {
		return Overall{
			TIS:        100,
			Assessment: models.AssessmentSafe,
			Confidence: 0.95,
			Notes:      "No differences detected - product integrity maintained",
		}
	}

	tis := 100
	totalConfidence := 0.0
	var criticalTypes []string
	highCount := 0
	mediumCount := 0

	for _, f := range findings {
		tis += f.TISDelta

		severity := strings.ToUpper(f.Severity)
		weight, ok := severityWeights[severity]
		if !ok {
			weight = defaultSeverityWeight
		}
		totalConfidence += f.Confidence * weight

		switch severity {
		case models.SeverityHigh:
			highCount++
		case models.SeverityMedium:
			mediumCount++
		}

		if severity == models.SeverityHigh && f.Confidence > 0.6 {
			switch f.Type {
			case models.TypeSealTamper, models.TypeRepackaging, models.TypeDigitalEdit:
				criticalTypes = append(criticalTypes, f.Type)
			}
		}
	}

	confidence := totalConfidence / float64(len(findings))

	tis = clamp(tis, 0, 100)
	// Any findings at all keep the score above zero.
	if tis == 0 {
		tis = 1
	}

	var assessment, notes string
	switch {
	case tis >= 80:
		assessment, notes = models.AssessmentSafe, "Product integrity maintained - safe to proceed"
	case tis >= 40:
		assessment, notes = models.AssessmentModerateRisk, "Moderate risk detected - supervisor review recommended"
	default:
		assessment, notes = models.AssessmentHighRisk, "High risk detected - immediate quarantine required"
	}

	// Critical-issue override: fixed priority, first present type wins even
	// when a lower-priority type would imply a stricter cap.
	if hasType(criticalTypes, models.TypeSealTamper) {
		tis = min(tis, 20)
		assessment = models.AssessmentHighRisk
		notes = fmt.Sprintf("Critical security breach: %s - quarantine", strings.Join(criticalTypes, ", "))
	} else if hasType(criticalTypes, models.TypeRepackaging) {
		tis = min(tis, 15)
		assessment = models.AssessmentHighRisk
		notes = fmt.Sprintf("Product substitution: %s - quarantine", strings.Join(criticalTypes, ", "))
	} else if hasType(criticalTypes, models.TypeDigitalEdit) {
		tis = min(tis, 10)
		assessment = models.AssessmentHighRisk
		notes = "Digital tampering detected - highest security risk"
	}

	// Multi-issue override tightens against the post-override value.
	if highCount >= 2 {
		tis = min(tis, 30)
		assessment = models.AssessmentHighRisk
		notes = fmt.Sprintf("Multiple high-severity issues (%d) - quarantine", highCount)
	} else if highCount >= 1 && mediumCount >= 2 {
		tis = min(tis, 35)
		assessment = models.AssessmentHighRisk
		notes = "Multiple damage issues detected - quarantine"
	}

	return Overall{TIS: tis, Assessment: assessment, Confidence: confidence, Notes: notes}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
