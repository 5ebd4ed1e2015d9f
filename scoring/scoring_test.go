package scoring

import (
	"math"
	"testing"

	"integrity-analyze-service/models"
)

func TestComputeOverallEmpty(t *testing.T) {
	got := ComputeOverall(nil)

	if got.TIS != 100 {
		t.Errorf("TIS = %d, want 100", got.TIS)
	}
	if got.Assessment != models.AssessmentSafe {
		t.Errorf("Assessment = %s, want SAFE", got.Assessment)
	}
	if got.Confidence != 0.95 {
		t.Errorf("Confidence = %v, want 0.95", got.Confidence)
	}
	if got.Notes != "No differences detected - product integrity maintained" {
		t.Errorf("Notes = %q", got.Notes)
	}
}

func TestComputeOverallTiers(t *testing.T) {
	tests := []struct {
		name           string
		findings       []models.Finding
		wantTIS        int
		wantAssessment string
		wantNotes      string
	}{
		{
			name: "minor scratch stays safe",
			findings: []models.Finding{
				{Type: "scratch", Severity: "LOW", Confidence: 0.7, TISDelta: -8},
			},
			wantTIS:        92,
			wantAssessment: models.AssessmentSafe,
			wantNotes:      "Product integrity maintained - safe to proceed",
		},
		{
			name: "medium damage lands in moderate band",
			findings: []models.Finding{
				{Type: "dent", Severity: "MEDIUM", Confidence: 0.8, TISDelta: -40},
			},
			wantTIS:        60,
			wantAssessment: models.AssessmentModerateRisk,
			wantNotes:      "Moderate risk detected - supervisor review recommended",
		},
		{
			name: "heavy damage lands in high-risk band",
			findings: []models.Finding{
				{Type: "dent", Severity: "MEDIUM", Confidence: 0.8, TISDelta: -65},
			},
			wantTIS:        35,
			wantAssessment: models.AssessmentHighRisk,
			wantNotes:      "High risk detected - immediate quarantine required",
		},
		{
			name: "score clamps at 100 on positive delta",
			findings: []models.Finding{
				{Type: "other", Severity: "LOW", Confidence: 0.5, TISDelta: 20},
			},
			wantTIS:        100,
			wantAssessment: models.AssessmentSafe,
			wantNotes:      "Product integrity maintained - safe to proceed",
		},
		{
			name: "clamped zero bumps to one so it differs from pristine",
			findings: []models.Finding{
				{Type: "dent", Severity: "MEDIUM", Confidence: 0.8, TISDelta: -150},
			},
			wantTIS:        1,
			wantAssessment: models.AssessmentHighRisk,
			wantNotes:      "High risk detected - immediate quarantine required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeOverall(tt.findings)
			if got.TIS != tt.wantTIS {
				t.Errorf("TIS = %d, want %d", got.TIS, tt.wantTIS)
			}
			if got.Assessment != tt.wantAssessment {
				t.Errorf("Assessment = %s, want %s", got.Assessment, tt.wantAssessment)
			}
			if got.Notes != tt.wantNotes {
				t.Errorf("Notes = %q, want %q", got.Notes, tt.wantNotes)
			}
		})
	}
}

func TestComputeOverallCriticalOverrides(t *testing.T) {
	tests := []struct {
		name           string
		findings       []models.Finding
		wantTIS        int
		wantAssessment string
		wantNotes      string
	}{
		{
			name: "confident seal tamper caps the score",
			findings: []models.Finding{
				{Type: "seal_tamper", Severity: "HIGH", Confidence: 0.9, TISDelta: -40},
			},
			wantTIS:        20,
			wantAssessment: models.AssessmentHighRisk,
			wantNotes:      "Critical security breach: seal_tamper - quarantine",
		},
		{
			name: "confident repackaging caps lower",
			findings: []models.Finding{
				{Type: "repackaging", Severity: "HIGH", Confidence: 0.7, TISDelta: -35},
			},
			wantTIS:        15,
			wantAssessment: models.AssessmentHighRisk,
			wantNotes:      "Product substitution: repackaging - quarantine",
		},
		{
			name: "confident digital edit caps lowest",
			findings: []models.Finding{
				{Type: "digital_edit", Severity: "HIGH", Confidence: 0.85, TISDelta: -50},
			},
			wantTIS:        10,
			wantAssessment: models.AssessmentHighRisk,
			wantNotes:      "Digital tampering detected - highest security risk",
		},
		{
			name: "uncertain seal tamper does not trigger the override",
			findings: []models.Finding{
				{Type: "seal_tamper", Severity: "HIGH", Confidence: 0.5, TISDelta: -40},
			},
			wantTIS:        60,
			wantAssessment: models.AssessmentModerateRisk,
			wantNotes:      "Moderate risk detected - supervisor review recommended",
		},
		{
			name: "medium-severity seal tamper does not trigger the override",
			findings: []models.Finding{
				{Type: "seal_tamper", Severity: "MEDIUM", Confidence: 0.9, TISDelta: -15},
			},
			wantTIS:        85,
			wantAssessment: models.AssessmentSafe,
			wantNotes:      "Product integrity maintained - safe to proceed",
		},
		{
			name: "seal tamper outranks digital edit despite the stricter cap",
			findings: []models.Finding{
				{Type: "seal_tamper", Severity: "HIGH", Confidence: 0.9, TISDelta: -5},
				{Type: "digital_edit", Severity: "MEDIUM", Confidence: 0.9, TISDelta: -5},
			},
			wantTIS:        20,
			wantAssessment: models.AssessmentHighRisk,
			wantNotes:      "Critical security breach: seal_tamper - quarantine",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeOverall(tt.findings)
			if got.TIS != tt.wantTIS {
				t.Errorf("TIS = %d, want %d", got.TIS, tt.wantTIS)
			}
			if got.Assessment != tt.wantAssessment {
				t.Errorf("Assessment = %s, want %s", got.Assessment, tt.wantAssessment)
			}
			if got.Notes != tt.wantNotes {
				t.Errorf("Notes = %q, want %q", got.Notes, tt.wantNotes)
			}
		})
	}
}

func TestComputeOverallMultiIssueOverrides(t *testing.T) {
	tests := []struct {
		name           string
		findings       []models.Finding
		wantTIS        int
		wantAssessment string
		wantNotes      string
	}{
		{
			name: "two high findings cap at 30 even from a safe base",
			findings: []models.Finding{
				{Type: "label_mismatch", Severity: "HIGH", Confidence: 0.85, TISDelta: -10},
				{Type: "missing_item", Severity: "HIGH", Confidence: 0.8, TISDelta: -5},
			},
			wantTIS:        30,
			wantAssessment: models.AssessmentHighRisk,
			wantNotes:      "Multiple high-severity issues (2) - quarantine",
		},
		{
			name: "one high plus two medium caps at 35",
			findings: []models.Finding{
				{Type: "label_mismatch", Severity: "HIGH", Confidence: 0.85, TISDelta: -10},
				{Type: "dent", Severity: "MEDIUM", Confidence: 0.7, TISDelta: -5},
				{Type: "scratch", Severity: "MEDIUM", Confidence: 0.7, TISDelta: -5},
			},
			wantTIS:        35,
			wantAssessment: models.AssessmentHighRisk,
			wantNotes:      "Multiple damage issues detected - quarantine",
		},
		{
			name: "multi-issue keeps a stricter critical cap but replaces its note",
			findings: []models.Finding{
				{Type: "seal_tamper", Severity: "HIGH", Confidence: 0.9, TISDelta: -40},
				{Type: "label_mismatch", Severity: "HIGH", Confidence: 0.85, TISDelta: -40},
			},
			wantTIS:        20,
			wantAssessment: models.AssessmentHighRisk,
			wantNotes:      "Multiple high-severity issues (2) - quarantine",
		},
		{
			name: "lowercase severities still count toward the overrides",
			findings: []models.Finding{
				{Type: "label_mismatch", Severity: "high", Confidence: 0.85, TISDelta: -10},
				{Type: "missing_item", Severity: "high", Confidence: 0.8, TISDelta: -5},
			},
			wantTIS:        30,
			wantAssessment: models.AssessmentHighRisk,
			wantNotes:      "Multiple high-severity issues (2) - quarantine",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeOverall(tt.findings)
			if got.TIS != tt.wantTIS {
				t.Errorf("TIS = %d, want %d", got.TIS, tt.wantTIS)
			}
			if got.Assessment != tt.wantAssessment {
				t.Errorf("Assessment = %s, want %s", got.Assessment, tt.wantAssessment)
			}
			if got.Notes != tt.wantNotes {
				t.Errorf("Notes = %q, want %q", got.Notes, tt.wantNotes)
			}
		})
	}
}

func TestComputeOverallConfidenceWeighting(t *testing.T) {
	tests := []struct {
		name     string
		findings []models.Finding
		want     float64
	}{
		{
			name: "severity weights scale each confidence",
			findings: []models.Finding{
				{Type: "label_mismatch", Severity: "HIGH", Confidence: 0.8, TISDelta: -10},
				{Type: "scratch", Severity: "LOW", Confidence: 0.6, TISDelta: -5},
			},
			// (0.8*1.0 + 0.6*0.3) / 2
			want: 0.49,
		},
		{
			name: "unknown severity falls back to the low weight",
			findings: []models.Finding{
				{Type: "other", Severity: "CRITICAL", Confidence: 1.0, TISDelta: -5},
			},
			want: 0.3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeOverall(tt.findings)
			if math.Abs(got.Confidence-tt.want) > 1e-9 {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.want)
			}
		})
	}
}
