package models

// Finding type vocabulary recognized by the analysis pipeline.
const (
	TypeSealTamper    = "seal_tamper"
	TypeRepackaging   = "repackaging"
	TypeLabelMismatch = "label_mismatch"
	TypeDigitalEdit   = "digital_edit"
	TypeDent          = "dent"
	TypeScratch       = "scratch"
	TypeStain         = "stain"
	TypeColorShift    = "color_shift"
	TypeMissingItem   = "missing_item"
	TypeOther         = "other"
)

// FindingTypes lists every recognized finding type.
var FindingTypes = []string{
	TypeSealTamper,
	TypeRepackaging,
	TypeLabelMismatch,
	TypeDigitalEdit,
	TypeDent,
	TypeScratch,
	TypeStain,
	TypeColorShift,
	TypeMissingItem,
	TypeOther,
}

// Finding severity levels.
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"
)

// Overall assessment tiers.
const (
	AssessmentSafe         = "SAFE"
	AssessmentModerateRisk = "MODERATE_RISK"
	AssessmentHighRisk     = "HIGH_RISK"
	AssessmentUnknown      = "UNKNOWN"
)

// ImagePair holds one baseline/current pair for a single analysis call.
// It is request-scoped and never persisted.
type ImagePair struct {
	BaselineBytes []byte `json:"baseline_bytes,omitempty"`
	BaselineMime  string `json:"baseline_mime"`
	CurrentBytes  []byte `json:"current_bytes,omitempty"`
	CurrentMime   string `json:"current_mime"`
	ViewLabel     string `json:"view_label"`
}

// Finding represents one detected visual difference between the baseline
// and current images. Immutable once normalized.
type Finding struct {
	ID              string    `json:"id"`
	Region          string    `json:"region"`
	BBox            []float64 `json:"bbox,omitempty"`
	Type            string    `json:"type"`
	Description     string    `json:"description"`
	Severity        string    `json:"severity"`
	Confidence      float64   `json:"confidence"`
	Explainability  []string  `json:"explainability"`
	SuggestedAction string    `json:"suggested_action"`
	TISDelta        int       `json:"tis_delta"`
	View            string    `json:"view"`
}

// AnalysisMetadata carries per-analysis counters and stage flags.
type AnalysisMetadata struct {
	TotalDifferences    int    `json:"total_differences"`
	HighSeverityCount   int    `json:"high_severity_count"`
	MediumSeverityCount int    `json:"medium_severity_count"`
	LowSeverityCount    int    `json:"low_severity_count"`
	AnalysisTimestamp   string `json:"analysis_timestamp"`
	ScoringVersion      string `json:"scoring_version"`
	GeminiDiffCount     int    `json:"gemini_diff_count"`
	CVUsed              bool   `json:"cv_used"`
	CVAvailable         bool   `json:"cv_available"`
	GeminiReady         bool   `json:"gemini_ready"`
	ServiceReachable    bool   `json:"service_reachable"`
	FailureReason       string `json:"failure_reason,omitempty"`
}

// AnalysisResult is the complete outcome for one image pair.
type AnalysisResult struct {
	View              string           `json:"view"`
	Differences       []Finding        `json:"differences"`
	AggregateTIS      int              `json:"aggregate_tis"`
	OverallAssessment string           `json:"overall_assessment"`
	ConfidenceOverall float64          `json:"confidence_overall"`
	Notes             string           `json:"notes"`
	CanUpload         bool             `json:"can_upload"`
	AnalysisMetadata  AnalysisMetadata `json:"analysis_metadata"`
}

// AnalyzeRequest is the /analyze request body. Clients refer to each image
// by one of several historical aliases; the first non-empty alias wins.
type AnalyzeRequest struct {
	BaselineB64    string `json:"baseline_b64"`
	BaselineURL    string `json:"baseline_url"`
	Baseline       string `json:"baseline"`
	BaselineAngle1 string `json:"baseline_angle1"`
	Baseline1      string `json:"baseline_1"`

	CurrentB64    string `json:"current_b64"`
	CurrentURL    string `json:"current_url"`
	Current       string `json:"current"`
	CurrentAngle1 string `json:"current_angle1"`
	Current1      string `json:"current_1"`

	ViewLabel string `json:"view_label"`
}

// BaselineSource resolves the baseline image reference from its aliases.
func (r *AnalyzeRequest) BaselineSource() string {
	return firstNonEmpty(r.BaselineB64, r.BaselineURL, r.Baseline, r.BaselineAngle1, r.Baseline1)
}

// CurrentSource resolves the current image reference from its aliases.
func (r *AnalyzeRequest) CurrentSource() string {
	return firstNonEmpty(r.CurrentB64, r.CurrentURL, r.Current, r.CurrentAngle1, r.Current1)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
