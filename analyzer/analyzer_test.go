package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"integrity-analyze-service/llm"
	"integrity-analyze-service/models"
)

type reply struct {
	text string
	err  error
}

// fakeClient plays back scripted replies and records every prompt it saw.
// When the script runs out the last reply repeats.
type fakeClient struct {
	replies []reply
	calls   int
	prompts [][]llm.Part
}

func (f *fakeClient) Generate(ctx context.Context, parts []llm.Part) (string, error) {
	f.prompts = append(f.prompts, parts)
	idx := f.calls
	f.calls++
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	r := f.replies[idx]
	return r.text, r.err
}

func (f *fakeClient) SourceName() string { return "Fake" }

func testPair() *models.ImagePair {
	return &models.ImagePair{
		BaselineBytes: []byte("baseline-bytes"),
		BaselineMime:  "image/png",
		CurrentBytes:  []byte("current-bytes"),
		CurrentMime:   "image/png",
		ViewLabel:     "angle_1",
	}
}

const sealTamperReply = `{"differences": [{"id": "d1", "region": "top edge", "type": "seal_tamper",
	"description": "Seal gap visible", "severity": "HIGH", "confidence": 0.84,
	"explainability": ["gap at seam"], "suggested_action": "Immediate quarantine", "tis_delta": -40}]}`

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		message string
		want    time.Duration
	}{
		{name: "first attempt uses base delay", attempt: 0, want: 2 * time.Second},
		{name: "second attempt doubles", attempt: 1, want: 4 * time.Second},
		{name: "third attempt doubles again", attempt: 2, want: 8 * time.Second},
		{
			name:    "server hint wins with one second buffer",
			attempt: 0,
			message: "quota exceeded, please retry in 3.5s before the next call",
			want:    4500 * time.Millisecond,
		},
		{
			name:    "integer hint is also honored",
			attempt: 2,
			message: "retry in 10s",
			want:    11 * time.Second,
		},
		{
			name:    "unparseable message falls back to exponential",
			attempt: 1,
			message: "slow down",
			want:    4 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := retryDelay(2*time.Second, tt.attempt, tt.message)
			if got != tt.want {
				t.Errorf("retryDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyzePairSuccess(t *testing.T) {
	client := &fakeClient{replies: []reply{{text: sealTamperReply}}}
	a := New(client, 3, time.Millisecond)

	result := a.AnalyzePair(context.Background(), testPair())

	if client.calls != 1 {
		t.Errorf("provider called %d times, want 1", client.calls)
	}
	if len(result.Differences) != 1 {
		t.Fatalf("got %d differences, want 1", len(result.Differences))
	}
	if result.Differences[0].View != "angle_1" {
		t.Errorf("finding View = %q, want angle_1", result.Differences[0].View)
	}
	if result.AggregateTIS != 20 {
		t.Errorf("AggregateTIS = %d, want 20", result.AggregateTIS)
	}
	if result.OverallAssessment != models.AssessmentHighRisk {
		t.Errorf("OverallAssessment = %s, want HIGH_RISK", result.OverallAssessment)
	}
	if result.CanUpload {
		t.Error("CanUpload = true, want false for a quarantined score")
	}
	if !result.AnalysisMetadata.ServiceReachable {
		t.Error("ServiceReachable = false, want true")
	}
	if result.AnalysisMetadata.FailureReason != "" {
		t.Errorf("FailureReason = %q, want empty", result.AnalysisMetadata.FailureReason)
	}
	if result.AnalysisMetadata.HighSeverityCount != 1 {
		t.Errorf("HighSeverityCount = %d, want 1", result.AnalysisMetadata.HighSeverityCount)
	}
	if result.AnalysisMetadata.TotalDifferences != 1 {
		t.Errorf("TotalDifferences = %d, want 1", result.AnalysisMetadata.TotalDifferences)
	}
}

func TestAnalyzePairCleanPair(t *testing.T) {
	client := &fakeClient{replies: []reply{{text: `{"differences": []}`}}}
	a := New(client, 3, time.Millisecond)

	result := a.AnalyzePair(context.Background(), testPair())

	if result.AggregateTIS != 100 {
		t.Errorf("AggregateTIS = %d, want 100", result.AggregateTIS)
	}
	if result.OverallAssessment != models.AssessmentSafe {
		t.Errorf("OverallAssessment = %s, want SAFE", result.OverallAssessment)
	}
	if !result.CanUpload {
		t.Error("CanUpload = false, want true")
	}
	if result.Differences == nil {
		t.Error("Differences is nil, want empty slice")
	}
	if !result.AnalysisMetadata.ServiceReachable {
		t.Error("ServiceReachable = false, want true")
	}
}

func TestAnalyzePairRetriesRateLimits(t *testing.T) {
	client := &fakeClient{replies: []reply{
		{err: &llm.RateLimitError{Message: "quota exceeded"}},
		{err: &llm.RateLimitError{Message: "quota exceeded"}},
		{text: `{"differences": []}`},
	}}
	a := New(client, 3, time.Millisecond)

	result := a.AnalyzePair(context.Background(), testPair())

	if client.calls != 3 {
		t.Errorf("provider called %d times, want 3", client.calls)
	}
	if !result.AnalysisMetadata.ServiceReachable {
		t.Error("ServiceReachable = false, want true after eventual success")
	}
}

func TestAnalyzePairFailsOpenOnExhaustion(t *testing.T) {
	client := &fakeClient{replies: []reply{
		{err: &llm.RateLimitError{Message: "quota exceeded"}},
	}}
	a := New(client, 2, time.Millisecond)

	result := a.AnalyzePair(context.Background(), testPair())

	if client.calls != 3 {
		t.Errorf("provider called %d times, want 3", client.calls)
	}
	if result.AggregateTIS != 100 {
		t.Errorf("AggregateTIS = %d, want 100 on fail-open", result.AggregateTIS)
	}
	if result.OverallAssessment != models.AssessmentSafe {
		t.Errorf("OverallAssessment = %s, want SAFE on fail-open", result.OverallAssessment)
	}
	if !result.CanUpload {
		t.Error("CanUpload = false, want true on fail-open")
	}
	if result.AnalysisMetadata.ServiceReachable {
		t.Error("ServiceReachable = true, want false")
	}
	if !strings.Contains(result.AnalysisMetadata.FailureReason, "retries exhausted after 3 attempts") {
		t.Errorf("FailureReason = %q, want exhaustion message", result.AnalysisMetadata.FailureReason)
	}
}

func TestAnalyzePairDoesNotRetryOtherErrors(t *testing.T) {
	client := &fakeClient{replies: []reply{{err: errors.New("connection refused")}}}
	a := New(client, 3, time.Millisecond)

	result := a.AnalyzePair(context.Background(), testPair())

	if client.calls != 1 {
		t.Errorf("provider called %d times, want 1 for a non-rate-limit error", client.calls)
	}
	if result.AnalysisMetadata.ServiceReachable {
		t.Error("ServiceReachable = true, want false")
	}
	if !strings.Contains(result.AnalysisMetadata.FailureReason, "ai call failed") {
		t.Errorf("FailureReason = %q, want ai call failure message", result.AnalysisMetadata.FailureReason)
	}
}

func TestAnalyzePairRepairsInvalidReply(t *testing.T) {
	client := &fakeClient{replies: []reply{
		{text: `{"differences": [{"type": "dent", "severity": "high"}]}`},
		{text: `{"differences": [{"type": "dent", "severity": "MEDIUM", "confidence": 0.7, "tis_delta": -15}]}`},
	}}
	a := New(client, 3, time.Millisecond)

	result := a.AnalyzePair(context.Background(), testPair())

	if client.calls != 2 {
		t.Fatalf("provider called %d times, want 2 (analysis + repair)", client.calls)
	}

	repairParts := client.prompts[1]
	if len(repairParts) != 2 {
		t.Fatalf("repair prompt has %d parts, want 2", len(repairParts))
	}
	if !strings.HasPrefix(repairParts[0].Text, "Repair this JSON") {
		t.Errorf("repair prompt starts with %q", repairParts[0].Text)
	}
	if !strings.Contains(repairParts[1].Text, "high") {
		t.Errorf("repair prompt payload %q does not carry the bad reply", repairParts[1].Text)
	}

	if len(result.Differences) != 1 || result.Differences[0].Severity != "MEDIUM" {
		t.Errorf("repaired findings = %+v, want the single MEDIUM dent", result.Differences)
	}
	if !result.AnalysisMetadata.ServiceReachable {
		t.Error("ServiceReachable = false, want true on the repair path")
	}
}

func TestAnalyzePairRepairFailureDegradesToEmpty(t *testing.T) {
	client := &fakeClient{replies: []reply{
		{text: `{"differences": [{"type": "dent", "severity": "high"}]}`},
		{text: `{"differences": [{"type": "dent", "severity": "still wrong"}]}`},
	}}
	a := New(client, 3, time.Millisecond)

	result := a.AnalyzePair(context.Background(), testPair())

	if client.calls != 2 {
		t.Errorf("provider called %d times, want 2 (repair is attempted once)", client.calls)
	}
	if len(result.Differences) != 0 {
		t.Errorf("got %d differences, want 0 after a failed repair", len(result.Differences))
	}
	if result.AggregateTIS != 100 {
		t.Errorf("AggregateTIS = %d, want 100", result.AggregateTIS)
	}
	// The provider did answer; only its JSON was unusable.
	if !result.AnalysisMetadata.ServiceReachable {
		t.Error("ServiceReachable = false, want true when the reply was merely malformed")
	}
}

func TestAnalyzePairCancelableRetryWait(t *testing.T) {
	client := &fakeClient{replies: []reply{
		{err: &llm.RateLimitError{Message: "quota exceeded"}},
	}}
	a := New(client, 3, 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := a.AnalyzePair(ctx, testPair())
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("AnalyzePair blocked for %v during retry wait, want prompt cancellation", elapsed)
	}
	if result.AnalysisMetadata.ServiceReachable {
		t.Error("ServiceReachable = true, want false")
	}
	if !strings.Contains(result.AnalysisMetadata.FailureReason, "canceled") {
		t.Errorf("FailureReason = %q, want cancellation message", result.AnalysisMetadata.FailureReason)
	}
}

func TestBuildPrompt(t *testing.T) {
	pair := testPair()
	parts := buildPrompt(pair)

	if len(parts) != 5 {
		t.Fatalf("buildPrompt() returned %d parts, want 5", len(parts))
	}

	system := parts[0]
	if system.IsImage() {
		t.Fatal("part 0 should be the system text")
	}
	if !strings.Contains(system.Text, "DETECTION TARGETS") {
		t.Error("system prompt is missing the detection target list")
	}
	if !strings.Contains(system.Text, "VIEW CONTEXT: angle_1") {
		t.Error("system prompt is missing the view context")
	}
	if !strings.Contains(system.Text, `Return STRICT JSON as {"differences":[...]}`) {
		t.Error("system prompt is missing the few-shot example")
	}

	if !strings.Contains(parts[1].Text, "CRITICAL: Focus on security threats") {
		t.Error("part 1 is missing the security reminder")
	}
	if !strings.HasSuffix(parts[1].Text, "Baseline Image (Reference):") {
		t.Errorf("part 1 ends with %q, want the baseline caption", parts[1].Text)
	}

	if !parts[2].IsImage() || string(parts[2].Data) != "baseline-bytes" {
		t.Error("part 2 should carry the baseline image bytes")
	}
	if parts[2].MIMEType != "image/png" {
		t.Errorf("baseline mime = %q, want image/png", parts[2].MIMEType)
	}

	if parts[3].Text != "\nCurrent Image (Under Analysis):" {
		t.Errorf("part 3 = %q, want the current caption", parts[3].Text)
	}
	if !parts[4].IsImage() || string(parts[4].Data) != "current-bytes" {
		t.Error("part 4 should carry the current image bytes")
	}
}

func TestBuildPromptDefaults(t *testing.T) {
	pair := &models.ImagePair{
		BaselineBytes: []byte("b"),
		CurrentBytes:  []byte("c"),
	}
	parts := buildPrompt(pair)

	if strings.Contains(parts[0].Text, "VIEW CONTEXT") {
		t.Error("system prompt should omit view context when no label is set")
	}
	if parts[2].MIMEType != "image/jpeg" || parts[4].MIMEType != "image/jpeg" {
		t.Errorf("mimes = %q/%q, want image/jpeg defaults", parts[2].MIMEType, parts[4].MIMEType)
	}
}
