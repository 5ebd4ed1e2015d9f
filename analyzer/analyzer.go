package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"

	"integrity-analyze-service/llm"
	"integrity-analyze-service/metrics"
	"integrity-analyze-service/models"
	"integrity-analyze-service/parser"
	"integrity-analyze-service/scoring"
)

const repairPrompt = "Repair this JSON to match the schema {differences:[...] with required fields}:"

// Rate-limit responses sometimes carry an explicit wait hint.
var waitHintRe = regexp.MustCompile(`retry in (\d+(\.\d+)?)s`)

// Analyzer runs one baseline/current comparison through an LLM provider and
// turns the reply into a scored analysis result. Stateless across calls, so
// a single instance serves concurrent requests.
type Analyzer struct {
	client     llm.Client
	maxRetries int
	baseDelay  time.Duration
}

func New(client llm.Client, maxRetries int, baseDelay time.Duration) *Analyzer {
	return &Analyzer{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// AnalyzePair always returns a result. Provider failures degrade to an empty
// finding list scored as pristine, with service_reachable and failure_reason
// in the metadata so callers can tell "verified clean" from "never checked".
func (a *Analyzer) AnalyzePair(ctx context.Context, pair *models.ImagePair) *models.AnalysisResult {
	findings, failureReason := a.collectFindings(ctx, pair)
	overall := scoring.ComputeOverall(findings)
	metrics.FindingsPerAnalysis.Observe(float64(len(findings)))
	return assemble(pair.ViewLabel, findings, overall, failureReason)
}

// collectFindings drives the call/extract/validate/normalize chain. The
// returned reason is empty when the provider actually answered; any other
// value means the findings are absent rather than clean.
func (a *Analyzer) collectFindings(ctx context.Context, pair *models.ImagePair) ([]models.Finding, string) {
	parts := buildPrompt(pair)

	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		log.WithFields(log.Fields{
			"provider": a.client.SourceName(),
			"view":     pair.ViewLabel,
			"attempt":  attempt + 1,
		}).Debug("analyze.ai_call")

		raw, err := a.client.Generate(ctx, parts)
		if err == nil {
			metrics.AICallsTotal.WithLabelValues("ok").Inc()
			payload := parser.ExtractJSON(raw)
			payload = a.validateOrRepair(ctx, payload)
			return parser.NormalizeFindings(payload, pair.ViewLabel), ""
		}

		var rateLimited *llm.RateLimitError
		if !errors.As(err, &rateLimited) {
			metrics.AICallsTotal.WithLabelValues("error").Inc()
			log.WithFields(log.Fields{
				"provider": a.client.SourceName(),
				"view":     pair.ViewLabel,
			}).Errorf("ai call failed: %v", err)
			return nil, fmt.Sprintf("ai call failed: %v", err)
		}

		metrics.AICallsTotal.WithLabelValues("rate_limited").Inc()
		if attempt == a.maxRetries {
			log.Errorf("rate limit retries exhausted after %d attempts", a.maxRetries+1)
			return nil, fmt.Sprintf("rate limit retries exhausted after %d attempts", a.maxRetries+1)
		}

		delay := retryDelay(a.baseDelay, attempt, rateLimited.Message)
		log.WithFields(log.Fields{
			"attempt": attempt + 1,
			"delay":   delay.String(),
		}).Warn("analyze.rate_limited")
		metrics.AIRetriesTotal.Inc()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Sprintf("canceled while waiting to retry: %v", ctx.Err())
		}
	}

	return nil, fmt.Sprintf("rate limit retries exhausted after %d attempts", a.maxRetries+1)
}

// retryDelay picks the wait before the next attempt: an explicit server hint
// wins, padded by a second; otherwise the base delay doubles per attempt.
func retryDelay(baseDelay time.Duration, attempt int, message string) time.Duration {
	if m := waitHintRe.FindStringSubmatch(message); m != nil {
		if hint, err := strconv.ParseFloat(m[1], 64); err == nil {
			return time.Duration((hint + 1.0) * float64(time.Second))
		}
	}
	return baseDelay * time.Duration(1<<attempt)
}

// validateOrRepair gives the provider exactly one chance to fix a reply that
// failed schema validation. A failed repair degrades to the empty payload;
// it never loops back into another repair.
func (a *Analyzer) validateOrRepair(ctx context.Context, payload parser.Payload) parser.Payload {
	err := parser.ValidateFindings(payload)
	if err == nil {
		return payload
	}
	log.Warnf("schema validation failed: %v - attempting repair", err)

	marshaled, merr := json.Marshal(payload)
	if merr != nil {
		metrics.RepairsTotal.WithLabelValues("failed").Inc()
		return parser.EmptyPayload()
	}

	raw, gerr := a.client.Generate(ctx, []llm.Part{
		llm.TextPart(repairPrompt),
		llm.TextPart(string(marshaled)),
	})
	if gerr != nil {
		metrics.RepairsTotal.WithLabelValues("failed").Inc()
		log.Errorf("repair also failed: %v", gerr)
		return parser.EmptyPayload()
	}

	repaired := parser.ExtractJSON(raw)
	if verr := parser.ValidateFindings(repaired); verr != nil {
		metrics.RepairsTotal.WithLabelValues("failed").Inc()
		log.Errorf("repair also failed: %v", verr)
		return parser.EmptyPayload()
	}

	metrics.RepairsTotal.WithLabelValues("repaired").Inc()
	return repaired
}

func assemble(view string, findings []models.Finding, overall scoring.Overall, failureReason string) *models.AnalysisResult {
	// Serialize as [] rather than null when nothing was found.
	if findings == nil {
		findings = []models.Finding{}
	}

	highCount, mediumCount, lowCount := 0, 0, 0
	for _, f := range findings {
		switch strings.ToUpper(f.Severity) {
		case models.SeverityHigh:
			highCount++
		case models.SeverityMedium:
			mediumCount++
		case models.SeverityLow:
			lowCount++
		}
	}

	return &models.AnalysisResult{
		View:              view,
		Differences:       findings,
		AggregateTIS:      overall.TIS,
		OverallAssessment: overall.Assessment,
		ConfidenceOverall: overall.Confidence,
		Notes:             overall.Notes,
		CanUpload:         overall.TIS >= scoring.CanUploadThreshold,
		AnalysisMetadata: models.AnalysisMetadata{
			TotalDifferences:    len(findings),
			HighSeverityCount:   highCount,
			MediumSeverityCount: mediumCount,
			LowSeverityCount:    lowCount,
			AnalysisTimestamp:   time.Now().UTC().Format(time.RFC3339),
			ScoringVersion:      scoring.ScoringVersion,
			GeminiDiffCount:     len(findings),
			ServiceReachable:    failureReason == "",
			FailureReason:       failureReason,
		},
	}
}
