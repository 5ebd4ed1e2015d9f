package service

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"

	"integrity-analyze-service/analyzer"
	"integrity-analyze-service/config"
	"integrity-analyze-service/gemini"
	"integrity-analyze-service/images"
	"integrity-analyze-service/llm"
	"integrity-analyze-service/metrics"
	"integrity-analyze-service/models"
	"integrity-analyze-service/openai"
	"integrity-analyze-service/rabbitmq"
	"integrity-analyze-service/stubllm"
	"integrity-analyze-service/vision"
)

// InputError marks failures caused by the caller's images rather than by the
// pipeline, so the handler can answer 400 instead of 500.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// Service owns the full analyze pipeline: image loading, optional CV
// alignment, AI comparison, scoring and event publishing.
type Service struct {
	config    *config.Config
	loader    *images.Loader
	vision    *vision.Client
	analyzer  *analyzer.Analyzer
	publisher *rabbitmq.Publisher
}

// NewService creates a new integrity analysis service
func NewService(cfg *config.Config) *Service {
	var client llm.Client
	switch cfg.LLMProvider {
	case "stub":
		client = stubllm.NewClient()
	case "openai":
		client = openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		client = gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	}

	selectedModel := cfg.GeminiModel
	if cfg.LLMProvider == "openai" {
		selectedModel = cfg.OpenAIModel
	}
	log.Infof("Analyzer LLM provider=%s model=%s", client.SourceName(), selectedModel)

	var visionClient *vision.Client
	if cfg.VisionServiceURL != "" {
		visionClient = vision.NewClient(cfg.VisionServiceURL)
		log.Infof("CV preprocessing enabled: %s", cfg.VisionServiceURL)
	}

	var publisher *rabbitmq.Publisher
	if cfg.RabbitMQURL != "" {
		var err error
		publisher, err = rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, cfg.RabbitMQRoutingKey)
		if err != nil {
			log.Errorf("Failed to initialize RabbitMQ publisher: %v", err)
			// Continue without publisher - analysis will still work
			publisher = nil
		}
	}

	return &Service{
		config:    cfg,
		loader:    images.NewLoader(cfg.ImageFetchTimeout),
		vision:    visionClient,
		analyzer:  analyzer.New(client, cfg.MaxRetries, cfg.BaseRetryDelay),
		publisher: publisher,
	}
}

// Ready reports whether the configured provider has the credentials it
// needs. The stub provider needs none.
func (s *Service) Ready() bool {
	switch s.config.LLMProvider {
	case "stub":
		return true
	case "openai":
		return s.config.OpenAIAPIKey != ""
	default:
		return s.config.GeminiAPIKey != ""
	}
}

// Analyze runs one baseline/current comparison end to end.
func (s *Service) Analyze(ctx context.Context, baselineSrc, currentSrc, viewLabel string) (*models.AnalysisResult, error) {
	start := time.Now()

	baselineBytes, baselineMime, err := s.loader.Load(ctx, baselineSrc)
	if err != nil {
		metrics.AnalyzeRequestsTotal.WithLabelValues("input_error").Inc()
		log.Warnf("baseline load failed for %s: %v", viewLabel, err)
		return nil, &InputError{Message: fmt.Sprintf("Failed to load baseline image for %s", viewLabel)}
	}

	currentBytes, currentMime, err := s.loader.Load(ctx, currentSrc)
	if err != nil {
		metrics.AnalyzeRequestsTotal.WithLabelValues("input_error").Inc()
		log.Warnf("current load failed for %s: %v", viewLabel, err)
		return nil, &InputError{Message: fmt.Sprintf("Failed to load current image for %s", viewLabel)}
	}

	pair := &models.ImagePair{
		BaselineBytes: baselineBytes,
		BaselineMime:  baselineMime,
		CurrentBytes:  currentBytes,
		CurrentMime:   currentMime,
		ViewLabel:     viewLabel,
	}

	cvUsed := false
	if s.vision != nil {
		alignedBaseline, alignedCurrent, err := s.vision.AlignAndNormalize(ctx, baselineBytes, currentBytes)
		if err != nil {
			// Alignment is best-effort; fall back to the raw pair.
			log.Warnf("CV preprocessing failed, comparing raw pair: %v", err)
		} else {
			pair.BaselineBytes = alignedBaseline
			pair.CurrentBytes = alignedCurrent
			pair.BaselineMime = "image/jpeg"
			pair.CurrentMime = "image/jpeg"
			cvUsed = true
		}
	}

	result := s.analyzer.AnalyzePair(ctx, pair)
	result.AnalysisMetadata.CVUsed = cvUsed
	result.AnalysisMetadata.CVAvailable = s.vision != nil
	result.AnalysisMetadata.GeminiReady = s.Ready()

	s.publishAnalysis(result)

	duration := time.Since(start)
	metrics.AnalyzeRequestsTotal.WithLabelValues("ok").Inc()
	metrics.AnalyzeDurationSeconds.WithLabelValues("ok").Observe(duration.Seconds())

	log.WithFields(log.Fields{
		"view":        result.View,
		"tis":         result.AggregateTIS,
		"assessment":  result.OverallAssessment,
		"differences": len(result.Differences),
		"duration_ms": duration.Milliseconds(),
	}).Info("analyze.complete")

	return result, nil
}

// publishAnalysis emits the completed analysis for downstream consumers.
// Publishing is best-effort: a broker outage never fails the request.
func (s *Service) publishAnalysis(result *models.AnalysisResult) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(result); err != nil {
		metrics.PublishesTotal.WithLabelValues("error").Inc()
		log.Errorf("Failed to publish analysis: %v", err)
		return
	}
	metrics.PublishesTotal.WithLabelValues("ok").Inc()
}

// Close releases broker resources.
func (s *Service) Close() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Errorf("Failed to close RabbitMQ publisher: %v", err)
		}
	}
}
