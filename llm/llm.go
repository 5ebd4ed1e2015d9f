package llm

import "context"

// Part is one element of a generation prompt: instruction text or an inline
// image attachment, never both.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

// TextPart builds an instruction text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart builds an inline image part.
func ImagePart(mimeType string, data []byte) Part {
	return Part{MIMEType: mimeType, Data: data}
}

// IsImage reports whether the part carries image bytes.
func (p Part) IsImage() bool {
	return len(p.Data) > 0
}

// Client abstracts a multimodal AI provider used by the analyzer.
// Implementations must be concurrency-safe if used across goroutines.
type Client interface {
	// Generate sends ordered prompt parts (instruction text and inline
	// images) and returns the model's raw text reply.
	Generate(ctx context.Context, parts []Part) (string, error)
	// SourceName returns a short provider label for logs and metrics (e.g., "Gemini").
	SourceName() string
}

// RateLimitError signals that the provider rejected the call because of
// quota or rate limits. Message may carry a human-readable wait hint such
// as "retry in 3.5s".
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return e.Message
}
