package images

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Loader resolves the three source encodings accepted by the analyze
// endpoint: data: URIs, raw base64 blobs and fetchable URLs.
type Loader struct {
	http *http.Client
}

func NewLoader(fetchTimeout time.Duration) *Loader {
	return &Loader{
		http: &http.Client{Timeout: fetchTimeout},
	}
}

// Load returns the decoded image bytes and their mime type.
//
// Source detection is ordered: an explicit data: URI wins, then anything
// long enough to be an image and not URL-shaped is treated as raw base64,
// and the rest is fetched over HTTP.
func (l *Loader) Load(ctx context.Context, source string) ([]byte, string, error) {
	if source == "" {
		return nil, "", fmt.Errorf("empty image source")
	}

	if strings.HasPrefix(source, "data:") {
		return decodeDataURI(source)
	}

	if len(source) > 256 && !strings.HasPrefix(source, "http") {
		data, err := base64.StdEncoding.DecodeString(source)
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode base64 image: %w", err)
		}
		return data, "image/jpeg", nil
	}

	return l.fetch(ctx, source)
}

func decodeDataURI(source string) ([]byte, string, error) {
	header, encoded, found := strings.Cut(source, ",")
	if !found {
		return nil, "", fmt.Errorf("malformed data URI")
	}

	mimeType := strings.TrimPrefix(strings.SplitN(header, ";", 2)[0], "data:")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URI: %w", err)
	}
	return data, mimeType, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body: %w", err)
	}

	mimeType := strings.SplitN(resp.Header.Get("Content-Type"), ";", 2)[0]
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return data, mimeType, nil
}
