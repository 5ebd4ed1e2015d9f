package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
)

// Client handles communication with the CV preprocessing service that
// aligns and photometrically normalizes a photo pair before AI comparison.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// AlignRequest carries both photos of the pair; alignment is pairwise, the
// service needs the baseline to warp the current shot onto it.
type AlignRequest struct {
	Baseline string `json:"baseline"`
	Current  string `json:"current"`
}

// AlignResponse is the CV service's reply with the aligned pair.
type AlignResponse struct {
	Status          string `json:"status"`
	AlignedBaseline string `json:"aligned_baseline"`
	AlignedCurrent  string `json:"aligned_current"`
}

// NewClient creates a new CV preprocessing client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // image warping can be slow on large photos
		},
	}
}

// AlignAndNormalize sends the photo pair for geometric alignment and returns
// the aligned bytes. Callers treat any error as "skip preprocessing" and
// compare the raw pair instead.
func (c *Client) AlignAndNormalize(ctx context.Context, baseline, current []byte) ([]byte, []byte, error) {
	request := AlignRequest{
		Baseline: base64.StdEncoding.EncodeToString(baseline),
		Current:  base64.StdEncoding.EncodeToString(current),
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/align-base64"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Infof("Sending photo pair to CV service: %s, baseline: %d bytes, current: %d bytes",
		url, len(baseline), len(current))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request to CV service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("CV service returned status %d", resp.StatusCode)
	}

	var response AlignResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Status != "completed" {
		return nil, nil, fmt.Errorf("CV service returned status: %s", response.Status)
	}

	alignedBaseline, err := base64.StdEncoding.DecodeString(response.AlignedBaseline)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode aligned baseline: %w", err)
	}
	alignedCurrent, err := base64.StdEncoding.DecodeString(response.AlignedCurrent)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode aligned current: %w", err)
	}

	if len(alignedBaseline) == 0 || len(alignedCurrent) == 0 {
		return nil, nil, fmt.Errorf("CV service returned an empty aligned image")
	}

	log.Infof("Successfully aligned photo pair: baseline %d bytes, current %d bytes",
		len(alignedBaseline), len(alignedCurrent))

	return alignedBaseline, alignedCurrent, nil
}
