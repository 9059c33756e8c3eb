// Package narrative fetches an optional prose assessment of an evaluation
// from an external text-generation service. Scores never depend on it.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/Flexing/internal/scoring"
)

type Request struct {
	CandidateName string                    `json:"candidate_name"`
	Position      string                    `json:"position,omitempty"`
	Year          int                       `json:"year"`
	FinalScore    float64                   `json:"final_score"`
	CapApplied    scoring.CapReason         `json:"cap_applied"`
	Components    []scoring.ComponentResult `json:"components"`
	Scores        scoring.FormScores        `json:"scores"`
	Notes         string                    `json:"notes,omitempty"`
}

type Narrative struct {
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
}

type Client interface {
	Analyze(ctx context.Context, req Request) (*Narrative, error)
}

type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) Analyze(ctx context.Context, in Request) (*Narrative, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/narratives", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", "flexing")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("narrative: %d %s", resp.StatusCode, string(body))
	}

	var out Narrative
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("narrative: decode response: %w", err)
	}
	return &out, nil
}
