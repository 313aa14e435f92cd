// Package summary wraps the external text-generation service that produces
// narrative summaries and anomaly analyses from structured attendance data.
// Calls may be slow and may fail; failures surface to the caller unretried.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/absenin/absenin-api/internal/rollup"
	appErrors "github.com/absenin/absenin-api/pkg/errors"
)

// SummarizeRequest asks for a narrative over a class and date range.
type SummarizeRequest struct {
	ClassID   string `json:"class_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// SummarizeResponse carries the generated narrative.
type SummarizeResponse struct {
	Summary string `json:"summary"`
}

// AnalyzeRequest submits structured attendance numbers for anomaly detection.
type AnalyzeRequest struct {
	ClassSection string              `json:"class_section"`
	Distribution rollup.Distribution `json:"distribution"`
	Trend        []rollup.TrendPoint `json:"trend"`
}

// AnalyzeResponse is rendered to callers without further interpretation.
type AnalyzeResponse struct {
	Anomalies []rollup.Anomaly `json:"anomalies"`
	Summary   string           `json:"summary"`
}

// Client calls the summary service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a summary client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// Summarize requests a narrative summary for a class and window.
func (c *Client) Summarize(ctx context.Context, req SummarizeRequest) (*SummarizeResponse, error) {
	var resp SummarizeResponse
	if err := c.post(ctx, "/v1/summarize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AnalyzeAnomalies submits aggregated numbers and returns the structured result.
func (c *Client) AnalyzeAnomalies(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	if err := c.post(ctx, "/v1/anomalies", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, dest interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode summary request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build summary request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "summary service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("summary service returned status %d", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "invalid summary response")
	}
	return nil
}
