// Package recognition wraps the external face-recognition service. The
// service only returns high-confidence matches; anyone it cannot match stays
// absent on the caller's side.
package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/absenin/absenin-api/pkg/errors"
)

// StudentPhoto pairs a roster member with their reference photo.
type StudentPhoto struct {
	StudentID string `json:"student_id"`
	Photo     string `json:"photo"`
}

// Request is the scan payload sent to the recognition service.
type Request struct {
	ScenePhoto    string         `json:"scene_photo"`
	StudentPhotos []StudentPhoto `json:"student_photos"`
	CaptureDate   string         `json:"capture_date,omitempty"`
}

// Result carries the IDs the service matched with high confidence.
type Result struct {
	RecognizedStudentIDs []string `json:"recognized_student_ids"`
}

// Client calls the recognition service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

// NewClient constructs a recognition client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		now:     time.Now,
	}
}

// Recognize submits a scene photo and returns the recognized roster IDs.
// A capture date that does not parse or is not the current calendar day
// rejects the scan instead of proceeding.
func (c *Client) Recognize(ctx context.Context, req Request) (*Result, error) {
	if req.CaptureDate != "" {
		captured, err := time.Parse("2006-01-02", req.CaptureDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "capture date is not a valid YYYY-MM-DD date")
		}
		today := c.now().UTC().Format("2006-01-02")
		if captured.Format("2006-01-02") != today {
			return nil, appErrors.Clone(appErrors.ErrValidation, "photo was not captured today")
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode scan request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/recognize", bytes.NewReader(payload))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build scan request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrScanFailed.Code, appErrors.ErrScanFailed.Status, "recognition service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("recognition service returned error", zap.Int("status", resp.StatusCode))
		return nil, appErrors.Clone(appErrors.ErrScanFailed, fmt.Sprintf("recognition service returned status %d", resp.StatusCode))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrScanFailed.Code, appErrors.ErrScanFailed.Status, "invalid recognition response")
	}
	return &result, nil
}
