package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/noah-isme/club-collab-api/internal/models"
)

// HTTPGrader posts solutions to the external runner over HTTP. The
// runner reports its verdict asynchronously through the grading
// callback endpoint.
type HTTPGrader struct {
	baseURL     string
	callbackKey string
	client      *http.Client
}

// NewHTTPGrader constructs a client for the runner at baseURL.
func NewHTTPGrader(baseURL, callbackKey string, timeout time.Duration) *HTTPGrader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGrader{
		baseURL:     baseURL,
		callbackKey: callbackKey,
		client:      &http.Client{Timeout: timeout},
	}
}

type gradeRequest struct {
	SubmissionID int64  `json:"submission_id"`
	TaskID       int64  `json:"task_id"`
	Code         string `json:"code"`
	Language     string `json:"language"`
	CallbackKey  string `json:"callback_key,omitempty"`
}

// Grade hands the submission to the runner.
func (g *HTTPGrader) Grade(ctx context.Context, sub *models.Submission) error {
	body, err := json.Marshal(gradeRequest{
		SubmissionID: sub.ID,
		TaskID:       sub.TaskID,
		Code:         sub.Code,
		Language:     sub.Language,
		CallbackKey:  g.callbackKey,
	})
	if err != nil {
		return fmt.Errorf("marshal grade request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build grade request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send grade request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("runner rejected submission %d: status %d", sub.ID, resp.StatusCode)
	}
	return nil
}
