package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pesio-ai/be-hse-inspections/internal/workflow"
)

// SubmissionError describes a rejected verification submission. Fields holds
// per-field messages when the rejection was a validation failure. Cause is
// set when the error body could not be decoded.
type SubmissionError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     map[string]string
	Cause      error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	msg := fmt.Sprintf("verification rejected (%d %s): %s", e.StatusCode, e.Code, e.Message)
	if e.Cause != nil {
		msg += " (" + e.Cause.Error() + ")"
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Cause }

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// VerificationClient submits stage decisions to the workflow HTTP API.
type VerificationClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewVerificationClient creates a client for the service at baseURL that
// authenticates with a bearer token.
func NewVerificationClient(baseURL, token string) *VerificationClient {
	return &VerificationClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// VerifyResult is the service's reply to an accepted decision.
type VerifyResult struct {
	TargetID     string                   `json:"targetId"`
	CurrentStage string                   `json:"currentStage"`
	Completed    bool                     `json:"completed"`
	Entries      []workflow.TimelineEntry `json:"entries"`
}

// Submit validates the decision locally and, only if it is valid, posts it
// for the target's blocking stage.
func (c *VerificationClient) Submit(ctx context.Context, targetID string, decision workflow.Decision) (*VerifyResult, error) {
	decision = decision.Normalized()
	if err := decision.Validate(); err != nil {
		var verr *workflow.ValidationError
		if stderrors.As(err, &verr) {
			return nil, &SubmissionError{Code: "INVALID_INPUT", Message: verr.Error(), Fields: verr.Fields}
		}
		return nil, err
	}

	body, err := json.Marshal(decision)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal decision: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/v1/targets/%s/verify", c.baseURL, url.PathEscape(targetID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, decodeSubmissionError(resp)
	}

	var result VerifyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}
	return &result, nil
}

func decodeSubmissionError(resp *http.Response) *SubmissionError {
	subErr := &SubmissionError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		subErr.Cause = fmt.Errorf("failed to read error body: %w", err)
	} else if len(bytes.TrimSpace(raw)) > 0 {
		var apiErr struct {
			Error  string            `json:"error"`
			Code   string            `json:"code"`
			Fields map[string]string `json:"fields"`
		}
		if err := json.Unmarshal(raw, &apiErr); err != nil {
			subErr.Cause = fmt.Errorf("malformed error body: %w", err)
		} else {
			subErr.Code = apiErr.Code
			subErr.Message = apiErr.Error
			subErr.Fields = apiErr.Fields
		}
	}

	if subErr.Message == "" {
		subErr.Message = http.StatusText(resp.StatusCode)
	}
	return subErr
}
