package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var errMissingOperation = errors.New("Veo did not return a valid operation id.")

// Client calls the plan animation API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("Request failed with status %d", e.StatusCode)
	}
	return e.Message
}

// StatusResponse is the body of POST /api/veo/status.
type StatusResponse struct {
	OperationID    string  `json:"operationId"`
	Status         string  `json:"status"`
	AnimationURL   *string `json:"animationUrl"`
	AnimationError *string `json:"animationError"`
}

// StartResponse is the body of the generate and regenerate endpoints.
type StartResponse struct {
	OperationID string `json:"operationId"`
	Status      string `json:"status,omitempty"`
}

// GenerateRequest is the body of POST /api/veo/generate.
type GenerateRequest struct {
	Prompt string         `json:"prompt"`
	Image  string         `json:"image,omitempty"`
	Config map[string]any `json:"config,omitempty"`
	StepID int64          `json:"stepId,omitempty"`
}

// PlanAnimation is the animation block of a plan step.
type PlanAnimation struct {
	Status      string  `json:"status"`
	OperationID *string `json:"operationId"`
	URL         *string `json:"url"`
	Error       *string `json:"error"`
}

// PlanStep is one step of GET /api/plans/{id}.
type PlanStep struct {
	ID              int64         `json:"id"`
	StepID          string        `json:"stepId"`
	Position        int           `json:"position"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	IllustrationURL *string       `json:"illustrationUrl"`
	Animation       PlanAnimation `json:"animation"`
}

// PlanResponse is the body of GET /api/plans/{id}.
type PlanResponse struct {
	Plan struct {
		ID        int64     `json:"id"`
		Request   string    `json:"request"`
		Project   string    `json:"project"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"plan"`
	Steps []PlanStep `json:"steps"`
}

// Status sends POST /api/veo/status for one operation.
func (c *Client) Status(ctx context.Context, operationID string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodPost, "/api/veo/status", map[string]string{"operationId": operationID}, &out); err != nil {
		return nil, err
	}
	if out.OperationID == "" {
		out.OperationID = operationID
	}
	return &out, nil
}

// Regenerate sends POST /api/veo/regenerate for a stored step.
func (c *Client) Regenerate(ctx context.Context, stepID int64) (*StartResponse, error) {
	var out StartResponse
	if err := c.do(ctx, http.MethodPost, "/api/veo/regenerate", map[string]int64{"stepId": stepID}, &out); err != nil {
		return nil, err
	}
	if out.OperationID == "" {
		return nil, errMissingOperation
	}
	return &out, nil
}

// Generate sends POST /api/veo/generate.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*StartResponse, error) {
	var out StartResponse
	if err := c.do(ctx, http.MethodPost, "/api/veo/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Plan sends GET /api/plans/{id}.
func (c *Client) Plan(ctx context.Context, planID int64) (*PlanResponse, error) {
	var out PlanResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/plans/%d", planID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
