package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"planner/internal/infra"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "veo-3.1-generate-preview"

	apiKeyHeader = "x-goog-api-key"
)

// ErrNoVideoData is returned by Download for a video without bytes or URI.
var ErrNoVideoData = errors.New("veo: no video data available to download")

// Options controls how the Veo client is configured.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	DownloadClient *http.Client
	Logger         *infra.Logger
}

// Client talks to the Gemini API long-running video endpoints.
type Client struct {
	apiKey         string
	baseURL        string
	model          string
	httpClient     *http.Client
	downloadClient *http.Client
	logger         *infra.Logger
}

// Image seeds a generation with a first frame.
type Image struct {
	MIMEType string
	Data     []byte
}

// SubmitRequest describes a generation job.
type SubmitRequest struct {
	Prompt string
	Image  *Image
	Config *VideoConfig
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string        `json:"prompt"`
	Image  *predictImage `json:"image,omitempty"`
}

type predictImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type predictParameters struct {
	AspectRatio      string `json:"aspectRatio,omitempty"`
	DurationSeconds  *int   `json:"durationSeconds,omitempty"`
	SampleCount      *int   `json:"sampleCount,omitempty"`
	Resolution       string `json:"resolution,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
	NegativePrompt   string `json:"negativePrompt,omitempty"`
	EnhancePrompt    *bool  `json:"enhancePrompt,omitempty"`
	GenerateAudio    *bool  `json:"generateAudio,omitempty"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Veo client. Nil HTTP clients are replaced with ones
// using conservative timeouts; downloads get a longer budget than API calls.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("veo: api key is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	download := opts.DownloadClient
	if download == nil {
		download = &http.Client{Timeout: 5 * time.Minute}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	logger := opts.Logger
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}

	return &Client{
		apiKey:         apiKey,
		baseURL:        baseURL,
		model:          model,
		httpClient:     client,
		downloadClient: download,
		logger:         logger,
	}, nil
}

// Model returns the configured Veo model identifier.
func (c *Client) Model() string {
	return c.model
}

// Submit starts a generation job and returns its operation name.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("veo: a non-empty prompt is required to generate a video")
	}

	cfg := DefaultVideoConfig().Merge(req.Config)
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("veo: %w", err)
	}

	instance := predictInstance{Prompt: prompt}
	if req.Image != nil && len(req.Image.Data) > 0 {
		mime := req.Image.MIMEType
		if mime == "" {
			mime = http.DetectContentType(req.Image.Data)
		}
		instance.Image = &predictImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.Image.Data),
			MimeType:           mime,
		}
	}

	payload := predictRequest{
		Instances: []predictInstance{instance},
		Parameters: predictParameters{
			AspectRatio:      cfg.AspectRatio,
			DurationSeconds:  cfg.DurationSeconds,
			SampleCount:      cfg.NumberOfVideos,
			Resolution:       cfg.Resolution,
			PersonGeneration: cfg.PersonGeneration,
			NegativePrompt:   cfg.NegativePrompt,
			EnhancePrompt:    cfg.EnhancePrompt,
			GenerateAudio:    cfg.GenerateAudio,
		},
	}

	var op Operation
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(c.model))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &op); err != nil {
		return "", err
	}
	if strings.TrimSpace(op.Name) == "" {
		return "", errors.New("veo: did not return an operation identifier")
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("operation_id", op.Name).
		Bool("seeded", instance.Image != nil).
		Msg("veo: submitted generation")

	return op.Name, nil
}

// Operation fetches the current state of a long-running operation.
func (c *Client) Operation(ctx context.Context, name string) (*Operation, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return nil, errors.New("veo: a valid operation id is required")
	}
	var op Operation
	if err := c.invoke(ctx, http.MethodGet, "/"+name, nil, &op); err != nil {
		return nil, err
	}
	if op.Name == "" {
		op.Name = name
	}
	return &op, nil
}

// Poll fetches and resolves an operation in one call.
func (c *Client) Poll(ctx context.Context, name string) (Result, error) {
	op, err := c.Operation(ctx, name)
	if err != nil {
		return Result{}, err
	}
	return Resolve(op), nil
}

// Download returns the bytes of a generated video. Inline bytes are returned
// as is; URIs are fetched with the API key sent as a header.
func (c *Client) Download(ctx context.Context, video Video) ([]byte, string, error) {
	mime := video.MIMEType
	if mime == "" {
		mime = defaultVideoMIME
	}
	if len(video.Data) > 0 {
		return video.Data, mime, nil
	}
	if video.URI == "" {
		return nil, "", ErrNoVideoData
	}

	target, err := url.Parse(video.URI)
	if err != nil {
		return nil, "", fmt.Errorf("veo: parse video uri: %w", err)
	}
	if !target.IsAbs() {
		target, err = url.Parse(c.baseURL + "/" + strings.TrimLeft(video.URI, "/"))
		if err != nil {
			return nil, "", fmt.Errorf("veo: parse video uri: %w", err)
		}
	}
	q := target.Query()
	q.Del("key")
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("veo: create download request: %w", c.redact(err))
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("veo: download video: %w", c.redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", fmt.Errorf("veo: download video status %d", resp.StatusCode)
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("veo: read video: %w", err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/octet-stream") {
		mime = ct
	}
	return blob, mime, nil
}

func (c *Client) invoke(ctx context.Context, method, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("veo: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("veo: create request: %w", c.redact(err))
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("veo: invoke %s: %w", path, c.redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var apiErr apiErrorResponse
		msg := strings.TrimSpace(string(data))
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Message: c.redactText(msg)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("veo: decode response: %w", err)
	}
	return nil
}

// redact drops the request URL from transport errors and masks the key in
// whatever text remains. Error messages end up in step records and HTTP
// responses.
func (c *Client) redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if c.apiKey != "" && strings.Contains(err.Error(), c.apiKey) {
		return errors.New(c.redactText(err.Error()))
	}
	return err
}

func (c *Client) redactText(s string) string {
	if c.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.apiKey, "[redacted]")
}

// APIError is a non-2xx answer from the Gemini API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("veo status %d", e.StatusCode)
	}
	return fmt.Sprintf("veo status %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
