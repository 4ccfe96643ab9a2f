package veo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type captureTransport struct {
	responses map[string]responseStub
	requests  []*http.Request
	lastBody  []byte
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

func (s responseStub) toResponse() *http.Response {
	status := s.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Header:     s.header,
		Body:       io.NopCloser(strings.NewReader(string(s.body))),
	}
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.requests = append(c.requests, req)
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
	}
	if stub, ok := c.responses[req.URL.Path]; ok {
		return stub.toResponse(), nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader(`{"error":{"code":404,"message":"not found"}}`)),
	}, nil
}

func (c *captureTransport) setJSONResponse(path string, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[path] = responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func newTestClient(t *testing.T, transport *captureTransport) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:         "test-key",
		BaseURL:        "https://veo.test/v1beta",
		HTTPClient:     &http.Client{Transport: transport},
		DownloadClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestSubmitPayload(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/v1beta/models/veo-3.1-generate-preview:predictLongRunning", map[string]any{
		"name": "models/veo-3.1-generate-preview/operations/op-1",
	})
	client := newTestClient(t, transport)

	portrait := "9:16"
	opID, err := client.Submit(context.Background(), SubmitRequest{
		Prompt: "  Attach the legs  ",
		Image:  &Image{MIMEType: "image/png", Data: []byte{1, 2, 3}},
		Config: &VideoConfig{AspectRatio: portrait},
	})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if opID != "models/veo-3.1-generate-preview/operations/op-1" {
		t.Fatalf("operation id = %q", opID)
	}
	if got := transport.requests[0].Header.Get("x-goog-api-key"); got != "test-key" {
		t.Fatalf("api key header = %q", got)
	}
	if transport.requests[0].URL.Query().Has("key") {
		t.Fatalf("api key must not be sent in the query: %s", transport.requests[0].URL)
	}

	var payload struct {
		Instances []struct {
			Prompt string `json:"prompt"`
			Image  struct {
				BytesBase64Encoded string `json:"bytesBase64Encoded"`
				MimeType           string `json:"mimeType"`
			} `json:"image"`
		} `json:"instances"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Instances) != 1 || payload.Instances[0].Prompt != "Attach the legs" {
		t.Fatalf("unexpected instances %+v", payload.Instances)
	}
	if payload.Instances[0].Image.BytesBase64Encoded != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
		t.Fatalf("image not encoded")
	}
	wantParams := map[string]any{
		"aspectRatio":     "9:16",
		"durationSeconds": float64(6),
		"sampleCount":     float64(1),
		"resolution":      "720p",
	}
	for key, want := range wantParams {
		if payload.Parameters[key] != want {
			t.Fatalf("parameter %s = %v, want %v", key, payload.Parameters[key], want)
		}
	}
	if _, ok := payload.Parameters["generateAudio"]; ok {
		t.Fatalf("unset parameters should be omitted")
	}
}

func TestSubmitValidation(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := newTestClient(t, transport)

	five := 5
	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{name: "empty prompt", req: SubmitRequest{Prompt: "   "}},
		{name: "too many videos", req: SubmitRequest{Prompt: "x", Config: &VideoConfig{NumberOfVideos: &five}}},
		{name: "bad aspect", req: SubmitRequest{Prompt: "x", Config: &VideoConfig{AspectRatio: "4:3"}}},
		{name: "bad person generation", req: SubmitRequest{Prompt: "x", Config: &VideoConfig{PersonGeneration: "allow_all"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := client.Submit(context.Background(), tc.req); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if len(transport.requests) != 0 {
		t.Fatalf("validation failures should not reach the API")
	}
}

func TestSubmitAPIError(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{
		"/v1beta/models/veo-3.1-generate-preview:predictLongRunning": {
			status: http.StatusTooManyRequests,
			body:   []byte(`{"error":{"code":429,"message":"Resource has been exhausted"}}`),
		},
	}}
	client := newTestClient(t, transport)

	_, err := client.Submit(context.Background(), SubmitRequest{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "Resource has been exhausted") {
		t.Fatalf("err = %v", err)
	}
}

func TestPollStates(t *testing.T) {
	videoBytes := base64.StdEncoding.EncodeToString([]byte("mp4"))
	tests := []struct {
		name      string
		payload   map[string]any
		wantState State
		wantError string
		wantURI   string
		wantData  string
	}{
		{
			name:      "pending without metadata",
			payload:   map[string]any{"name": "operations/op"},
			wantState: StatePending,
		},
		{
			name:      "processing with metadata",
			payload:   map[string]any{"name": "operations/op", "metadata": map[string]any{"@type": "x"}},
			wantState: StateProcessing,
		},
		{
			name:      "failed with message",
			payload:   map[string]any{"name": "operations/op", "done": true, "error": map[string]any{"code": 3, "message": " unsafe prompt "}},
			wantState: StateFailed,
			wantError: "unsafe prompt",
		},
		{
			name:      "failed without message",
			payload:   map[string]any{"name": "operations/op", "done": true, "error": map[string]any{"code": 13}},
			wantState: StateFailed,
			wantError: "Veo video generation failed.",
		},
		{
			name:      "done without output",
			payload:   map[string]any{"name": "operations/op", "done": true, "response": map[string]any{}},
			wantState: StateFailed,
			wantError: "Veo completed without returning any video output.",
		},
		{
			name: "generated samples uri",
			payload: map[string]any{"name": "operations/op", "done": true, "response": map[string]any{
				"generateVideoResponse": map[string]any{
					"generatedSamples": []any{map[string]any{"video": map[string]any{"uri": "https://files.test/v1beta/files/abc:download?alt=media"}}},
				},
			}},
			wantState: StateSucceeded,
			wantURI:   "https://files.test/v1beta/files/abc:download?alt=media",
		},
		{
			name: "generated videos inline",
			payload: map[string]any{"name": "operations/op", "done": true, "response": map[string]any{
				"generatedVideos": []any{map[string]any{"video": map[string]any{"videoBytes": videoBytes, "mimeType": "video/webm"}}},
			}},
			wantState: StateSucceeded,
			wantData:  "mp4",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			transport := &captureTransport{responses: map[string]responseStub{}}
			transport.setJSONResponse("/v1beta/operations/op", tc.payload)
			client := newTestClient(t, transport)

			result, err := client.Poll(context.Background(), "operations/op")
			if err != nil {
				t.Fatalf("Poll error: %v", err)
			}
			if result.State != tc.wantState {
				t.Fatalf("state = %q, want %q", result.State, tc.wantState)
			}
			if result.Error != tc.wantError {
				t.Fatalf("error = %q, want %q", result.Error, tc.wantError)
			}
			if tc.wantURI != "" && (len(result.Videos) != 1 || result.Videos[0].URI != tc.wantURI || result.Videos[0].MIMEType != "video/mp4") {
				t.Fatalf("videos = %+v", result.Videos)
			}
			if tc.wantData != "" && (len(result.Videos) != 1 || string(result.Videos[0].Data) != tc.wantData || result.Videos[0].MIMEType != "video/webm") {
				t.Fatalf("videos = %+v", result.Videos)
			}
		})
	}
}

func TestPollNotFound(t *testing.T) {
	client := newTestClient(t, &captureTransport{responses: map[string]responseStub{}})
	_, err := client.Poll(context.Background(), "operations/missing")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestDownload(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{
		"/v1beta/files/abc:download": {
			status: http.StatusOK,
			header: http.Header{"Content-Type": []string{"video/mp4"}},
			body:   []byte("video-bytes"),
		},
	}}
	client := newTestClient(t, transport)

	data, mime, err := client.Download(context.Background(), Video{URI: "https://files.test/v1beta/files/abc:download?alt=media"})
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if string(data) != "video-bytes" || mime != "video/mp4" {
		t.Fatalf("Download = %q, %q", data, mime)
	}
	q := transport.requests[0].URL.Query()
	if q.Has("key") || q.Get("alt") != "media" {
		t.Fatalf("download query = %v", q)
	}
	if got := transport.requests[0].Header.Get("x-goog-api-key"); got != "test-key" {
		t.Fatalf("download api key header = %q", got)
	}

	data, mime, err = client.Download(context.Background(), Video{Data: []byte("inline")})
	if err != nil || string(data) != "inline" || mime != "video/mp4" {
		t.Fatalf("inline Download = %q, %q, %v", data, mime, err)
	}
	if len(transport.requests) != 1 {
		t.Fatalf("inline download should not hit the network")
	}

	if _, _, err := client.Download(context.Background(), Video{}); err != ErrNoVideoData {
		t.Fatalf("empty Download err = %v", err)
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return nil, errors.New("dial tcp: connection refused " + req.URL.String())
}

func TestTransportErrorsNeverCarryAPIKey(t *testing.T) {
	const secret = "SECRET-KEY-123"
	client, err := NewClient(Options{
		APIKey:         secret,
		BaseURL:        "http://127.0.0.1:1",
		Model:          "veo",
		HTTPClient:     &http.Client{Transport: failingTransport{}},
		DownloadClient: &http.Client{Transport: failingTransport{}},
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	ctx := context.Background()

	var errs []error
	_, _, err = client.Download(ctx, Video{URI: "http://127.0.0.1:1/files/abc:download?key=" + secret})
	errs = append(errs, err)
	_, err = client.Poll(ctx, "models/veo/operations/op-1")
	errs = append(errs, err)
	_, err = client.Submit(ctx, SubmitRequest{Prompt: "Attach the legs"})
	errs = append(errs, err)

	for i, err := range errs {
		if err == nil {
			t.Fatalf("call %d: expected transport error", i)
		}
		if strings.Contains(err.Error(), secret) {
			t.Fatalf("call %d: api key leaked into error text: %v", i, err)
		}
	}
}

func TestAPIErrorMessageMasksKey(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{
		"/v1beta/operations/op-9": {
			status: http.StatusForbidden,
			body:   []byte(`{"error":{"code":403,"message":"API key test-key is not valid"}}`),
		},
	}}
	client := newTestClient(t, transport)

	_, err := client.Poll(context.Background(), "operations/op-9")
	if err == nil || strings.Contains(err.Error(), "test-key") {
		t.Fatalf("err = %v", err)
	}
}
