package veo

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// State is the normalized status of a Veo operation.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

const (
	defaultFailureMessage = "Veo video generation failed."
	emptyOutputMessage    = "Veo completed without returning any video output."
	defaultVideoMIME      = "video/mp4"
)

// Operation is the long-running operation resource returned by the API.
type Operation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Metadata json.RawMessage    `json:"metadata,omitempty"`
	Error    *operationError    `json:"error,omitempty"`
	Response *operationResponse `json:"response,omitempty"`
}

type operationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type operationResponse struct {
	GenerateVideoResponse *generateVideoResponse `json:"generateVideoResponse,omitempty"`
	GeneratedVideos       []generatedSample      `json:"generatedVideos,omitempty"`
}

type generateVideoResponse struct {
	GeneratedSamples        []generatedSample `json:"generatedSamples,omitempty"`
	RAIMediaFilteredReasons []string          `json:"raiMediaFilteredReasons,omitempty"`
}

type generatedSample struct {
	Video *videoPayload `json:"video,omitempty"`
}

type videoPayload struct {
	URI                string `json:"uri,omitempty"`
	MIMEType           string `json:"mimeType,omitempty"`
	VideoBytes         string `json:"videoBytes,omitempty"`
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
}

// Video is one generated artifact: inline bytes or a URI to download.
type Video struct {
	URI      string
	MIMEType string
	Data     []byte
}

// Result is the normalized view of an operation.
type Result struct {
	OperationID string
	State       State
	Error       string
	Videos      []Video
}

// Resolve maps an operation onto a Result. Running operations are pending
// until the API reports progress metadata.
func Resolve(op *Operation) Result {
	if op == nil {
		return Result{State: StateFailed, Error: defaultFailureMessage}
	}
	result := Result{OperationID: op.Name}
	if !op.Done {
		result.State = StatePending
		if len(op.Metadata) > 0 && string(op.Metadata) != "null" {
			result.State = StateProcessing
		}
		return result
	}

	if op.Error != nil {
		result.State = StateFailed
		result.Error = strings.TrimSpace(op.Error.Message)
		if result.Error == "" {
			result.Error = defaultFailureMessage
		}
		return result
	}

	videos, filtered := extractVideos(op.Response)
	if len(videos) == 0 {
		result.State = StateFailed
		result.Error = emptyOutputMessage
		if len(filtered) > 0 {
			result.Error = emptyOutputMessage + " " + strings.TrimSpace(filtered[0])
		}
		return result
	}

	result.State = StateSucceeded
	result.Videos = videos
	return result
}

func extractVideos(resp *operationResponse) ([]Video, []string) {
	if resp == nil {
		return nil, nil
	}
	samples := resp.GeneratedVideos
	var filtered []string
	if resp.GenerateVideoResponse != nil {
		samples = append(samples, resp.GenerateVideoResponse.GeneratedSamples...)
		filtered = resp.GenerateVideoResponse.RAIMediaFilteredReasons
	}

	var videos []Video
	for _, sample := range samples {
		if sample.Video == nil {
			continue
		}
		v := Video{URI: strings.TrimSpace(sample.Video.URI), MIMEType: sample.Video.MIMEType}
		if v.MIMEType == "" {
			v.MIMEType = defaultVideoMIME
		}
		encoded := sample.Video.VideoBytes
		if encoded == "" {
			encoded = sample.Video.BytesBase64Encoded
		}
		if encoded != "" {
			if data, err := base64.StdEncoding.DecodeString(encoded); err == nil {
				v.Data = data
			}
		}
		if len(v.Data) == 0 && v.URI == "" {
			continue
		}
		videos = append(videos, v)
	}
	return videos, filtered
}
