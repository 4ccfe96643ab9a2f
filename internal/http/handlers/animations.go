package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"planner/internal/animation"
	"planner/internal/providers/veo"
	"planner/internal/storage"
)

const (
	operationNotFoundMsg = "Animation operation was not found."
	stepNotFoundMsg      = "Step could not be found."
)

var errInvalidConfig = errors.New("config contains unsupported or malformed fields")

type generateRequest struct {
	Prompt string          `json:"prompt" validate:"required"`
	Image  string          `json:"image"`
	Config json.RawMessage `json:"config"`
	StepID int64           `json:"stepId" validate:"gte=0"`
}

type statusRequest struct {
	OperationID string `json:"operationId" validate:"required"`
}

type regenerateRequest struct {
	StepID int64 `json:"stepId" validate:"required,gt=0"`
}

type statusResponse struct {
	OperationID    string  `json:"operationId"`
	Status         string  `json:"status"`
	AnimationURL   *string `json:"animationUrl"`
	AnimationError *string `json:"animationError"`
}

// AnimationsGenerate starts a free-form Veo generation.
func (a *App) AnimationsGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if msg, ok := a.decode(w, r, &req); !ok {
		a.error(w, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, "Prompt cannot be empty.")
		return
	}

	cfg, err := decodeVideoConfig(req.Config)
	if err != nil {
		a.error(w, http.StatusBadRequest, err.Error())
		return
	}

	var image *veo.Image
	if raw := strings.TrimSpace(req.Image); raw != "" {
		mime, data, err := storage.ParseDataURL(raw)
		if err != nil {
			a.error(w, http.StatusBadRequest, "image must be a base64 data URL.")
			return
		}
		image = &veo.Image{MIMEType: mime, Data: data}
	}

	opID, err := a.Animations.Generate(r.Context(), animation.GenerateRequest{
		Prompt: req.Prompt,
		Image:  image,
		Config: cfg,
		StepID: req.StepID,
	})
	if err != nil {
		a.fail(w, r, err, stepNotFoundMsg)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"operationId": opID})
}

// AnimationsStatus polls an operation and reports the step's animation state.
func (a *App) AnimationsStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if msg, ok := a.decode(w, r, &req); !ok {
		a.error(w, http.StatusBadRequest, msg)
		return
	}
	status, err := a.Animations.Poll(r.Context(), req.OperationID)
	if err != nil {
		a.fail(w, r, err, operationNotFoundMsg)
		return
	}
	a.json(w, http.StatusOK, statusResponse{
		OperationID:    status.OperationID,
		Status:         string(status.State),
		AnimationURL:   status.AnimationURL,
		AnimationError: status.AnimationError,
	})
}

// AnimationsRegenerate restarts the animation of a stored step.
func (a *App) AnimationsRegenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if msg, ok := a.decode(w, r, &req); !ok {
		a.error(w, http.StatusBadRequest, msg)
		return
	}
	opID, err := a.Animations.Regenerate(r.Context(), req.StepID)
	if err != nil {
		a.fail(w, r, err, stepNotFoundMsg)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"operationId": opID, "status": "processing"})
}

// decodeVideoConfig strictly decodes the optional generation config.
func decodeVideoConfig(raw json.RawMessage) (*veo.VideoConfig, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var cfg veo.VideoConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, errInvalidConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
