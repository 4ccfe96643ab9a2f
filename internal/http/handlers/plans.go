package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"planner/internal/domain"
	"planner/internal/planning"
)

const (
	planNotFoundMsg  = "Plan could not be found."
	invalidPlanIDMsg = "A valid plan id is required."
)

type planStepRequest struct {
	ID           string `json:"id"`
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description" validate:"required"`
	Notes        string `json:"notes"`
	Illustration string `json:"illustration"`
}

type createPlanRequest struct {
	Request             string            `json:"request" validate:"required"`
	Project             string            `json:"project"`
	Checklist           []string          `json:"checklist"`
	Steps               []planStepRequest `json:"steps" validate:"required,min=1,dive"`
	AttachmentUploadID  *int64            `json:"attachmentUploadId" validate:"omitempty,gt=0"`
	ExpectIllustrations bool              `json:"expectIllustrations"`
}

type deletePlanRequest struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

type planResponse struct {
	ID                 int64     `json:"id"`
	Request            string    `json:"request"`
	Project            string    `json:"project,omitempty"`
	Checklist          []string  `json:"checklist"`
	AttachmentUploadID *int64    `json:"attachmentUploadId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

type planSummaryResponse struct {
	ID         int64     `json:"id"`
	Request    string    `json:"request"`
	Project    string    `json:"project,omitempty"`
	StepsCount int       `json:"stepsCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

type animationResponse struct {
	Status      string     `json:"status"`
	OperationID *string    `json:"operationId"`
	URL         *string    `json:"url"`
	Error       *string    `json:"error"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

type stepResponse struct {
	ID              int64             `json:"id"`
	StepID          string            `json:"stepId"`
	Position        int               `json:"position"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Notes           string            `json:"notes,omitempty"`
	IllustrationURL *string           `json:"illustrationUrl"`
	Animation       animationResponse `json:"animation"`
}

// PlansCreate stores a generated plan and starts its first step animation.
func (a *App) PlansCreate(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if msg, ok := a.decode(w, r, &req); !ok {
		a.error(w, http.StatusBadRequest, msg)
		return
	}

	steps := make([]planning.StepDraft, len(req.Steps))
	for i, s := range req.Steps {
		steps[i] = planning.StepDraft{
			ID:           s.ID,
			Title:        s.Title,
			Description:  s.Description,
			Notes:        s.Notes,
			Illustration: s.Illustration,
		}
	}
	detail, err := a.Plans.Create(r.Context(), planning.CreateRequest{
		RequestSummary:      req.Request,
		Project:             req.Project,
		Checklist:           req.Checklist,
		Steps:               steps,
		UploadID:            req.AttachmentUploadID,
		ExpectIllustrations: req.ExpectIllustrations,
	})
	switch {
	case errors.Is(err, planning.ErrIllustrationStore):
		a.Logger.Error().Err(err).Msg("plan illustrations upload failed")
		a.error(w, http.StatusInternalServerError, "We generated your plan but storing step illustrations failed. Please try again.")
		return
	case errors.Is(err, planning.ErrPlanStore):
		a.Logger.Error().Err(err).Msg("plan insert failed")
		a.error(w, http.StatusInternalServerError, "Failed to store generated plan. Please try again.")
		return
	case err != nil:
		a.fail(w, r, err, planNotFoundMsg)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"planId": detail.Plan.ID,
		"plan":   planDetailResponse(detail),
	})
}

// PlansList returns the most recent plans.
func (a *App) PlansList(w http.ResponseWriter, r *http.Request) {
	items, err := a.Plans.List(r.Context())
	if err != nil {
		a.fail(w, r, err, planNotFoundMsg)
		return
	}
	out := make([]planSummaryResponse, 0, len(items))
	for _, p := range items {
		out = append(out, planSummaryResponse{
			ID:         p.ID,
			Request:    p.RequestSummary,
			Project:    p.Project,
			StepsCount: p.StepsCount,
			CreatedAt:  p.CreatedAt.UTC(),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"plans": out})
}

// PlansGet returns a plan with its steps.
func (a *App) PlansGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		a.error(w, http.StatusBadRequest, invalidPlanIDMsg)
		return
	}
	detail, err := a.Plans.Get(r.Context(), id)
	if err != nil {
		a.fail(w, r, err, planNotFoundMsg)
		return
	}
	a.json(w, http.StatusOK, planDetailResponse(detail))
}

// PlansDelete removes a plan by id.
func (a *App) PlansDelete(w http.ResponseWriter, r *http.Request) {
	var req deletePlanRequest
	if _, ok := a.decode(w, r, &req); !ok {
		a.error(w, http.StatusBadRequest, invalidPlanIDMsg)
		return
	}
	if err := a.Plans.Delete(r.Context(), req.ID); err != nil {
		a.fail(w, r, err, planNotFoundMsg)
		return
	}
	a.json(w, http.StatusOK, map[string]bool{"ok": true})
}

func planDetailResponse(d *planning.PlanDetail) map[string]any {
	checklist := d.Plan.Checklist
	if checklist == nil {
		checklist = []string{}
	}
	steps := make([]stepResponse, 0, len(d.Steps))
	for _, s := range d.Steps {
		steps = append(steps, stepResponse{
			ID:              s.ID,
			StepID:          s.DisplayID(),
			Position:        s.Position,
			Title:           s.Title,
			Description:     s.Description,
			Notes:           s.Notes,
			IllustrationURL: optional(s.IllustrationDisplayURL),
			Animation:       animationView(s),
		})
	}
	return map[string]any{
		"plan": planResponse{
			ID:                 d.Plan.ID,
			Request:            d.Plan.RequestSummary,
			Project:            d.Plan.Project,
			Checklist:          checklist,
			AttachmentUploadID: d.Plan.UploadID,
			CreatedAt:          d.Plan.CreatedAt.UTC(),
		},
		"steps": steps,
	}
}

func animationView(s planning.StepDetail) animationResponse {
	anim := s.Animation
	out := animationResponse{
		Status:      string(anim.State()),
		OperationID: optional(anim.OperationID()),
		URL:         optional(s.AnimationDisplayURL),
	}
	if anim.State() == domain.AnimationStateFailed {
		out.Error = optional(anim.Error())
	}
	if !s.AnimationUpdatedAt.IsZero() {
		ts := s.AnimationUpdatedAt.UTC()
		out.UpdatedAt = &ts
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
