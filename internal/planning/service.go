package planning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"planner/internal/animation"
	"planner/internal/domain"
	"planner/internal/infra"
	"planner/internal/providers/veo"
	"planner/internal/storage"
)

const (
	// ListLimit caps the plan listing.
	ListLimit = 50

	illustrationKeyPrefix  = "plan-illustrations"
	missingIllustrationMsg = "Step illustration was not generated."
	uploadConcurrency      = 4
)

var (
	// ErrIllustrationStore reports that illustrations could not be uploaded.
	ErrIllustrationStore = errors.New("planning: storing step illustrations failed")
	// ErrPlanStore reports that the plan insert failed.
	ErrPlanStore = errors.New("planning: storing plan failed")
)

// Animator starts step animations.
type Animator interface {
	Start(ctx context.Context, req animation.StartRequest) (string, error)
}

// StepDraft is a generated step as submitted by the client. Illustration is
// either a base64 data URL or an already hosted URL.
type StepDraft struct {
	ID           string
	Title        string
	Description  string
	Notes        string
	Illustration string
}

// CreateRequest is a generated plan ready to be stored.
type CreateRequest struct {
	RequestSummary string
	Project        string
	Checklist      []string
	Steps          []StepDraft
	UploadID       *int64
	// ExpectIllustrations marks steps without an illustration as failed
	// animations instead of leaving them without a job.
	ExpectIllustrations bool
}

// StepDetail is a stored step with display URLs resolved.
type StepDetail struct {
	domain.Step
	IllustrationDisplayURL string
	AnimationDisplayURL    string
}

// PlanDetail is a stored plan with its steps.
type PlanDetail struct {
	Plan  domain.Plan
	Steps []StepDetail
}

// Service stores generated plans and kicks off their first animation.
type Service struct {
	plans    domain.PlanRepository
	blobs    storage.BlobStore
	animator Animator
	logger   infra.Logger
}

func NewService(plans domain.PlanRepository, blobs storage.BlobStore, animator Animator, logger infra.Logger) *Service {
	return &Service{plans: plans, blobs: blobs, animator: animator, logger: infra.Component(logger, "planning")}
}

type storedIllustration struct {
	key   string
	url   string
	image *veo.Image
}

// Create validates, stores illustrations, starts the first step animation and
// persists the plan.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*PlanDetail, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	illustrations, err := s.storeIllustrations(ctx, req.Steps)
	if err != nil {
		return nil, err
	}

	project := strings.TrimSpace(req.Project)
	summary := strings.TrimSpace(req.RequestSummary)
	steps := make([]domain.Step, len(req.Steps))
	var started string
	for i, draft := range req.Steps {
		ill := illustrations[i]
		steps[i] = domain.Step{
			Identifier:      strings.TrimSpace(draft.ID),
			Title:           strings.TrimSpace(draft.Title),
			Description:     strings.TrimSpace(draft.Description),
			Notes:           strings.TrimSpace(draft.Notes),
			IllustrationKey: ill.key,
			IllustrationURL: ill.url,
			Animation:       domain.AnimationNone(),
		}
		hasIllustration := ill.key != "" || ill.url != ""
		switch {
		case i == 0 && ill.image != nil:
			steps[i].Animation = s.startFirst(ctx, draft, len(req.Steps), summary, project, ill.image)
			started = steps[i].Animation.OperationID()
		case !hasIllustration && req.ExpectIllustrations:
			steps[i].Animation = domain.AnimationFailed("", missingIllustrationMsg)
		}
	}

	plan := &domain.Plan{
		RequestSummary: summary,
		Project:        project,
		Checklist:      cleanList(req.Checklist),
		UploadID:       req.UploadID,
	}
	if _, err := s.plans.Create(ctx, plan, steps); err != nil {
		if started != "" {
			s.logger.Warn().Str("operation_id", started).Msg("planning: abandoned operation after failed plan insert")
		}
		return nil, fmt.Errorf("%w: %w", ErrPlanStore, err)
	}

	s.logger.Info().Int64("plan_id", plan.ID).Int("steps", len(steps)).Msg("planning: plan stored")
	return s.detail(ctx, plan, steps)
}

func (s *Service) startFirst(ctx context.Context, draft StepDraft, total int, summary, project string, image *veo.Image) domain.Animation {
	opID, err := s.animator.Start(ctx, animation.StartRequest{
		Step: animation.StepInput{
			ID:          draft.ID,
			Title:       draft.Title,
			Description: draft.Description,
			Notes:       draft.Notes,
		},
		Index:        0,
		TotalSteps:   total,
		Context:      animation.PlanContext{RequestSummary: summary, Project: project},
		Illustration: image,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("step", draft.ID).Msg("planning: failed to start animation")
		return domain.AnimationFailed("", err.Error())
	}
	return domain.AnimationProcessing(opID)
}

// storeIllustrations uploads data URL illustrations concurrently. Hosted URLs
// are kept as is.
func (s *Service) storeIllustrations(ctx context.Context, drafts []StepDraft) ([]storedIllustration, error) {
	out := make([]storedIllustration, len(drafts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, draft := range drafts {
		raw := strings.TrimSpace(draft.Illustration)
		if raw == "" {
			continue
		}
		if !storage.IsDataURL(raw) {
			out[i] = storedIllustration{url: raw}
			continue
		}
		g.Go(func() error {
			mime, data, err := storage.ParseDataURL(raw)
			if err != nil {
				return fmt.Errorf("%w: step %d illustration must be a base64 data url", domain.ErrInvalidInput, i+1)
			}
			obj, err := s.blobs.Put(gctx, storage.NewKey(illustrationKeyPrefix, mime), data, mime)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrIllustrationStore, err)
			}
			out[i] = storedIllustration{key: obj.Key, url: obj.URL, image: &veo.Image{MIMEType: mime, Data: data}}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns the most recent plans.
func (s *Service) List(ctx context.Context) ([]domain.PlanSummary, error) {
	return s.plans.List(ctx, ListLimit)
}

// Get loads a plan with display URLs for every step.
func (s *Service) Get(ctx context.Context, planID int64) (*PlanDetail, error) {
	if planID <= 0 {
		return nil, fmt.Errorf("%w: a valid plan id is required", domain.ErrInvalidInput)
	}
	plan, steps, err := s.plans.GetWithSteps(ctx, planID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, plan, steps)
}

// Delete removes a plan and its steps.
func (s *Service) Delete(ctx context.Context, planID int64) error {
	if planID <= 0 {
		return fmt.Errorf("%w: a valid plan id is required", domain.ErrInvalidInput)
	}
	ok, err := s.plans.Delete(ctx, planID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.logger.Info().Int64("plan_id", planID).Msg("planning: plan deleted")
	return nil
}

// detail signs illustration and animation URLs concurrently.
func (s *Service) detail(ctx context.Context, plan *domain.Plan, steps []domain.Step) (*PlanDetail, error) {
	details := make([]StepDetail, len(steps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i := range steps {
		details[i].Step = steps[i]
		g.Go(func() error {
			step := steps[i]
			details[i].IllustrationDisplayURL = storage.ResolveURL(gctx, s.blobs, step.IllustrationKey, step.IllustrationURL)
			if step.Animation.HasResult() {
				details[i].AnimationDisplayURL = storage.ResolveURL(gctx, s.blobs, step.Animation.ResultKey(), step.Animation.ResultURL())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &PlanDetail{Plan: *plan, Steps: details}, nil
}

func validate(req CreateRequest) error {
	if strings.TrimSpace(req.RequestSummary) == "" {
		return fmt.Errorf("%w: a project description is required", domain.ErrInvalidInput)
	}
	if len(req.Steps) == 0 {
		return fmt.Errorf("%w: a plan requires at least one step", domain.ErrInvalidInput)
	}
	var errs []error
	for i, step := range req.Steps {
		if strings.TrimSpace(step.Title) == "" {
			errs = append(errs, fmt.Errorf("step %d requires a title", i+1))
		}
		if strings.TrimSpace(step.Description) == "" {
			errs = append(errs, fmt.Errorf("step %d requires a description", i+1))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errs[0])
	}
	return nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

var _ Animator = (*animation.Orchestrator)(nil)
