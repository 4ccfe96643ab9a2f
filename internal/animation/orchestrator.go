package animation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"planner/internal/domain"
	"planner/internal/infra"
	"planner/internal/providers/veo"
	"planner/internal/storage"
)

const (
	animationKeyPrefix  = "animations"
	missingVideoMessage = "Veo reported success but the video payload is missing."
)

// GenerationClient is the subset of the Veo client used by the orchestrator.
type GenerationClient interface {
	Submit(ctx context.Context, req veo.SubmitRequest) (string, error)
	Poll(ctx context.Context, operationID string) (veo.Result, error)
	Download(ctx context.Context, video veo.Video) ([]byte, string, error)
}

// Options wires the orchestrator dependencies.
type Options struct {
	Steps      domain.StepRepository
	Client     GenerationClient
	Blobs      storage.BlobStore
	HTTPClient *http.Client
	Logger     infra.Logger
}

// Orchestrator drives the animation job state machine of plan steps.
type Orchestrator struct {
	steps      domain.StepRepository
	client     GenerationClient
	blobs      storage.BlobStore
	httpClient *http.Client
	logger     infra.Logger
	polls      singleflight.Group
}

// Status is the normalized answer to a status query.
type Status struct {
	OperationID    string
	State          domain.AnimationState
	AnimationURL   *string
	AnimationError *string
}

// StartRequest describes a step animation to submit.
type StartRequest struct {
	Step         StepInput
	Index        int
	TotalSteps   int
	Context      PlanContext
	Illustration *veo.Image
	Config       *veo.VideoConfig
}

// GenerateRequest is a free-form generation. When StepID is set the new
// operation is attached to that step.
type GenerateRequest struct {
	Prompt string
	Image  *veo.Image
	Config *veo.VideoConfig
	StepID int64
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Steps == nil {
		return nil, errors.New("animation: step repository is required")
	}
	if opts.Client == nil {
		return nil, errors.New("animation: generation client is required")
	}
	if opts.Blobs == nil {
		return nil, errors.New("animation: blob store is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Orchestrator{
		steps:      opts.Steps,
		client:     opts.Client,
		blobs:      opts.Blobs,
		httpClient: httpClient,
		logger:     infra.Component(opts.Logger, "animation"),
	}, nil
}

// Start submits a generation job for a step and returns its operation id.
// Persisting the id is left to the caller.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (string, error) {
	prompt := BuildStepPrompt(req.Step, req.Index, req.TotalSteps, req.Context)
	opID, err := o.client.Submit(ctx, veo.SubmitRequest{
		Prompt: prompt,
		Image:  req.Illustration,
		Config: req.Config,
	})
	if err != nil {
		return "", fmt.Errorf("start animation: %w", err)
	}
	o.logger.Info().
		Str("operation_id", opID).
		Str("step", req.Step.ID).
		Int("index", req.Index).
		Msg("animation: started")
	return opID, nil
}

// Generate submits a free-form prompt. With a step id the step is moved onto
// the new operation so later polls can resolve it.
func (o *Orchestrator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	prompt := NormalizePrompt(req.Prompt)
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", domain.ErrInvalidInput)
	}
	if req.StepID < 0 {
		return "", fmt.Errorf("%w: step id must be positive", domain.ErrInvalidInput)
	}
	if req.StepID > 0 {
		if _, err := o.steps.GetForAnimation(ctx, req.StepID); err != nil {
			return "", err
		}
	}

	opID, err := o.client.Submit(ctx, veo.SubmitRequest{Prompt: prompt, Image: req.Image, Config: req.Config})
	if err != nil {
		return "", fmt.Errorf("start generation: %w", err)
	}
	if req.StepID == 0 {
		return opID, nil
	}
	if err := o.attach(ctx, req.StepID, opID); err != nil {
		return "", err
	}
	return opID, nil
}

// Regenerate starts a fresh job seeded with the step's stored illustration.
// The step is only reset once the submission succeeded.
func (o *Orchestrator) Regenerate(ctx context.Context, stepID int64) (string, error) {
	if stepID <= 0 {
		return "", fmt.Errorf("%w: step id must be greater than zero", domain.ErrInvalidInput)
	}
	target, err := o.steps.GetForAnimation(ctx, stepID)
	if err != nil {
		return "", err
	}
	if !target.HasIllustration() {
		return "", domain.ErrNoIllustration
	}

	data, mime, err := storage.Fetch(ctx, o.blobs, o.httpClient, target.IllustrationKey, target.IllustrationURL)
	if err != nil {
		return "", fmt.Errorf("load step illustration: %w", err)
	}

	total, err := o.steps.CountPlanSteps(ctx, target.PlanID)
	if err != nil {
		return "", err
	}
	if total <= 0 {
		total = 1
	}
	index := target.Position
	if index < 0 {
		index = 0
	}

	opID, err := o.Start(ctx, StartRequest{
		Step: StepInput{
			ID:          target.DisplayID(),
			Title:       target.Title,
			Description: target.Description,
			Notes:       target.Notes,
		},
		Index:        index,
		TotalSteps:   total,
		Context:      PlanContext{RequestSummary: target.RequestSummary},
		Illustration: &veo.Image{MIMEType: mime, Data: data},
	})
	if err != nil {
		return "", err
	}
	if err := o.attach(ctx, stepID, opID); err != nil {
		return "", err
	}
	return opID, nil
}

// attach moves a step onto opID and logs the operation it replaced. Upstream
// jobs cannot be cancelled, so replaced operations keep running unobserved.
func (o *Orchestrator) attach(ctx context.Context, stepID int64, opID string) error {
	previous, err := o.steps.ResetAnimation(ctx, stepID, opID)
	if err != nil {
		o.logAbandoned(stepID, opID, "attach failed")
		return fmt.Errorf("reset step animation: %w", err)
	}
	if previous != "" && previous != opID {
		o.logAbandoned(stepID, previous, "replaced")
	}
	return nil
}

func (o *Orchestrator) logAbandoned(stepID int64, opID, reason string) {
	o.logger.Warn().
		Int64("step_id", stepID).
		Str("operation_id", opID).
		Str("reason", reason).
		Msg("animation: abandoned operation")
}

// Poll reports the state of an operation, advancing the persisted step when
// the external job made progress. Concurrent polls of the same operation
// within this process share one execution.
func (o *Orchestrator) Poll(ctx context.Context, operationID string) (Status, error) {
	operationID = strings.TrimSpace(operationID)
	if operationID == "" {
		return Status{}, fmt.Errorf("%w: operation id is required", domain.ErrInvalidInput)
	}

	detached := context.WithoutCancel(ctx)
	ch := o.polls.DoChan(operationID, func() (any, error) {
		return o.poll(detached, operationID)
	})
	select {
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Status{}, res.Err
		}
		return res.Val.(Status), nil
	}
}

func (o *Orchestrator) poll(ctx context.Context, operationID string) (Status, error) {
	step, err := o.steps.GetByOperationID(ctx, operationID)
	if err != nil {
		return Status{}, err
	}
	current := step.Animation
	if current.State() == domain.AnimationStateSucceeded && current.HasResult() {
		return o.statusOf(ctx, current), nil
	}

	result, err := o.client.Poll(ctx, operationID)
	if err != nil {
		return Status{}, fmt.Errorf("poll operation: %w", err)
	}

	switch result.State {
	case veo.StatePending, veo.StateProcessing:
		if current.State() != domain.AnimationStateProcessing {
			status, _, err := o.transition(ctx, operationID, current, domain.AnimationProcessing(operationID))
			return status, err
		}
		return o.statusOf(ctx, current), nil
	case veo.StateFailed:
		return o.fail(ctx, operationID, current, result.Error)
	case veo.StateSucceeded:
		return o.store(ctx, operationID, current, result.Videos)
	default:
		return Status{}, fmt.Errorf("%w: unknown operation state %q", domain.ErrProviderFailure, result.State)
	}
}

// store re-uploads the first generated video and records the outcome.
func (o *Orchestrator) store(ctx context.Context, operationID string, current domain.Animation, videos []veo.Video) (Status, error) {
	if len(videos) == 0 {
		return o.fail(ctx, operationID, current, missingVideoMessage)
	}

	data, mime, err := o.client.Download(ctx, videos[0])
	if err != nil {
		o.logger.Error().Err(err).Str("operation_id", operationID).Msg("animation: download failed")
		return o.fail(ctx, operationID, current, err.Error())
	}
	obj, err := o.blobs.Put(ctx, storage.NewKey(animationKeyPrefix, mime), data, mime)
	if err != nil {
		o.logger.Error().Err(err).Str("operation_id", operationID).Msg("animation: upload failed")
		return o.fail(ctx, operationID, current, err.Error())
	}

	status, applied, err := o.transition(ctx, operationID, current, domain.AnimationSucceeded(operationID, obj.Key, obj.URL))
	if err == nil && !applied {
		// The object stays in the bucket; nothing references it.
		o.logger.Warn().Str("operation_id", operationID).Str("key", obj.Key).Msg("animation: stored artifact lost the race")
	}
	return status, err
}

func (o *Orchestrator) fail(ctx context.Context, operationID string, current domain.Animation, message string) (Status, error) {
	status, _, err := o.transition(ctx, operationID, current, domain.AnimationFailed(operationID, message))
	return status, err
}

// transition writes next when the step still holds current. A lost race
// re-reads the row and reports whatever the winner stored.
func (o *Orchestrator) transition(ctx context.Context, operationID string, current, next domain.Animation) (Status, bool, error) {
	ok, err := o.steps.TransitionByOperationID(ctx, operationID, current.State(), next)
	if err != nil {
		return Status{}, false, err
	}
	if ok {
		o.logger.Info().
			Str("operation_id", operationID).
			Str("from", string(current.State())).
			Str("to", string(next.State())).
			Msg("animation: transition")
		return o.statusOf(ctx, next), true, nil
	}

	step, err := o.steps.GetByOperationID(ctx, operationID)
	if err != nil {
		return Status{}, false, err
	}
	return o.statusOf(ctx, step.Animation), false, nil
}

func (o *Orchestrator) statusOf(ctx context.Context, a domain.Animation) Status {
	status := Status{OperationID: a.OperationID(), State: a.State()}
	switch a.State() {
	case domain.AnimationStateSucceeded:
		if url := storage.ResolveURL(ctx, o.blobs, a.ResultKey(), a.ResultURL()); url != "" {
			status.AnimationURL = &url
		}
	case domain.AnimationStateFailed:
		msg := a.Error()
		status.AnimationError = &msg
	case domain.AnimationStatePending, domain.AnimationStateNone:
		status.State = domain.AnimationStateProcessing
	}
	return status
}
