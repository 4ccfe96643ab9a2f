// Package poller mirrors the animation state of plan steps on the client side
// and keeps it in sync with the API while jobs are running.
package poller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultInterval is the delay between automatic polling rounds.
const DefaultInterval = 5 * time.Second

const (
	StatusNone       = "none"
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

const (
	defaultUpdateError = "Animation update failed."
	defaultFailedError = "Animation failed."
	defaultStartError  = "Failed to start a new animation request."
)

// API is the subset of Client used by the poller.
type API interface {
	Status(ctx context.Context, operationID string) (*StatusResponse, error)
	Regenerate(ctx context.Context, stepID int64) (*StartResponse, error)
}

// StepState is the client-side view of one step animation.
type StepState struct {
	StepID       int64
	Position     int
	Title        string
	OperationID  string
	Status       string
	AnimationURL string
	Error        string
}

// Pending reports whether the step still waits on a running operation.
func (s StepState) Pending() bool {
	return (s.Status == StatusPending || s.Status == StatusProcessing) && s.OperationID != ""
}

// Poller keeps a set of step states up to date.
type Poller struct {
	api      API
	Interval time.Duration
	// OnUpdate is called after every change to a step, outside the lock.
	OnUpdate func(StepState)

	mu      sync.Mutex
	steps   map[int64]*StepState
	issued  map[string]uint64
	applied map[string]uint64
}

// New returns a poller tracking steps.
func New(api API, steps ...StepState) *Poller {
	p := &Poller{
		api:      api,
		Interval: DefaultInterval,
		steps:    make(map[int64]*StepState, len(steps)),
		issued:   make(map[string]uint64),
		applied:  make(map[string]uint64),
	}
	for _, s := range steps {
		p.Track(s)
	}
	return p
}

// FromPlan converts the steps of a plan response into step states.
func FromPlan(plan *PlanResponse) []StepState {
	out := make([]StepState, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		st := StepState{
			StepID:   s.ID,
			Position: s.Position,
			Title:    s.Title,
			Status:   s.Animation.Status,
		}
		if s.Animation.OperationID != nil {
			st.OperationID = *s.Animation.OperationID
		}
		if s.Animation.URL != nil {
			st.AnimationURL = *s.Animation.URL
		}
		if s.Animation.Error != nil {
			st.Error = *s.Animation.Error
		}
		out = append(out, st)
	}
	return out
}

// Track adds or replaces a step.
func (p *Poller) Track(s StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := s
	p.steps[s.StepID] = &cp
}

// Snapshot returns the tracked steps ordered by position.
func (p *Poller) Snapshot() []StepState {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]StepState, 0, len(p.steps))
	for _, s := range p.steps {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].StepID < out[j].StepID
	})
	return out
}

// Step returns the state of one step.
func (p *Poller) Step(stepID int64) (StepState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.steps[stepID]
	if !ok {
		return StepState{}, false
	}
	return *s, true
}

// Run polls every pending operation each Interval until none remain or ctx
// is done.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	for {
		ops := p.pendingOperations()
		if len(ops) == 0 {
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, op := range ops {
			g.Go(func() error {
				p.refresh(gctx, op)
				return nil
			})
		}
		_ = g.Wait()

		if len(p.pendingOperations()) == 0 {
			return nil
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Refresh polls one operation immediately and merges the result.
func (p *Poller) Refresh(ctx context.Context, operationID string) (StatusResponse, error) {
	return p.refresh(ctx, operationID)
}

// Start requests a new animation for a stored step. The step's previous
// result and error are cleared before the request is sent.
func (p *Poller) Start(ctx context.Context, stepID int64) (StepState, error) {
	p.update(stepID, func(s *StepState) bool {
		s.AnimationURL = ""
		s.Error = ""
		return true
	})

	res, err := p.api.Regenerate(ctx, stepID)
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = defaultStartError
		}
		st, _ := p.update(stepID, func(s *StepState) bool {
			s.Status = StatusFailed
			s.Error = msg
			s.AnimationURL = ""
			return true
		})
		return st, err
	}

	st, _ := p.update(stepID, func(s *StepState) bool {
		s.Status = StatusProcessing
		s.OperationID = res.OperationID
		s.AnimationURL = ""
		s.Error = ""
		return true
	})
	return st, nil
}

func (p *Poller) pendingOperations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := make(map[string]struct{})
	var ops []string
	for _, s := range p.steps {
		if !s.Pending() {
			continue
		}
		if _, ok := seen[s.OperationID]; ok {
			continue
		}
		seen[s.OperationID] = struct{}{}
		ops = append(ops, s.OperationID)
	}
	sort.Strings(ops)
	return ops
}

// refresh issues one status request. A response is merged only when no
// later request for the same operation has already been applied.
func (p *Poller) refresh(ctx context.Context, operationID string) (StatusResponse, error) {
	p.mu.Lock()
	p.issued[operationID]++
	seq := p.issued[operationID]
	p.mu.Unlock()

	res, err := p.api.Status(ctx, operationID)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return StatusResponse{}, err
		}
		msg := err.Error()
		if msg == "" {
			msg = defaultUpdateError
		}
		res = &StatusResponse{OperationID: operationID, Status: StatusFailed, AnimationError: &msg}
	}
	p.merge(seq, *res)
	return *res, err
}

func (p *Poller) merge(seq uint64, res StatusResponse) {
	var changed []StepState

	p.mu.Lock()
	if seq <= p.applied[res.OperationID] {
		p.mu.Unlock()
		return
	}
	p.applied[res.OperationID] = seq
	for _, s := range p.steps {
		if s.OperationID == "" || s.OperationID != res.OperationID {
			continue
		}
		if applyStatus(s, res) {
			changed = append(changed, *s)
		}
	}
	p.mu.Unlock()

	p.notify(changed...)
}

// applyStatus folds a status response into s and reports whether it changed.
func applyStatus(s *StepState, res StatusResponse) bool {
	before := *s
	next := res.Status
	switch next {
	case "", StatusPending:
		next = StatusProcessing
	}
	s.Status = next
	switch next {
	case StatusSucceeded:
		if res.AnimationURL != nil {
			s.AnimationURL = *res.AnimationURL
		}
		s.Error = ""
	case StatusFailed:
		s.AnimationURL = ""
		s.Error = defaultFailedError
		if res.AnimationError != nil && *res.AnimationError != "" {
			s.Error = *res.AnimationError
		}
	default:
		s.Error = ""
	}
	return *s != before
}

func (p *Poller) update(stepID int64, fn func(*StepState) bool) (StepState, bool) {
	p.mu.Lock()
	s, ok := p.steps[stepID]
	if !ok {
		s = &StepState{StepID: stepID, Status: StatusNone}
		p.steps[stepID] = s
	}
	changed := fn(s)
	st := *s
	p.mu.Unlock()

	if changed {
		p.notify(st)
	}
	return st, changed
}

func (p *Poller) notify(states ...StepState) {
	if p.OnUpdate == nil {
		return
	}
	for _, s := range states {
		p.OnUpdate(s)
	}
}
