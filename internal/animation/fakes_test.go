package animation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"planner/internal/domain"
	"planner/internal/providers/veo"
	"planner/internal/storage"
)

type memSteps struct {
	mu          sync.Mutex
	steps       map[int64]*domain.Step
	summaries   map[int64]string
	transitions int
	resets      int
	touches     int
	now         func() time.Time
	// beforeTransition runs inside TransitionByOperationID before the
	// compare, letting tests simulate a competing writer.
	beforeTransition func(*memSteps)
}

func newMemSteps(steps ...domain.Step) *memSteps {
	m := &memSteps{steps: map[int64]*domain.Step{}, summaries: map[int64]string{}, now: time.Now}
	for i := range steps {
		s := steps[i]
		m.steps[s.ID] = &s
	}
	return m
}

func (m *memSteps) get(id int64) domain.Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.steps[id]
}

func (m *memSteps) GetByOperationID(ctx context.Context, operationID string) (*domain.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.steps {
		if s.Animation.OperationID() == operationID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSteps) GetForAnimation(ctx context.Context, stepID int64) (*domain.AnimationTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[stepID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.AnimationTarget{Step: *s, RequestSummary: m.summaries[s.PlanID]}, nil
}

func (m *memSteps) CountPlanSteps(ctx context.Context, planID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.steps {
		if s.PlanID == planID {
			n++
		}
	}
	return n, nil
}

func (m *memSteps) TransitionByOperationID(ctx context.Context, operationID string, expected domain.AnimationState, next domain.Animation) (bool, error) {
	if m.beforeTransition != nil {
		hook := m.beforeTransition
		m.beforeTransition = nil
		hook(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := next.Validate(); err != nil {
		return false, err
	}
	for _, s := range m.steps {
		if s.Animation.OperationID() != operationID {
			continue
		}
		if s.Animation.State() != expected {
			return false, nil
		}
		s.Animation = next
		s.AnimationUpdatedAt = time.Now()
		m.transitions++
		return true, nil
	}
	return false, nil
}

func (m *memSteps) ResetAnimation(ctx context.Context, stepID int64, operationID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.steps[stepID]
	if !ok {
		return "", domain.ErrNotFound
	}
	previous := s.Animation.OperationID()
	s.Animation = domain.AnimationProcessing(operationID)
	m.resets++
	return previous, nil
}

func (m *memSteps) TouchAnimation(ctx context.Context, operationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.steps {
		if s.Animation.OperationID() == operationID && s.Animation.State() == domain.AnimationStateProcessing {
			s.AnimationUpdatedAt = m.now()
			m.touches++
		}
	}
	return nil
}

func (m *memSteps) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Step
	for _, s := range m.steps {
		if s.Animation.State() == domain.AnimationStateProcessing && s.AnimationUpdatedAt.Before(updatedBefore) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AnimationUpdatedAt.Equal(out[j].AnimationUpdatedAt) {
			return out[i].AnimationUpdatedAt.Before(out[j].AnimationUpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeClient struct {
	mu          sync.Mutex
	submitted   []veo.SubmitRequest
	submitErr   error
	nextOp      int
	results     map[string]veo.Result
	pollErr     error
	pollErrs    map[string]error
	polled      []string
	polls       atomic.Int32
	pollDelay   time.Duration
	downloadErr error
	downloads   atomic.Int32
}

func (f *fakeClient) Submit(ctx context.Context, req veo.SubmitRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, req)
	f.nextOp++
	return fmt.Sprintf("operations/new-%d", f.nextOp), nil
}

func (f *fakeClient) Poll(ctx context.Context, operationID string) (veo.Result, error) {
	f.polls.Add(1)
	if f.pollDelay > 0 {
		time.Sleep(f.pollDelay)
	}
	if f.pollErr != nil {
		return veo.Result{}, f.pollErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polled = append(f.polled, operationID)
	if err := f.pollErrs[operationID]; err != nil {
		return veo.Result{}, err
	}
	return f.results[operationID], nil
}

func (f *fakeClient) Download(ctx context.Context, video veo.Video) ([]byte, string, error) {
	f.downloads.Add(1)
	if f.downloadErr != nil {
		return nil, "", f.downloadErr
	}
	if len(video.Data) > 0 {
		return video.Data, video.MIMEType, nil
	}
	return []byte("downloaded:" + video.URI), "video/mp4", nil
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	signErr error
	puts    int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (m *memBlobs) Put(ctx context.Context, key string, data []byte, contentType string) (storage.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return storage.Object{}, m.putErr
	}
	m.objects[key] = data
	m.puts++
	return storage.Object{Key: key, URL: "https://cdn.test/" + key, ContentType: contentType}, nil
}

func (m *memBlobs) Get(ctx context.Context, key string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, "", storage.ErrObjectNotFound
	}
	return data, "image/png", nil
}

func (m *memBlobs) Sign(ctx context.Context, key string) (string, error) {
	if m.signErr != nil {
		return "", m.signErr
	}
	return "https://signed.test/" + key + "?sig=1", nil
}
