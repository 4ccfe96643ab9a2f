package animation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planner/internal/domain"
	"planner/internal/infra"
	"planner/internal/providers/veo"
)

const opID = "operations/op-1"

func newTestOrchestrator(t *testing.T, steps *memSteps, client *fakeClient, blobs *memBlobs) *Orchestrator {
	t.Helper()
	o, err := New(Options{Steps: steps, Client: client, Blobs: blobs, Logger: infra.NewLogger("test")})
	require.NoError(t, err)
	return o
}

func processingStep() domain.Step {
	return domain.Step{ID: 1, PlanID: 10, Title: "Attach legs", Description: "Screw in the legs.", Animation: domain.AnimationProcessing(opID)}
}

func TestPollRejectsEmptyOperationID(t *testing.T) {
	o := newTestOrchestrator(t, newMemSteps(), &fakeClient{}, newMemBlobs())
	_, err := o.Poll(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPollUnknownOperation(t *testing.T) {
	client := &fakeClient{}
	o := newTestOrchestrator(t, newMemSteps(), client, newMemBlobs())
	_, err := o.Poll(context.Background(), "operations/missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, client.polls.Load())
}

func TestPollStillRunning(t *testing.T) {
	for _, state := range []veo.State{veo.StatePending, veo.StateProcessing} {
		t.Run(string(state), func(t *testing.T) {
			steps := newMemSteps(processingStep())
			client := &fakeClient{results: map[string]veo.Result{opID: {OperationID: opID, State: state}}}
			o := newTestOrchestrator(t, steps, client, newMemBlobs())

			status, err := o.Poll(context.Background(), opID)
			require.NoError(t, err)
			assert.Equal(t, domain.AnimationStateProcessing, status.State)
			assert.Nil(t, status.AnimationURL)
			assert.Nil(t, status.AnimationError)
			assert.Zero(t, steps.transitions, "already processing rows are not rewritten")
		})
	}
}

func TestPollRunningWritesProcessingOnce(t *testing.T) {
	step := processingStep()
	step.Animation = domain.AnimationFailed(opID, "transient")
	steps := newMemSteps(step)
	client := &fakeClient{results: map[string]veo.Result{opID: {State: veo.StateProcessing}}}
	o := newTestOrchestrator(t, steps, client, newMemBlobs())

	for i := 0; i < 2; i++ {
		status, err := o.Poll(context.Background(), opID)
		require.NoError(t, err)
		assert.Equal(t, domain.AnimationStateProcessing, status.State)
	}
	assert.Equal(t, 1, steps.transitions)
}

func TestPollFailed(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{name: "reported message", message: "unsafe content", want: "unsafe content"},
		{name: "default message", message: "", want: domain.DefaultAnimationError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			steps := newMemSteps(processingStep())
			client := &fakeClient{results: map[string]veo.Result{opID: {State: veo.StateFailed, Error: tc.message}}}
			o := newTestOrchestrator(t, steps, client, newMemBlobs())

			status, err := o.Poll(context.Background(), opID)
			require.NoError(t, err)
			assert.Equal(t, domain.AnimationStateFailed, status.State)
			require.NotNil(t, status.AnimationError)
			assert.Equal(t, tc.want, *status.AnimationError)
			assert.Nil(t, status.AnimationURL)

			stored := steps.get(1).Animation
			assert.Equal(t, domain.AnimationStateFailed, stored.State())
			assert.Equal(t, tc.want, stored.Error())
			assert.Empty(t, stored.ResultKey())
		})
	}
}

func TestPollSucceededStoresArtifact(t *testing.T) {
	steps := newMemSteps(processingStep())
	blobs := newMemBlobs()
	client := &fakeClient{results: map[string]veo.Result{opID: {
		State:  veo.StateSucceeded,
		Videos: []veo.Video{{URI: "https://files.test/a", MIMEType: "video/mp4"}, {URI: "https://files.test/b"}},
	}}}
	o := newTestOrchestrator(t, steps, client, blobs)

	status, err := o.Poll(context.Background(), opID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnimationStateSucceeded, status.State)
	require.NotNil(t, status.AnimationURL)
	assert.True(t, strings.HasPrefix(*status.AnimationURL, "https://signed.test/animations/"))
	assert.Nil(t, status.AnimationError)

	stored := steps.get(1).Animation
	require.Equal(t, domain.AnimationStateSucceeded, stored.State())
	assert.True(t, strings.HasPrefix(stored.ResultKey(), "animations/"))
	assert.True(t, strings.HasSuffix(stored.ResultKey(), ".mp4"))
	assert.Equal(t, "downloaded:https://files.test/a", string(blobs.objects[stored.ResultKey()]))
	assert.Equal(t, int32(1), client.downloads.Load())
}

func TestPollSucceededShortCircuits(t *testing.T) {
	step := processingStep()
	step.Animation = domain.AnimationSucceeded(opID, "animations/done.mp4", "https://cdn.test/animations/done.mp4")
	steps := newMemSteps(step)
	client := &fakeClient{}
	blobs := newMemBlobs()
	o := newTestOrchestrator(t, steps, client, blobs)

	status, err := o.Poll(context.Background(), opID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnimationStateSucceeded, status.State)
	require.NotNil(t, status.AnimationURL)
	assert.Equal(t, "https://signed.test/animations/done.mp4?sig=1", *status.AnimationURL)
	assert.Zero(t, client.polls.Load(), "completed jobs must not reach the provider")

	blobs.signErr = errors.New("signing unavailable")
	status, err = o.Poll(context.Background(), opID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/animations/done.mp4", *status.AnimationURL)
}

func TestPollSucceededWithoutVideos(t *testing.T) {
	steps := newMemSteps(processingStep())
	client := &fakeClient{results: map[string]veo.Result{opID: {State: veo.StateSucceeded}}}
	o := newTestOrchestrator(t, steps, client, newMemBlobs())

	status, err := o.Poll(context.Background(), opID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnimationStateFailed, status.State)
	assert.Equal(t, missingVideoMessage, *status.AnimationError)
}

func TestPollRestoreFailuresPersistFailed(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeClient, *memBlobs)
		want  string
	}{
		{
			name:  "download error",
			setup: func(c *fakeClient, _ *memBlobs) { c.downloadErr = errors.New("veo: download video status 403") },
			want:  "veo: download video status 403",
		},
		{
			name:  "upload error",
			setup: func(_ *fakeClient, b *memBlobs) { b.putErr = errors.New("storage: bucket unavailable") },
			want:  "storage: bucket unavailable",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			steps := newMemSteps(processingStep())
			client := &fakeClient{results: map[string]veo.Result{opID: {State: veo.StateSucceeded, Videos: []veo.Video{{URI: "https://files.test/a"}}}}}
			blobs := newMemBlobs()
			tc.setup(client, blobs)
			o := newTestOrchestrator(t, steps, client, blobs)

			status, err := o.Poll(context.Background(), opID)
			require.NoError(t, err)
			assert.Equal(t, domain.AnimationStateFailed, status.State)
			assert.Equal(t, tc.want, *status.AnimationError)
			assert.Equal(t, domain.AnimationStateFailed, steps.get(1).Animation.State())
		})
	}
}

func TestPollProviderErrorLeavesStepUntouched(t *testing.T) {
	steps := newMemSteps(processingStep())
	client := &fakeClient{pollErr: errors.New("veo status 503: unavailable")}
	o := newTestOrchestrator(t, steps, client, newMemBlobs())

	_, err := o.Poll(context.Background(), opID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unavailable")
	assert.Equal(t, domain.AnimationStateProcessing, steps.get(1).Animation.State())
}

func TestPollLostRaceReportsWinner(t *testing.T) {
	steps := newMemSteps(processingStep())
	steps.beforeTransition = func(m *memSteps) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.steps[1].Animation = domain.AnimationSucceeded(opID, "animations/winner.mp4", "https://cdn.test/animations/winner.mp4")
	}
	client := &fakeClient{results: map[string]veo.Result{opID: {State: veo.StateSucceeded, Videos: []veo.Video{{Data: []byte("v"), MIMEType: "video/mp4"}}}}}
	o := newTestOrchestrator(t, steps, client, newMemBlobs())

	status, err := o.Poll(context.Background(), opID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnimationStateSucceeded, status.State)
	assert.Equal(t, "https://signed.test/animations/winner.mp4?sig=1", *status.AnimationURL)
	assert.Equal(t, "animations/winner.mp4", steps.get(1).Animation.ResultKey())
	assert.Zero(t, steps.transitions)
}

func TestPollConcurrentCallsShareOneExecution(t *testing.T) {
	steps := newMemSteps(processingStep())
	blobs := newMemBlobs()
	client := &fakeClient{
		pollDelay: 50 * time.Millisecond,
		results:   map[string]veo.Result{opID: {State: veo.StateSucceeded, Videos: []veo.Video{{URI: "https://files.test/a"}}}},
	}
	o := newTestOrchestrator(t, steps, client, blobs)

	const callers = 8
	var wg sync.WaitGroup
	statuses := make([]Status, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i], errs[i] = o.Poll(context.Background(), opID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, domain.AnimationStateSucceeded, statuses[i].State)
	}
	assert.Equal(t, 1, blobs.puts, "artifact must be stored once")
	assert.Equal(t, 1, steps.transitions)
}

func TestPollCallerCancellation(t *testing.T) {
	steps := newMemSteps(processingStep())
	client := &fakeClient{pollDelay: 200 * time.Millisecond, results: map[string]veo.Result{opID: {State: veo.StateProcessing}}}
	o := newTestOrchestrator(t, steps, client, newMemBlobs())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := o.Poll(ctx, opID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartBuildsPromptAndSeedsImage(t *testing.T) {
	client := &fakeClient{}
	o := newTestOrchestrator(t, newMemSteps(), client, newMemBlobs())

	op, err := o.Start(context.Background(), StartRequest{
		Step:         StepInput{ID: "s1", Title: "Unpack", Description: "Lay out the parts."},
		Index:        0,
		TotalSteps:   3,
		Context:      PlanContext{RequestSummary: "Bookshelf"},
		Illustration: &veo.Image{MIMEType: "image/png", Data: []byte("png")},
	})
	require.NoError(t, err)
	assert.Equal(t, "operations/new-1", op)
	require.Len(t, client.submitted, 1)
	assert.Contains(t, client.submitted[0].Prompt, "Current step (1/3): Unpack")
	assert.Equal(t, []byte("png"), client.submitted[0].Image.Data)
}

func TestStartSurfacesSubmitError(t *testing.T) {
	client := &fakeClient{submitErr: errors.New("quota exceeded")}
	o := newTestOrchestrator(t, newMemSteps(), client, newMemBlobs())
	_, err := o.Start(context.Background(), StartRequest{Step: StepInput{Title: "x", Description: "y"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func illustratedStep() domain.Step {
	step := processingStep()
	step.Position = 2
	step.IllustrationKey = "plan-illustrations/one.png"
	step.Animation = domain.AnimationFailed(opID, "old failure")
	return step
}

func TestRegenerate(t *testing.T) {
	steps := newMemSteps(illustratedStep(), domain.Step{ID: 2, PlanID: 10}, domain.Step{ID: 3, PlanID: 10})
	steps.summaries[10] = "Bookshelf"
	blobs := newMemBlobs()
	blobs.objects["plan-illustrations/one.png"] = []byte("illustration")
	client := &fakeClient{}
	o := newTestOrchestrator(t, steps, client, blobs)

	op, err := o.Regenerate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "operations/new-1", op)

	stored := steps.get(1).Animation
	assert.Equal(t, domain.AnimationStateProcessing, stored.State())
	assert.Equal(t, op, stored.OperationID())
	assert.Empty(t, stored.Error())

	require.Len(t, client.submitted, 1)
	assert.Contains(t, client.submitted[0].Prompt, "Current step (3/3)")
	assert.Contains(t, client.submitted[0].Prompt, "Overall project: Bookshelf")
	assert.Equal(t, []byte("illustration"), client.submitted[0].Image.Data)
}

func TestRegenerateErrorsDoNotMutate(t *testing.T) {
	tests := []struct {
		name    string
		step    domain.Step
		stepID  int64
		client  *fakeClient
		wantErr error
	}{
		{name: "invalid id", step: illustratedStep(), stepID: 0, client: &fakeClient{}, wantErr: domain.ErrInvalidInput},
		{name: "missing step", step: illustratedStep(), stepID: 99, client: &fakeClient{}, wantErr: domain.ErrNotFound},
		{
			name: "no illustration",
			step: func() domain.Step {
				s := illustratedStep()
				s.IllustrationKey = ""
				return s
			}(),
			stepID:  1,
			client:  &fakeClient{},
			wantErr: domain.ErrNoIllustration,
		},
		{name: "submit failure", step: illustratedStep(), stepID: 1, client: &fakeClient{submitErr: errors.New("quota")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			steps := newMemSteps(tc.step)
			blobs := newMemBlobs()
			blobs.objects["plan-illustrations/one.png"] = []byte("illustration")
			o := newTestOrchestrator(t, steps, tc.client, blobs)

			_, err := o.Regenerate(context.Background(), tc.stepID)
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			stored := steps.get(1).Animation
			assert.Equal(t, domain.AnimationStateFailed, stored.State())
			assert.Equal(t, "old failure", stored.Error())
			assert.Zero(t, steps.resets)
		})
	}
}

func TestGenerate(t *testing.T) {
	steps := newMemSteps(illustratedStep())
	client := &fakeClient{}
	o := newTestOrchestrator(t, steps, client, newMemBlobs())

	op, err := o.Generate(context.Background(), GenerateRequest{Prompt: "  A chair  "})
	require.NoError(t, err)
	assert.Equal(t, "operations/new-1", op)
	assert.Equal(t, "A chair", client.submitted[0].Prompt)
	assert.Zero(t, steps.resets)

	op, err = o.Generate(context.Background(), GenerateRequest{Prompt: "A chair", StepID: 1})
	require.NoError(t, err)
	assert.Equal(t, op, steps.get(1).Animation.OperationID())

	_, err = o.Generate(context.Background(), GenerateRequest{Prompt: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = o.Generate(context.Background(), GenerateRequest{Prompt: "x", StepID: 42})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, client.submitted, 2, "unknown steps are rejected before submission")
}
