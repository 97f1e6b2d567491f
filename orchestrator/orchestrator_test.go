package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dwgeddes/PoShOpenAI/insights"
	"github.com/dwgeddes/PoShOpenAI/openai"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu sync.Mutex

	statuses    []goopenai.RunStatus
	final       openai.Run
	reply       string
	failUploads map[string]bool
	deleteErr   error
	fileErr     error
	messageErr  error
	runErr      error

	threadsCreated int
	threadsDeleted []string
	filesDeleted   []string
	messages       []openai.MessageRequest
	cancels        int
	retrieves      int
}

func (f *fakeAPI) CreateThread(context.Context, openai.ThreadRequest) (openai.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threadsCreated++
	return openai.Thread{ID: "thread_new"}, nil
}

func (f *fakeAPI) DeleteThread(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.threadsDeleted = append(f.threadsDeleted, id)
	return nil
}

func (f *fakeAPI) UploadFile(_ context.Context, path, purpose string) (goopenai.File, error) {
	if f.failUploads[filepath.Base(path)] {
		return goopenai.File{}, &openai.Error{Kind: openai.KindRemoteRequestFailed, Message: "upload rejected", StatusCode: 400}
	}
	return goopenai.File{ID: "file-" + strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), Purpose: purpose}, nil
}

func (f *fakeAPI) DeleteFile(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fileErr != nil {
		return f.fileErr
	}
	f.filesDeleted = append(f.filesDeleted, id)
	return nil
}

func (f *fakeAPI) CreateMessage(_ context.Context, threadID string, req openai.MessageRequest) (openai.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messageErr != nil {
		return openai.Message{}, f.messageErr
	}
	f.messages = append(f.messages, req)
	return openai.Message{ID: "msg_1", ThreadID: threadID}, nil
}

func (f *fakeAPI) ListMessages(_ context.Context, threadID string, limit int, order string) (openai.MessageList, error) {
	return openai.MessageList{Data: []openai.Message{{
		ID:      "msg_2",
		Role:    "assistant",
		Content: []openai.MessageContent{openai.TextContent(f.reply)},
	}}}, nil
}

func (f *fakeAPI) CreateRun(_ context.Context, threadID string, req openai.RunRequest) (openai.Run, error) {
	if f.runErr != nil {
		return openai.Run{}, f.runErr
	}
	return openai.Run{ID: "run_1", ThreadID: threadID, AssistantID: req.AssistantID, Status: goopenai.RunStatusQueued}, nil
}

func (f *fakeAPI) RetrieveRun(_ context.Context, threadID, runID string) (openai.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := f.final
	run.ID, run.ThreadID = runID, threadID
	if f.retrieves < len(f.statuses) {
		run.Status = f.statuses[f.retrieves]
	}
	f.retrieves++
	return run, nil
}

func (f *fakeAPI) CancelRun(_ context.Context, threadID, runID string) (openai.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return openai.Run{ID: runID, Status: goopenai.RunStatusCancelling}, nil
}

type memoryRuns struct {
	mu   sync.Mutex
	runs []openai.Run
}

func (m *memoryRuns) SaveRun(_ context.Context, run openai.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func int64p(v int64) *int64 { return &v }

func completedRun() openai.Run {
	return openai.Run{
		Status:      goopenai.RunStatusCompleted,
		Model:       "gpt-4o-2024-08-06",
		CreatedAt:   1_700_000_000,
		StartedAt:   int64p(1_700_000_001),
		CompletedAt: int64p(1_700_000_004),
		Usage:       &openai.RunUsage{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
	}
}

func writeImage(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("img"), 0o644))
	return p
}

func TestInteractCompleted(t *testing.T) {
	api := &fakeAPI{
		statuses: []goopenai.RunStatus{goopenai.RunStatusInProgress, goopenai.RunStatusCompleted},
		final:    completedRun(),
		reply:    "A cat on a windowsill.",
	}
	runs := &memoryRuns{}
	o := New(api, WithRunStore(runs))

	out, err := o.interact(context.Background(), Interaction{AssistantID: "asst_1", Text: "what is this?"}, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, out.State)
	assert.True(t, out.Success)
	assert.Equal(t, "A cat on a windowsill.", out.Text)
	assert.Equal(t, "thread_new", out.ThreadID)
	assert.Equal(t, "run_1", out.RunID)
	assert.Equal(t, 1500, out.Usage.TotalTokens)
	assert.Equal(t, 3*time.Second, out.ProcessingTime)
	assert.InDelta(t, 0.0075, out.EstimatedCost, 1e-12)
	assert.True(t, out.Capabilities.Vision)

	assert.True(t, out.Cleanup.ThreadDeleted)
	assert.True(t, out.Cleanup.Clean())
	assert.Equal(t, []string{"thread_new"}, api.threadsDeleted)
	assert.Zero(t, api.cancels)
	require.Len(t, runs.runs, 1)
	assert.Equal(t, goopenai.RunStatusCompleted, runs.runs[0].Status)
}

func TestInteractTimeoutCancelsOnce(t *testing.T) {
	api := &fakeAPI{final: openai.Run{Status: goopenai.RunStatusInProgress}}
	o := New(api)

	out, err := o.interact(context.Background(), Interaction{AssistantID: "asst_1", Text: "slow"}, 5*time.Millisecond, 60*time.Millisecond)
	require.Error(t, err)
	assert.True(t, openai.IsKind(err, openai.KindTimeout))
	require.NotNil(t, out)
	assert.Equal(t, StateTimedOut, out.State)
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Error)
	assert.Equal(t, 1, api.cancels)
	assert.Greater(t, api.retrieves, 0)
	assert.True(t, out.Cleanup.ThreadDeleted)
}

func TestInteractCallerCancel(t *testing.T) {
	api := &fakeAPI{final: openai.Run{Status: goopenai.RunStatusQueued}}
	o := New(api)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)
	out, err := o.interact(ctx, Interaction{AssistantID: "asst_1", Text: "hi"}, 5*time.Millisecond, time.Second)
	require.Error(t, err)
	assert.Equal(t, StateCancelled, out.State)
	assert.Equal(t, 1, api.cancels)
	assert.True(t, out.Cleanup.ThreadDeleted, "cleanup runs on a detached context")
}

func TestInteractCleanupFailureKeepsResult(t *testing.T) {
	api := &fakeAPI{
		statuses:  []goopenai.RunStatus{goopenai.RunStatusCompleted},
		final:     completedRun(),
		reply:     "done",
		deleteErr: errors.New("thread delete refused"),
	}
	o := New(api)

	out, err := o.interact(context.Background(), Interaction{AssistantID: "asst_1", Text: "hi"}, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "done", out.Text)
	assert.False(t, out.Cleanup.ThreadDeleted)
	require.Len(t, out.Cleanup.Failures, 1)
	assert.Equal(t, "thread", out.Cleanup.Failures[0].Resource)
	assert.Equal(t, "thread_new", out.Cleanup.Failures[0].ID)
}

func TestInteractExistingThreadIsKept(t *testing.T) {
	api := &fakeAPI{
		statuses: []goopenai.RunStatus{goopenai.RunStatusCompleted},
		final:    completedRun(),
		reply:    "ok",
	}
	o := New(api)

	out, err := o.interact(context.Background(), Interaction{AssistantID: "asst_1", Text: "hi", ThreadID: "thread_mine"}, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "thread_mine", out.ThreadID)
	assert.Zero(t, api.threadsCreated)
	assert.Empty(t, api.threadsDeleted)
	assert.False(t, out.Cleanup.ThreadDeleted)
}

func TestInteractSkipsFailedUploads(t *testing.T) {
	good := writeImage(t, "good.png")
	bad := writeImage(t, "bad.jpg")
	api := &fakeAPI{
		statuses:    []goopenai.RunStatus{goopenai.RunStatusCompleted},
		final:       completedRun(),
		reply:       "one image",
		failUploads: map[string]bool{"bad.jpg": true},
	}
	o := New(api)

	out, err := o.interact(context.Background(), Interaction{AssistantID: "asst_1", Text: "describe", ImagePaths: []string{good, bad}}, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, []string{"file-good"}, out.Attached)
	assert.Equal(t, []string{"file-good"}, out.Cleanup.FilesDeleted)

	require.Len(t, api.messages, 1)
	content := api.messages[0].Content
	require.Len(t, content, 2)
	assert.Equal(t, "text", content[0].Type)
	assert.Equal(t, "image_file", content[1].Type)
	assert.Equal(t, "file-good", content[1].ImageFile.FileID)
}

func TestInteractCleansUpAfterLaterFailure(t *testing.T) {
	img := writeImage(t, "chart.png")
	tests := []struct {
		name string
		api  *fakeAPI
	}{
		{"message", &fakeAPI{messageErr: &openai.Error{Kind: openai.KindRemoteRequestFailed, Message: "thread locked", StatusCode: 409}}},
		{"run", &fakeAPI{runErr: &openai.Error{Kind: openai.KindRemoteRequestFailed, Message: "assistant not found", StatusCode: 404}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(tt.api)

			out, err := o.interact(context.Background(), Interaction{AssistantID: "asst_1", Text: "read this", ImagePaths: []string{img}}, 5*time.Millisecond, time.Second)
			require.Error(t, err)
			assert.True(t, openai.IsKind(err, openai.KindRemoteRequestFailed))
			require.NotNil(t, out)
			assert.False(t, out.Success)
			assert.NotEmpty(t, out.Error)
			assert.Equal(t, []string{"file-chart"}, out.Cleanup.FilesDeleted)
			assert.True(t, out.Cleanup.ThreadDeleted)
			assert.Equal(t, []string{"file-chart"}, tt.api.filesDeleted)
			assert.Zero(t, tt.api.retrieves)
		})
	}
}

func TestInteractFileCleanupFailureKeepsResult(t *testing.T) {
	img := writeImage(t, "photo.jpg")
	api := &fakeAPI{
		statuses: []goopenai.RunStatus{goopenai.RunStatusCompleted},
		final:    completedRun(),
		reply:    "a photo",
		fileErr:  errors.New("file delete refused"),
	}
	o := New(api)

	out, err := o.interact(context.Background(), Interaction{AssistantID: "asst_1", Text: "what is it?", ImagePaths: []string{img}}, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "a photo", out.Text)
	assert.Empty(t, out.Cleanup.FilesDeleted)
	assert.True(t, out.Cleanup.ThreadDeleted)
	require.Len(t, out.Cleanup.Failures, 1)
	assert.Equal(t, "file", out.Cleanup.Failures[0].Resource)
	assert.Equal(t, "file-photo", out.Cleanup.Failures[0].ID)
	assert.Contains(t, out.Cleanup.Failures[0].Error, "refused")
}

func TestInteractAllUploadsFailWithoutText(t *testing.T) {
	bad := writeImage(t, "bad.png")
	api := &fakeAPI{failUploads: map[string]bool{"bad.png": true}}
	o := New(api)

	out, err := o.interact(context.Background(), Interaction{AssistantID: "asst_1", ImagePaths: []string{bad}}, 5*time.Millisecond, time.Second)
	assert.True(t, openai.IsKind(err, openai.KindValidationFailed))
	assert.False(t, out.Success)
	assert.Empty(t, api.messages)
	assert.True(t, out.Cleanup.ThreadDeleted)
}

func TestInteractNeedsAction(t *testing.T) {
	api := &fakeAPI{final: openai.Run{Status: goopenai.RunStatusRequiresAction}}
	o := New(api)

	out, err := o.interact(context.Background(), Interaction{AssistantID: "asst_1", Text: "call a tool"}, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateNeedsAction, out.State)
	assert.True(t, out.State.Terminal())
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "tool outputs")
	assert.Zero(t, api.cancels)
}

func TestInteractRunFailed(t *testing.T) {
	api := &fakeAPI{final: openai.Run{
		Status:    goopenai.RunStatusFailed,
		LastError: &openai.RunLastError{Code: "server_error", Message: "boom"},
	}}
	o := New(api)

	out, err := o.interact(context.Background(), Interaction{AssistantID: "asst_1", Text: "hi"}, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, out.State)
	assert.False(t, out.Success)
	assert.Equal(t, "server_error: boom", out.Error)
}

func TestRunValidatesBeforeNetwork(t *testing.T) {
	api := &fakeAPI{}
	o := New(api)

	tests := []Interaction{
		{AssistantID: "asst_1", Text: "hi", PollInterval: 500 * time.Millisecond},
		{AssistantID: "asst_1", Text: "hi", MaxWait: 5 * time.Second},
		{AssistantID: "asst_1", Text: "hi", MaxWait: time.Hour},
		{AssistantID: "", Text: "hi"},
		{AssistantID: "asst_1"},
		{AssistantID: "asst_1", ImagePaths: []string{"/does/not/exist.png"}},
	}
	for _, in := range tests {
		_, err := o.Run(context.Background(), in)
		assert.True(t, openai.IsKind(err, openai.KindValidationFailed), "%+v", in)
	}
	assert.Zero(t, api.threadsCreated)
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status goopenai.RunStatus
		state  State
		done   bool
	}{
		{goopenai.RunStatusQueued, StatePolling, false},
		{goopenai.RunStatusInProgress, StatePolling, false},
		{goopenai.RunStatusCancelling, StatePolling, false},
		{goopenai.RunStatusRequiresAction, StateNeedsAction, true},
		{goopenai.RunStatusCompleted, StateCompleted, true},
		{goopenai.RunStatusFailed, StateFailed, true},
		{"incomplete", StateFailed, true},
		{goopenai.RunStatusCancelled, StateCancelled, true},
		{goopenai.RunStatusExpired, StateExpired, true},
		{"something_new", StateFailed, true},
	}
	for _, tt := range tests {
		state, done := classify(tt.status)
		assert.Equal(t, tt.state, state, string(tt.status))
		assert.Equal(t, tt.done, done, string(tt.status))
	}
}

func TestRecorderReceivesRunUsage(t *testing.T) {
	api := &fakeAPI{
		statuses: []goopenai.RunStatus{goopenai.RunStatusCompleted},
		final:    completedRun(),
		reply:    "ok",
	}
	rec := &usageSink{}
	o := New(api, WithRecorder(rec))

	_, err := o.interact(context.Background(), Interaction{AssistantID: "asst_1", Text: "hi"}, 5*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "assistant_run", rec.entries[0].Operation)
	assert.Equal(t, 1500, rec.entries[0].TotalTokens)
	assert.True(t, rec.entries[0].Success)
}

type usageSink struct {
	entries []insights.UsageEntry
}

func (u *usageSink) RecordUsage(_ context.Context, e insights.UsageEntry) error {
	u.entries = append(u.entries, e)
	return nil
}
