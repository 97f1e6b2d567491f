// Package orchestrator drives a single assistant interaction: thread,
// image uploads, message, run, polling to a terminal state, and cleanup of
// whatever it created.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dwgeddes/PoShOpenAI/insights"
	"github.com/dwgeddes/PoShOpenAI/openai"
	"github.com/google/uuid"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 2 * time.Second
	MinPollInterval     = 1 * time.Second
	MaxPollInterval     = 10 * time.Second
	DefaultMaxWait      = 60 * time.Second
	MinMaxWait          = 10 * time.Second
	MaxMaxWait          = 600 * time.Second

	cleanupTimeout = 30 * time.Second
)

// API is the subset of *openai.Client the orchestrator needs.
type API interface {
	CreateThread(ctx context.Context, req openai.ThreadRequest) (openai.Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
	UploadFile(ctx context.Context, path, purpose string) (goopenai.File, error)
	DeleteFile(ctx context.Context, fileID string) error
	CreateMessage(ctx context.Context, threadID string, req openai.MessageRequest) (openai.Message, error)
	ListMessages(ctx context.Context, threadID string, limit int, order string) (openai.MessageList, error)
	CreateRun(ctx context.Context, threadID string, req openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (openai.Run, error)
	CancelRun(ctx context.Context, threadID, runID string) (openai.Run, error)
}

// RunStore persists the final state of every run.
type RunStore interface {
	SaveRun(ctx context.Context, run openai.Run) error
}

type Orchestrator struct {
	api      API
	logger   *zap.Logger
	runs     RunStore
	recorder insights.Recorder
	prices   *insights.PriceTable
}

type Option func(*Orchestrator)

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithRunStore(s RunStore) Option {
	return func(o *Orchestrator) { o.runs = s }
}

func WithRecorder(r insights.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithPriceTable(t *insights.PriceTable) Option {
	return func(o *Orchestrator) { o.prices = t }
}

func New(api API, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:    api,
		logger: zap.NewNop(),
		prices: insights.DefaultPriceTable(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Interaction describes one message to an assistant. A non-empty ThreadID
// reuses that thread, which is then never deleted.
type Interaction struct {
	AssistantID            string
	Text                   string
	ImagePaths             []string
	ThreadID               string
	Model                  string
	AdditionalInstructions string
	PollInterval           time.Duration
	MaxWait                time.Duration
}

func (in Interaction) waits() (time.Duration, time.Duration, error) {
	poll, maxWait := in.PollInterval, in.MaxWait
	if poll == 0 {
		poll = DefaultPollInterval
	}
	if maxWait == 0 {
		maxWait = DefaultMaxWait
	}
	if poll < MinPollInterval || poll > MaxPollInterval {
		return 0, 0, openai.Validationf("poll interval %s outside [%s, %s]", poll, MinPollInterval, MaxPollInterval)
	}
	if maxWait < MinMaxWait || maxWait > MaxMaxWait {
		return 0, 0, openai.Validationf("max wait %s outside [%s, %s]", maxWait, MinMaxWait, MaxMaxWait)
	}
	return poll, maxWait, nil
}

func (in Interaction) validate() error {
	if strings.TrimSpace(in.AssistantID) == "" {
		return openai.Validationf("assistant id is empty")
	}
	if strings.TrimSpace(in.Text) == "" && len(in.ImagePaths) == 0 {
		return openai.Validationf("interaction has neither text nor images")
	}
	return openai.ValidateImagePaths(in.ImagePaths)
}

// Run executes one interaction. Terminal run failures are reported through
// Outcome with a nil error; the error is reserved for validation, request
// failures before polling, and timeouts.
func (o *Orchestrator) Run(ctx context.Context, in Interaction) (*Outcome, error) {
	poll, maxWait, err := in.waits()
	if err != nil {
		return nil, err
	}
	return o.interact(ctx, in, poll, maxWait)
}

func (o *Orchestrator) interact(ctx context.Context, in Interaction, poll, maxWait time.Duration) (out *Outcome, err error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	log := o.logger.With(zap.String("interaction", uuid.NewString()), zap.String("assistant", in.AssistantID))
	out = &Outcome{State: StateCreated, ThreadID: in.ThreadID}
	owned := in.ThreadID == ""
	var uploaded []string

	defer func() {
		threadToDelete := ""
		if owned {
			threadToDelete = out.ThreadID
		}
		out.Cleanup = o.cleanup(ctx, log, threadToDelete, uploaded)
		if err != nil && out.Error == "" {
			out.Error = err.Error()
		}
	}()

	if owned {
		thread, err := o.api.CreateThread(ctx, openai.ThreadRequest{})
		if err != nil {
			log.Error("unable to create thread", zap.Error(err))
			return out, err
		}
		out.ThreadID = thread.ID
		log.Info("created thread", zap.String("thread", thread.ID))
	}

	for _, p := range in.ImagePaths {
		f, err := o.api.UploadFile(ctx, p, openai.PurposeVision)
		if err != nil {
			log.Warn("skipping image, upload failed", zap.String("path", p), zap.Error(err))
			continue
		}
		uploaded = append(uploaded, f.ID)
	}
	out.Attached = append([]string(nil), uploaded...)

	var content []openai.MessageContent
	if strings.TrimSpace(in.Text) != "" {
		content = append(content, openai.TextContent(in.Text))
	}
	for _, id := range uploaded {
		content = append(content, openai.ImageFileContent(id))
	}
	if len(content) == 0 {
		return out, openai.Validationf("no image could be uploaded and no text was given")
	}

	if _, err := o.api.CreateMessage(ctx, out.ThreadID, openai.MessageRequest{Role: goopenai.ChatMessageRoleUser, Content: content}); err != nil {
		log.Error("unable to create message", zap.Error(err))
		return out, err
	}

	run, err := o.api.CreateRun(ctx, out.ThreadID, openai.RunRequest{
		AssistantID:            in.AssistantID,
		Model:                  in.Model,
		AdditionalInstructions: in.AdditionalInstructions,
	})
	if err != nil {
		log.Error("unable to create run", zap.Error(err))
		return out, err
	}
	out.RunID = run.ID
	log = log.With(zap.String("run", run.ID))
	log.Info("run created", zap.String("status", string(run.Status)))

	out.State = StatePolling
	run, state, err := o.poll(ctx, log, out.ThreadID, run, poll, maxWait)
	out.State = state
	out.applyRun(run, o.prices)
	o.saveRun(ctx, log, run)
	if err != nil {
		return out, err
	}

	switch state {
	case StateCompleted:
		msgs, err := o.api.ListMessages(ctx, out.ThreadID, 1, "desc")
		if err != nil {
			log.Error("unable to fetch response message", zap.Error(err))
			return out, err
		}
		if len(msgs.Data) == 0 {
			return out, openai.Unexpected("run completed without a response message", nil)
		}
		out.Text = msgs.Data[0].Text()
		out.Success = true
		log.Info("received response", zap.Int("total_tokens", out.Usage.TotalTokens))
	case StateNeedsAction:
		log.Warn("run requires tool outputs, which are not handled; stopping")
		out.Error = "run requires tool outputs"
	default:
		out.Error = runErrorMessage(run)
		log.Warn("run did not complete", zap.String("state", string(state)), zap.String("error", out.Error))
	}

	if o.recorder != nil && run.Usage != nil {
		if rerr := o.recorder.RecordUsage(ctx, insights.UsageEntry{
			Operation:        "assistant_run",
			Model:            run.Model,
			PromptTokens:     run.Usage.PromptTokens,
			CompletionTokens: run.Usage.CompletionTokens,
			TotalTokens:      run.Usage.TotalTokens,
			EstimatedCost:    out.EstimatedCost,
			Success:          out.Success,
		}); rerr != nil {
			log.Warn("unable to record usage", zap.Error(rerr))
		}
	}
	return out, nil
}

// poll waits for run to leave its non-terminal states. Retrieval errors are
// logged and polling continues until maxWait elapses, at which point one
// cancel request is sent.
func (o *Orchestrator) poll(ctx context.Context, log *zap.Logger, threadID string, run openai.Run, interval, maxWait time.Duration) (openai.Run, State, error) {
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prevStatus := run.Status
	for {
		if state, done := classify(run.Status); done {
			return run, state, nil
		}

		select {
		case <-ctx.Done():
			o.cancelRun(ctx, log, threadID, run.ID)
			return run, StateCancelled, openai.Unexpected("interaction cancelled", ctx.Err())
		case <-deadline.C:
			o.cancelRun(ctx, log, threadID, run.ID)
			return run, StateTimedOut, &openai.Error{
				Kind:    openai.KindTimeout,
				Message: fmt.Sprintf("run %s did not finish within %s", run.ID, maxWait),
			}
		case <-ticker.C:
		}

		r, err := o.api.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			log.Warn("error retrieving run", zap.Error(err))
			continue
		}
		run = r
		if prevStatus != run.Status {
			log.Debug("run status", zap.String("status", string(run.Status)))
			prevStatus = run.Status
		}
	}
}

func classify(status goopenai.RunStatus) (State, bool) {
	switch status {
	case goopenai.RunStatusQueued, goopenai.RunStatusInProgress, goopenai.RunStatusCancelling:
		return StatePolling, false
	case goopenai.RunStatusRequiresAction:
		return StateNeedsAction, true
	case goopenai.RunStatusCompleted:
		return StateCompleted, true
	case goopenai.RunStatusFailed, "incomplete":
		return StateFailed, true
	case goopenai.RunStatusCancelled:
		return StateCancelled, true
	case goopenai.RunStatusExpired:
		return StateExpired, true
	default:
		return StateFailed, true
	}
}

func (o *Orchestrator) cancelRun(ctx context.Context, log *zap.Logger, threadID, runID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if _, err := o.api.CancelRun(cctx, threadID, runID); err != nil {
		log.Warn("unable to cancel run", zap.Error(err))
		return
	}
	log.Info("cancelled run")
}

func (o *Orchestrator) saveRun(ctx context.Context, log *zap.Logger, run openai.Run) {
	if o.runs == nil || run.ID == "" {
		return
	}
	if err := o.runs.SaveRun(ctx, run); err != nil {
		log.Warn("unable to save run", zap.Error(err))
	}
}

func runErrorMessage(run openai.Run) string {
	if run.LastError != nil && run.LastError.Message != "" {
		if run.LastError.Code != "" {
			return fmt.Sprintf("%s: %s", run.LastError.Code, run.LastError.Message)
		}
		return run.LastError.Message
	}
	return fmt.Sprintf("run ended with status %s", run.Status)
}
