package orchestrator

import (
	"context"
	"time"

	"github.com/dwgeddes/PoShOpenAI/insights"
	"github.com/dwgeddes/PoShOpenAI/openai"
	"go.uber.org/zap"
)

type State string

const (
	StateCreated     State = "Created"
	StatePolling     State = "Polling"
	StateNeedsAction State = "NeedsAction"
	StateCompleted   State = "Completed"
	StateFailed      State = "Failed"
	StateCancelled   State = "Cancelled"
	StateExpired     State = "Expired"
	StateTimedOut    State = "TimedOut"
)

func (s State) Terminal() bool {
	return s != StateCreated && s != StatePolling
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Outcome is the result of one interaction. Success is true only for
// StateCompleted with a response message.
type Outcome struct {
	State          State                 `json:"state"`
	Success        bool                  `json:"success"`
	Text           string                `json:"text,omitempty"`
	Error          string                `json:"error,omitempty"`
	ThreadID       string                `json:"thread_id"`
	RunID          string                `json:"run_id,omitempty"`
	Model          string                `json:"model,omitempty"`
	Usage          Usage                 `json:"usage"`
	EstimatedCost  float64               `json:"estimated_cost"`
	CreatedAt      time.Time             `json:"created_at"`
	StartedAt      time.Time             `json:"started_at"`
	CompletedAt    time.Time             `json:"completed_at"`
	ProcessingTime time.Duration         `json:"processing_time"`
	Capabilities   insights.Capabilities `json:"capabilities"`
	Attached       []string              `json:"attached,omitempty"`
	Cleanup        CleanupReport         `json:"cleanup"`
}

func (out *Outcome) applyRun(run openai.Run, prices *insights.PriceTable) {
	out.Model = run.Model
	out.Capabilities = insights.ModelCapabilities(run.Model)
	if run.CreatedAt > 0 {
		out.CreatedAt = time.Unix(run.CreatedAt, 0)
	}
	if run.StartedAt != nil {
		out.StartedAt = time.Unix(*run.StartedAt, 0)
	}
	if run.CompletedAt != nil {
		out.CompletedAt = time.Unix(*run.CompletedAt, 0)
	}
	if !out.StartedAt.IsZero() && !out.CompletedAt.IsZero() {
		out.ProcessingTime = out.CompletedAt.Sub(out.StartedAt)
	}
	if run.Usage != nil {
		out.Usage = Usage{
			PromptTokens:     run.Usage.PromptTokens,
			CompletionTokens: run.Usage.CompletionTokens,
			TotalTokens:      run.Usage.TotalTokens,
		}
		if prices != nil {
			out.EstimatedCost, _ = prices.EstimateCost(run.Model, out.Usage.PromptTokens, out.Usage.CompletionTokens)
		}
	}
}

// CleanupReport records what teardown attempted. Failures are logged and
// listed here; they never change the interaction's result.
type CleanupReport struct {
	ThreadID      string           `json:"thread_id,omitempty"`
	ThreadDeleted bool             `json:"thread_deleted"`
	FilesDeleted  []string         `json:"files_deleted,omitempty"`
	Failures      []CleanupFailure `json:"failures,omitempty"`
}

type CleanupFailure struct {
	Resource string `json:"resource"`
	ID       string `json:"id"`
	Error    string `json:"error"`
}

func (r CleanupReport) Clean() bool {
	return len(r.Failures) == 0
}

// cleanup deletes uploaded files and, when threadID is set, the thread. It
// runs on a context detached from the caller so a cancelled interaction
// still tears down.
func (o *Orchestrator) cleanup(ctx context.Context, log *zap.Logger, threadID string, fileIDs []string) CleanupReport {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	var report CleanupReport
	for _, id := range fileIDs {
		if err := o.api.DeleteFile(ctx, id); err != nil {
			log.Warn("unable to delete uploaded file", zap.String("file", id), zap.Error(err))
			report.Failures = append(report.Failures, CleanupFailure{Resource: "file", ID: id, Error: err.Error()})
			continue
		}
		report.FilesDeleted = append(report.FilesDeleted, id)
	}
	if threadID != "" {
		report.ThreadID = threadID
		if err := o.api.DeleteThread(ctx, threadID); err != nil {
			log.Warn("unable to delete thread", zap.String("thread", threadID), zap.Error(err))
			report.Failures = append(report.Failures, CleanupFailure{Resource: "thread", ID: threadID, Error: err.Error()})
		} else {
			report.ThreadDeleted = true
		}
	}
	return report
}
