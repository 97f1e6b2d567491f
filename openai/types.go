package openai

import (
	goopenai "github.com/sashabaranov/go-openai"
)

// Wire types for endpoints whose go-openai shapes don't fit (array message
// content, batch moderation input, map-shaped scores).

type Thread struct {
	ID        string            `json:"id"`
	Object    string            `json:"object"`
	CreatedAt int64             `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type ThreadRequest struct {
	Metadata map[string]string `json:"metadata,omitempty"`
}

type DeletionStatus struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type MessageContent struct {
	Type      string     `json:"type"`
	Text      *Text      `json:"text,omitempty"`
	ImageFile *ImageFile `json:"image_file,omitempty"`
}

type Text struct {
	Value       string `json:"value"`
	Annotations []any  `json:"annotations,omitempty"`
}

type ImageFile struct {
	FileID string `json:"file_id"`
	Detail string `json:"detail,omitempty"`
}

func TextContent(s string) MessageContent {
	return MessageContent{Type: "text", Text: &Text{Value: s}}
}

func ImageFileContent(fileID string) MessageContent {
	return MessageContent{Type: "image_file", ImageFile: &ImageFile{FileID: fileID}}
}

type MessageRequest struct {
	Role     string            `json:"role"`
	Content  []MessageContent  `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Message struct {
	ID          string           `json:"id"`
	Object      string           `json:"object"`
	CreatedAt   int64            `json:"created_at"`
	AssistantID *string          `json:"assistant_id"`
	ThreadID    string           `json:"thread_id"`
	RunID       *string          `json:"run_id"`
	Role        string           `json:"role"`
	Content     []MessageContent `json:"content"`
}

// Text joins every text part of the message.
func (m Message) Text() string {
	var out string
	for _, c := range m.Content {
		if c.Type == "text" && c.Text != nil {
			if out != "" {
				out += "\n"
			}
			out += c.Text.Value
		}
	}
	return out
}

type MessageList struct {
	Object  string    `json:"object"`
	Data    []Message `json:"data"`
	FirstID string    `json:"first_id"`
	LastID  string    `json:"last_id"`
	HasMore bool      `json:"has_more"`
}

type RunRequest struct {
	AssistantID            string   `json:"assistant_id"`
	Model                  string   `json:"model,omitempty"`
	Instructions           string   `json:"instructions,omitempty"`
	AdditionalInstructions string   `json:"additional_instructions,omitempty"`
	Temperature            *float32 `json:"temperature,omitempty"`
}

type RunLastError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RunUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Run struct {
	ID             string             `json:"id"`
	Object         string             `json:"object"`
	CreatedAt      int64              `json:"created_at"`
	AssistantID    string             `json:"assistant_id"`
	ThreadID       string             `json:"thread_id"`
	Status         goopenai.RunStatus `json:"status"`
	RequiredAction *RequiredAction    `json:"required_action,omitempty"`
	LastError      *RunLastError      `json:"last_error"`
	StartedAt      *int64             `json:"started_at"`
	ExpiresAt      *int64             `json:"expires_at"`
	CancelledAt    *int64             `json:"cancelled_at"`
	FailedAt       *int64             `json:"failed_at"`
	CompletedAt    *int64             `json:"completed_at"`
	Model          string             `json:"model"`
	Instructions   string             `json:"instructions"`
	Usage          *RunUsage          `json:"usage"`
}

type RequiredAction struct {
	Type              string `json:"type"`
	SubmitToolOutputs struct {
		ToolCalls []goopenai.ToolCall `json:"tool_calls"`
	} `json:"submit_tool_outputs"`
}

type RunList struct {
	Object  string `json:"object"`
	Data    []Run  `json:"data"`
	HasMore bool   `json:"has_more"`
}

type ModerationRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model,omitempty"`
}

type ModerationResult struct {
	Flagged        bool               `json:"flagged"`
	Categories     map[string]bool    `json:"categories"`
	CategoryScores map[string]float64 `json:"category_scores"`
}

type ModerationResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Results []ModerationResult `json:"results"`
}

type BatchRequest struct {
	InputFileID      string            `json:"input_file_id"`
	Endpoint         string            `json:"endpoint"`
	CompletionWindow string            `json:"completion_window"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type BatchRequestCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

type Batch struct {
	ID               string             `json:"id"`
	Object           string             `json:"object"`
	Endpoint         string             `json:"endpoint"`
	InputFileID      string             `json:"input_file_id"`
	CompletionWindow string             `json:"completion_window"`
	Status           string             `json:"status"`
	OutputFileID     string             `json:"output_file_id,omitempty"`
	ErrorFileID      string             `json:"error_file_id,omitempty"`
	CreatedAt        int64              `json:"created_at"`
	CompletedAt      *int64             `json:"completed_at,omitempty"`
	RequestCounts    BatchRequestCounts `json:"request_counts"`
	Metadata         map[string]string  `json:"metadata,omitempty"`
}

const (
	BatchStatusValidating = "validating"
	BatchStatusInProgress = "in_progress"
	BatchStatusFinalizing = "finalizing"
	BatchStatusCompleted  = "completed"
	BatchStatusFailed     = "failed"
	BatchStatusExpired    = "expired"
	BatchStatusCancelling = "cancelling"
	BatchStatusCancelled  = "cancelled"
)

func (b Batch) Terminal() bool {
	switch b.Status {
	case BatchStatusCompleted, BatchStatusFailed, BatchStatusExpired, BatchStatusCancelled:
		return true
	}
	return false
}

type BatchList struct {
	Object  string  `json:"object"`
	Data    []Batch `json:"data"`
	HasMore bool    `json:"has_more"`
}

type Transcription struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}
