package insights

import (
	"context"
	"strings"
	"time"

	"github.com/dwgeddes/PoShOpenAI/openai"
	goopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

type ChatOptions struct {
	Model            string
	System           string
	MaxTokens        int
	Temperature      *float32
	PresencePenalty  float32
	FrequencyPenalty float32
	ImagePaths       []string
}

type ChatRecord struct {
	Input string `json:"input"`
	ItemMeta
	Response         string        `json:"response,omitempty"`
	FinishReason     string        `json:"finish_reason,omitempty"`
	Model            string        `json:"model,omitempty"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	EstimatedCost    float64       `json:"estimated_cost"`
	Duration         time.Duration `json:"duration"`
	Capabilities     Capabilities  `json:"capabilities"`
}

func buildChatRequest(api *openai.Client, prompt string, opts ChatOptions) (goopenai.ChatCompletionRequest, error) {
	var messages []goopenai.ChatCompletionMessage
	if opts.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: opts.System,
		})
	}
	if len(opts.ImagePaths) > 0 {
		msg, err := openai.VisionMessage(prompt, opts.ImagePaths)
		if err != nil {
			return goopenai.ChatCompletionRequest{}, err
		}
		messages = append(messages, msg)
	} else {
		if strings.TrimSpace(prompt) == "" {
			return goopenai.ChatCompletionRequest{}, openai.Validationf("prompt is empty")
		}
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleUser,
			Content: prompt,
		})
	}

	req := api.NewChatRequest(messages...)
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	req.PresencePenalty = opts.PresencePenalty
	req.FrequencyPenalty = opts.FrequencyPenalty
	if len(opts.ImagePaths) > 0 && !IsVisionModel(req.Model) {
		return req, openai.Validationf("model %s does not accept images", req.Model)
	}
	return req, openai.ValidateChatRequest(req)
}

// Chat sends a single prompt and returns the decorated record. Validation
// errors are returned before any request is made.
func (c *Client) Chat(ctx context.Context, prompt string, opts ChatOptions) (ChatRecord, error) {
	return c.chat(ctx, c.api, prompt, opts)
}

func (c *Client) chat(ctx context.Context, api *openai.Client, prompt string, opts ChatOptions) (ChatRecord, error) {
	rec := ChatRecord{Input: prompt}
	req, err := buildChatRequest(api, prompt, opts)
	if err != nil {
		rec.fail(err)
		return rec, err
	}

	start := time.Now()
	resp, err := api.CreateChatCompletion(ctx, req)
	rec.Duration = time.Since(start)
	if err != nil {
		rec.fail(err)
		c.record(ctx, UsageEntry{Operation: "chat", Model: req.Model})
		return rec, err
	}
	return c.decorateChat(ctx, rec, resp), nil
}

func (c *Client) decorateChat(ctx context.Context, rec ChatRecord, resp goopenai.ChatCompletionResponse) ChatRecord {
	rec.Success = true
	rec.Model = resp.Model
	if len(resp.Choices) > 0 {
		rec.Response = resp.Choices[0].Message.Content
		rec.FinishReason = string(resp.Choices[0].FinishReason)
	}
	rec.PromptTokens = resp.Usage.PromptTokens
	rec.CompletionTokens = resp.Usage.CompletionTokens
	rec.TotalTokens = resp.Usage.TotalTokens
	rec.EstimatedCost, _ = c.prices.EstimateCost(resp.Model, rec.PromptTokens, rec.CompletionTokens)
	rec.Capabilities = ModelCapabilities(resp.Model)
	c.record(ctx, UsageEntry{
		Operation:        "chat",
		Model:            resp.Model,
		PromptTokens:     rec.PromptTokens,
		CompletionTokens: rec.CompletionTokens,
		TotalTokens:      rec.TotalTokens,
		EstimatedCost:    rec.EstimatedCost,
		Success:          true,
	})
	return rec
}

// ChatParallel sends every prompt as an independent completion with at most
// throttle requests in flight. Every worker uses the same pinned snapshot
// of credentials and configuration. Failures become per-item records.
func (c *Client) ChatParallel(ctx context.Context, prompts []string, opts ChatOptions, throttle int) ([]ChatRecord, error) {
	throttle, err := validateThrottle(throttle)
	if err != nil {
		return nil, err
	}
	api := c.api.Snapshot()
	records := make([]ChatRecord, len(prompts))

	g := new(errgroup.Group)
	g.SetLimit(throttle)
	for i, prompt := range prompts {
		i, prompt := i, prompt
		g.Go(func() error {
			rec, _ := c.chat(ctx, api, prompt, opts)
			rec.Index = i
			rec.BatchIndex = i
			records[i] = rec
			return nil
		})
	}
	_ = g.Wait()
	return records, nil
}
