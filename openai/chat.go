package openai

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

// NewChatRequest builds a request from the configured defaults.
func (c *Client) NewChatRequest(messages ...goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	cfg := c.Config()
	return goopenai.ChatCompletionRequest{
		Model:       cfg.DefaultModel,
		Messages:    messages,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}

func ValidateChatRequest(req goopenai.ChatCompletionRequest) error {
	if len(req.Messages) == 0 {
		return Validationf("chat request has no messages")
	}
	if err := ValidateTemperature(req.Temperature); err != nil {
		return err
	}
	if err := ValidatePenalty("presence_penalty", req.PresencePenalty); err != nil {
		return err
	}
	if err := ValidatePenalty("frequency_penalty", req.FrequencyPenalty); err != nil {
		return err
	}
	if req.TopP < 0 || req.TopP > 1 {
		return Validationf("top_p %.2f outside [0, 1]", req.TopP)
	}
	if req.MaxTokens < 0 || req.MaxTokens > MaxMaxTokens {
		return Validationf("max_tokens %d outside [1, %d]", req.MaxTokens, MaxMaxTokens)
	}
	return nil
}

func (c *Client) CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	var resp goopenai.ChatCompletionResponse
	if req.Model == "" {
		req.Model = c.Config().DefaultModel
	}
	if err := ValidateChatRequest(req); err != nil {
		return resp, err
	}
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodPost,
		Path:   "chat/completions",
		Body:   req,
	}, &resp)
	return resp, err
}

// VisionMessage builds a user message carrying text plus local images
// inlined as data URLs.
func VisionMessage(text string, imagePaths []string) (goopenai.ChatCompletionMessage, error) {
	msg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}
	if err := ValidateImagePaths(imagePaths); err != nil {
		return msg, err
	}
	if text != "" {
		msg.MultiContent = append(msg.MultiContent, goopenai.ChatMessagePart{
			Type: goopenai.ChatMessagePartTypeText,
			Text: text,
		})
	}
	for _, p := range imagePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			return msg, Validationf("read %s: %v", p, err)
		}
		msg.MultiContent = append(msg.MultiContent, goopenai.ChatMessagePart{
			Type: goopenai.ChatMessagePartTypeImageURL,
			ImageURL: &goopenai.ChatMessageImageURL{
				URL:    "data:" + imageMIME(p) + ";base64," + base64.StdEncoding.EncodeToString(data),
				Detail: goopenai.ImageURLDetailAuto,
			},
		})
	}
	return msg, nil
}

func imageMIME(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
