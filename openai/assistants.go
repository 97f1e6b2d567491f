package openai

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	goopenai "github.com/sashabaranov/go-openai"
)

func (c *Client) CreateAssistant(ctx context.Context, req goopenai.AssistantRequest) (goopenai.Assistant, error) {
	var a goopenai.Assistant
	if req.Model == "" {
		req.Model = c.Config().DefaultModel
	}
	err := c.Do(ctx, RequestSpec{Method: http.MethodPost, Path: "assistants", Body: req}, &a)
	return a, err
}

func (c *Client) GetAssistant(ctx context.Context, id string) (goopenai.Assistant, error) {
	var a goopenai.Assistant
	if id == "" {
		return a, Validationf("assistant id is empty")
	}
	err := c.Do(ctx, RequestSpec{Method: http.MethodGet, Path: "assistants/" + id}, &a)
	return a, err
}

func (c *Client) ListAssistants(ctx context.Context, limit int) (goopenai.AssistantsList, error) {
	var list goopenai.AssistantsList
	spec := RequestSpec{Method: http.MethodGet, Path: "assistants"}
	if limit > 0 {
		spec.Query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	err := c.Do(ctx, spec, &list)
	return list, err
}

func (c *Client) DeleteAssistant(ctx context.Context, id string) error {
	if id == "" {
		return Validationf("assistant id is empty")
	}
	var status DeletionStatus
	return c.Do(ctx, RequestSpec{Method: http.MethodDelete, Path: "assistants/" + id}, &status)
}
