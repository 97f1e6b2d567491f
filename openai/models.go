package openai

import (
	"context"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
)

func (c *Client) ListModels(ctx context.Context) (goopenai.ModelsList, error) {
	var list goopenai.ModelsList
	err := c.Do(ctx, RequestSpec{Method: http.MethodGet, Path: "models"}, &list)
	return list, err
}

func (c *Client) GetModel(ctx context.Context, id string) (goopenai.Model, error) {
	var m goopenai.Model
	if id == "" {
		return m, Validationf("model id is empty")
	}
	err := c.Do(ctx, RequestSpec{Method: http.MethodGet, Path: "models/" + id}, &m)
	return m, err
}
