package openai

import (
	"context"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
)

const DefaultEmbeddingModel = goopenai.SmallEmbedding3

// CreateEmbeddings embeds inputs in one request. Chunking lives in the
// insights package.
func (c *Client) CreateEmbeddings(ctx context.Context, inputs []string, model goopenai.EmbeddingModel) (goopenai.EmbeddingResponse, error) {
	var resp goopenai.EmbeddingResponse
	if len(inputs) == 0 {
		return resp, Validationf("no embedding inputs")
	}
	if model == "" {
		model = DefaultEmbeddingModel
	}
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodPost,
		Path:   "embeddings",
		Body: goopenai.EmbeddingRequest{
			Input: inputs,
			Model: model,
		},
	}, &resp)
	return resp, err
}
