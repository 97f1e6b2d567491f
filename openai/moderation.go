package openai

import (
	"context"
	"net/http"
)

const DefaultModerationModel = "omni-moderation-latest"

func (c *Client) CreateModeration(ctx context.Context, req ModerationRequest) (ModerationResponse, error) {
	var resp ModerationResponse
	if len(req.Input) == 0 {
		return resp, Validationf("no moderation inputs")
	}
	if req.Model == "" {
		req.Model = DefaultModerationModel
	}
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodPost,
		Path:   "moderations",
		Body:   req,
	}, &resp)
	return resp, err
}
