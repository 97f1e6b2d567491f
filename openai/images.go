package openai

import (
	"context"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
)

var imageSizes = []string{
	goopenai.CreateImageSize256x256,
	goopenai.CreateImageSize512x512,
	goopenai.CreateImageSize1024x1024,
	goopenai.CreateImageSize1792x1024,
	goopenai.CreateImageSize1024x1792,
}

func ValidateImageRequest(req goopenai.ImageRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return Validationf("image prompt is empty")
	}
	if req.N < 0 || req.N > 10 {
		return Validationf("n %d outside [1, 10]", req.N)
	}
	if req.Model == goopenai.CreateImageModelDallE3 && req.N > 1 {
		return Validationf("%s only supports n=1", req.Model)
	}
	if req.Size != "" {
		ok := false
		for _, s := range imageSizes {
			if req.Size == s {
				ok = true
				break
			}
		}
		if !ok {
			return Validationf("unsupported image size %q", req.Size)
		}
	}
	return nil
}

func (c *Client) CreateImage(ctx context.Context, req goopenai.ImageRequest) (goopenai.ImageResponse, error) {
	var resp goopenai.ImageResponse
	if req.Model == "" {
		req.Model = goopenai.CreateImageModelDallE3
	}
	if req.N == 0 {
		req.N = 1
	}
	if req.Size == "" {
		req.Size = goopenai.CreateImageSize1024x1024
	}
	if req.ResponseFormat == "" {
		req.ResponseFormat = goopenai.CreateImageResponseFormatURL
	}
	if err := ValidateImageRequest(req); err != nil {
		return resp, err
	}
	c.logger.Sugar().Debugw("generating image", "model", req.Model, "size", req.Size)
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodPost,
		Path:   "images/generations",
		Body:   req,
	}, &resp)
	return resp, err
}
