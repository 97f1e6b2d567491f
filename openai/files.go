package openai

import (
	"context"
	"net/http"
	"net/url"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	PurposeAssistants = "assistants"
	PurposeVision     = "vision"
	PurposeBatch      = "batch"
	PurposeFineTune   = "fine-tune"
	PurposeUserData   = "user_data"
)

var filePurposes = map[string]bool{
	PurposeAssistants: true,
	PurposeVision:     true,
	PurposeBatch:      true,
	PurposeFineTune:   true,
	PurposeUserData:   true,
}

func (c *Client) UploadFile(ctx context.Context, path, purpose string) (goopenai.File, error) {
	var f goopenai.File
	if !filePurposes[purpose] {
		return f, Validationf("unsupported file purpose %q", purpose)
	}
	var allowed []string
	if purpose == PurposeVision {
		allowed = ImageExtensions
	}
	if err := ValidateLocalFile(path, allowed); err != nil {
		return f, err
	}
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodPost,
		Path:   "files",
		Multipart: &Multipart{
			Fields:   map[string]string{"purpose": purpose},
			FilePath: path,
		},
	}, &f)
	return f, err
}

func (c *Client) ListFiles(ctx context.Context, purpose string) (goopenai.FilesList, error) {
	var list goopenai.FilesList
	spec := RequestSpec{Method: http.MethodGet, Path: "files"}
	if purpose != "" {
		spec.Query = url.Values{"purpose": {purpose}}
	}
	err := c.Do(ctx, spec, &list)
	return list, err
}

func (c *Client) GetFile(ctx context.Context, fileID string) (goopenai.File, error) {
	var f goopenai.File
	if fileID == "" {
		return f, Validationf("file id is empty")
	}
	err := c.Do(ctx, RequestSpec{Method: http.MethodGet, Path: "files/" + fileID}, &f)
	return f, err
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if fileID == "" {
		return Validationf("file id is empty")
	}
	var status DeletionStatus
	return c.Do(ctx, RequestSpec{Method: http.MethodDelete, Path: "files/" + fileID}, &status)
}

func (c *Client) GetFileContent(ctx context.Context, fileID string) ([]byte, error) {
	if fileID == "" {
		return nil, Validationf("file id is empty")
	}
	var content []byte
	err := c.Do(ctx, RequestSpec{Method: http.MethodGet, Path: "files/" + fileID + "/content"}, &content)
	return content, err
}

// UploadBytes uploads in-memory content under name.
func (c *Client) UploadBytes(ctx context.Context, name string, data []byte, purpose string) (goopenai.File, error) {
	var f goopenai.File
	if !filePurposes[purpose] {
		return f, Validationf("unsupported file purpose %q", purpose)
	}
	if len(data) == 0 {
		return f, Validationf("upload %s is empty", name)
	}
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodPost,
		Path:   "files",
		Multipart: &Multipart{
			Fields:   map[string]string{"purpose": purpose},
			FileName: name,
			Data:     data,
		},
	}, &f)
	return f, err
}
