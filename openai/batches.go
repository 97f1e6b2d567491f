package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	BatchEndpointChat       = "/v1/chat/completions"
	BatchEndpointEmbeddings = "/v1/embeddings"
	BatchCompletionWindow   = "24h"
)

// BatchLine is one request line of a batch input file.
type BatchLine struct {
	CustomID string `json:"custom_id"`
	Method   string `json:"method"`
	URL      string `json:"url"`
	Body     any    `json:"body"`
}

// BuildBatchInput renders bodies as JSONL for endpoint, assigning each line
// a fresh custom_id. The ids are returned in input order.
func BuildBatchInput(endpoint string, bodies []any) ([]byte, []string, error) {
	if endpoint != BatchEndpointChat && endpoint != BatchEndpointEmbeddings {
		return nil, nil, Validationf("unsupported batch endpoint %q", endpoint)
	}
	if len(bodies) == 0 {
		return nil, nil, Validationf("batch has no requests")
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	ids := make([]string, len(bodies))
	for i, body := range bodies {
		ids[i] = "req-" + uuid.NewString()
		if err := enc.Encode(BatchLine{
			CustomID: ids[i],
			Method:   http.MethodPost,
			URL:      endpoint,
			Body:     body,
		}); err != nil {
			return nil, nil, Unexpected("encode batch line", err)
		}
	}
	return buf.Bytes(), ids, nil
}

func (c *Client) CreateBatch(ctx context.Context, req BatchRequest) (Batch, error) {
	var b Batch
	if req.InputFileID == "" {
		return b, Validationf("input file id is empty")
	}
	if req.Endpoint == "" {
		req.Endpoint = BatchEndpointChat
	}
	if req.CompletionWindow == "" {
		req.CompletionWindow = BatchCompletionWindow
	}
	err := c.Do(ctx, RequestSpec{Method: http.MethodPost, Path: "batches", Body: req}, &b)
	return b, err
}

func (c *Client) GetBatch(ctx context.Context, id string) (Batch, error) {
	var b Batch
	if id == "" {
		return b, Validationf("batch id is empty")
	}
	err := c.Do(ctx, RequestSpec{Method: http.MethodGet, Path: "batches/" + id}, &b)
	return b, err
}

func (c *Client) CancelBatch(ctx context.Context, id string) (Batch, error) {
	var b Batch
	if id == "" {
		return b, Validationf("batch id is empty")
	}
	err := c.Do(ctx, RequestSpec{Method: http.MethodPost, Path: "batches/" + id + "/cancel"}, &b)
	return b, err
}

func (c *Client) ListBatches(ctx context.Context, limit int) (BatchList, error) {
	var list BatchList
	spec := RequestSpec{Method: http.MethodGet, Path: "batches"}
	if limit > 0 {
		spec.Query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	err := c.Do(ctx, spec, &list)
	return list, err
}

// SubmitBatch uploads bodies as a batch input file and starts the batch.
// The returned ids map input positions to custom_ids in the output file.
func (c *Client) SubmitBatch(ctx context.Context, endpoint string, bodies []any, metadata map[string]string) (Batch, []string, error) {
	data, ids, err := BuildBatchInput(endpoint, bodies)
	if err != nil {
		return Batch{}, nil, err
	}
	f, err := c.UploadBytes(ctx, "batch-"+uuid.NewString()+".jsonl", data, PurposeBatch)
	if err != nil {
		return Batch{}, nil, err
	}
	b, err := c.CreateBatch(ctx, BatchRequest{
		InputFileID: f.ID,
		Endpoint:    endpoint,
		Metadata:    metadata,
	})
	if err != nil {
		c.discardFile(ctx, f.ID)
		return Batch{}, nil, err
	}
	return b, ids, nil
}

// discardFile deletes an orphaned upload, outliving ctx's cancellation.
func (c *Client) discardFile(ctx context.Context, fileID string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := c.DeleteFile(dctx, fileID); err != nil {
		c.logger.Warn("unable to delete batch input file", zap.String("file_id", fileID), zap.Error(err))
	}
}
