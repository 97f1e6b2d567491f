package openai

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func (c *Client) CreateThread(ctx context.Context, req ThreadRequest) (Thread, error) {
	var t Thread
	err := c.Do(ctx, RequestSpec{Method: http.MethodPost, Path: "threads", Body: req}, &t)
	return t, err
}

func (c *Client) GetThread(ctx context.Context, threadID string) (Thread, error) {
	var t Thread
	if threadID == "" {
		return t, Validationf("thread id is empty")
	}
	err := c.Do(ctx, RequestSpec{Method: http.MethodGet, Path: "threads/" + threadID}, &t)
	return t, err
}

func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	if threadID == "" {
		return Validationf("thread id is empty")
	}
	var status DeletionStatus
	return c.Do(ctx, RequestSpec{Method: http.MethodDelete, Path: "threads/" + threadID}, &status)
}

func (c *Client) CreateMessage(ctx context.Context, threadID string, req MessageRequest) (Message, error) {
	var m Message
	if threadID == "" {
		return m, Validationf("thread id is empty")
	}
	if req.Role == "" {
		req.Role = "user"
	}
	if len(req.Content) == 0 {
		return m, Validationf("message has no content")
	}
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodPost,
		Path:   "threads/" + threadID + "/messages",
		Body:   req,
	}, &m)
	return m, err
}

// ListMessages lists thread messages; order is "asc" or "desc".
func (c *Client) ListMessages(ctx context.Context, threadID string, limit int, order string) (MessageList, error) {
	var list MessageList
	if threadID == "" {
		return list, Validationf("thread id is empty")
	}
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if order != "" {
		q.Set("order", order)
	}
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodGet,
		Path:   "threads/" + threadID + "/messages",
		Query:  q,
	}, &list)
	return list, err
}

func (c *Client) CreateRun(ctx context.Context, threadID string, req RunRequest) (Run, error) {
	var r Run
	if threadID == "" {
		return r, Validationf("thread id is empty")
	}
	if req.AssistantID == "" {
		return r, Validationf("assistant id is empty")
	}
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodPost,
		Path:   "threads/" + threadID + "/runs",
		Body:   req,
	}, &r)
	return r, err
}

func (c *Client) RetrieveRun(ctx context.Context, threadID, runID string) (Run, error) {
	var r Run
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodGet,
		Path:   "threads/" + threadID + "/runs/" + runID,
	}, &r)
	return r, err
}

func (c *Client) CancelRun(ctx context.Context, threadID, runID string) (Run, error) {
	var r Run
	err := c.Do(ctx, RequestSpec{
		Method: http.MethodPost,
		Path:   "threads/" + threadID + "/runs/" + runID + "/cancel",
	}, &r)
	return r, err
}

func (c *Client) ListRuns(ctx context.Context, threadID string, limit int) (RunList, error) {
	var list RunList
	spec := RequestSpec{Method: http.MethodGet, Path: "threads/" + threadID + "/runs"}
	if limit > 0 {
		spec.Query = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	err := c.Do(ctx, spec, &list)
	return list, err
}
