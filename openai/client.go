package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// RequestSpec describes one API call. Exactly one of Body or Multipart is
// used; a spec with neither sends no body.
type RequestSpec struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any
	Multipart *Multipart
}

// Client is the request executor. It is safe for concurrent use once
// configured; credentials are read from a lock-free snapshot on every call.
type Client struct {
	creds   *CredentialStore
	cfg     atomic.Pointer[Config]
	http    *http.Client
	logger  *zap.Logger
	metrics *Metrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func WithCredentials(s *CredentialStore) Option {
	return func(c *Client) { c.creds = s }
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		creds:  NewCredentialStore(),
		logger: zap.NewNop(),
	}
	c.cfg.Store(&cfg)
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	return c, nil
}

func (c *Client) Config() Config {
	return *c.cfg.Load()
}

// SetConfig validates and installs cfg for subsequent requests. Requests
// already in flight keep the configuration they started with.
func (c *Client) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg.Store(&cfg)
	return nil
}

func (c *Client) Logger() *zap.Logger {
	return c.logger
}

func (c *Client) Credentials() *CredentialStore {
	return c.creds
}

// SetCredential replaces the API key. Call it before issuing concurrent
// requests.
func (c *Client) SetCredential(token, organization string) {
	c.creds.Set(token, organization)
}

// Snapshot returns a copy of the client pinned to the current credential and
// configuration. Later SetCredential calls on c do not affect the copy.
func (c *Client) Snapshot() *Client {
	pinned := NewCredentialStore()
	pinned.current.Store(c.creds.Snapshot())
	clone := &Client{
		creds:   pinned,
		http:    c.http,
		logger:  c.logger,
		metrics: c.metrics,
	}
	clone.cfg.Store(c.cfg.Load())
	return clone
}

// Do performs a single attempt of spec and decodes the response into out.
// out may be nil, a *[]byte for raw bodies, or any JSON target.
func (c *Client) Do(ctx context.Context, spec RequestSpec, out any) error {
	cred := c.creds.Snapshot()
	if !cred.Valid() {
		return ErrAuthenticationMissing
	}

	cfg := c.cfg.Load()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := newRequest(ctx, cfg.BaseURL, spec)
	if err != nil {
		return err
	}
	cred.withToken(func(token []byte) {
		addHeaders(req, token, cred.Organization)
	})
	if isAssistantsPath(spec.Path) && cfg.AssistantsVersion != "" {
		req.Header.Set("OpenAI-Beta", cfg.AssistantsVersion)
	}

	label := routeLabel(spec.Path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		cerr := classifyTransport(ctx, err)
		c.metrics.observe(label, 0, cerr.Kind, time.Since(start))
		c.logger.Warn("openai request failed",
			zap.String("method", spec.Method),
			zap.String("path", spec.Path),
			zap.Error(cerr),
		)
		return cerr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.observe(label, resp.StatusCode, "", time.Since(start))
	if err != nil {
		return classifyTransport(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rerr := remoteError(resp, body)
		c.logger.Warn("openai returned error status",
			zap.String("method", spec.Method),
			zap.String("path", spec.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", rerr.Message),
		)
		return rerr
	}

	c.logger.Debug("openai request",
		zap.String("method", spec.Method),
		zap.String("path", spec.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	switch dst := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*dst = body
		return nil
	default:
		if len(body) == 0 {
			return nil
		}
		if err := json.Unmarshal(body, dst); err != nil {
			return Unexpected("decode response from "+spec.Path, err)
		}
		return nil
	}
}

func newRequest(ctx context.Context, baseURL string, spec RequestSpec) (*http.Request, error) {
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(spec.Path, "/")
	if len(spec.Query) > 0 {
		endpoint += "?" + spec.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case spec.Multipart != nil:
		buf, ct, err := spec.Multipart.encode()
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	case spec.Body != nil:
		payload, err := json.Marshal(spec.Body)
		if err != nil {
			return nil, Unexpected("encode request for "+spec.Path, err)
		}
		body, contentType = bytes.NewReader(payload), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, Unexpected("build request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func addHeaders(req *http.Request, token []byte, organization string) {
	req.Header.Set("Authorization", "Bearer "+string(token))
	if organization != "" {
		req.Header.Set("OpenAI-Organization", organization)
	}
}

func isAssistantsPath(path string) bool {
	p := strings.TrimLeft(path, "/")
	return strings.HasPrefix(p, "assistants") || strings.HasPrefix(p, "threads")
}

func classifyTransport(ctx context.Context, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	return Unexpected("transport failure", err)
}

// remoteError extracts the message from the structured error envelope,
// falling back to the raw body and finally the status text.
func remoteError(resp *http.Response, body []byte) *Error {
	e := &Error{
		Kind:       KindRemoteRequestFailed,
		StatusCode: resp.StatusCode,
	}
	var envelope goopenai.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		e.Message = envelope.Error.Message
		e.Type = envelope.Error.Type
		if envelope.Error.Code != nil {
			e.Code = fmt.Sprint(envelope.Error.Code)
		}
		return e
	}
	if raw := strings.TrimSpace(string(body)); raw != "" {
		e.Message = raw
		return e
	}
	e.Message = http.StatusText(resp.StatusCode)
	return e
}

// routeLabel collapses resource ids so metrics labels stay bounded.
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		for _, prefix := range []string{"thread_", "run_", "asst_", "msg_", "batch_", "file-", "step_"} {
			if strings.HasPrefix(p, prefix) {
				parts[i] = "{id}"
				break
			}
		}
	}
	return strings.Join(parts, "/")
}
