// Package insights wraps the raw API client with decorated results:
// estimated cost, risk levels, capability flags and per-item bookkeeping
// for chunked and parallel batches.
package insights

import (
	"context"
	"time"

	"github.com/dwgeddes/PoShOpenAI/openai"
	"go.uber.org/zap"
)

const (
	DefaultChunkSize  = 100
	DefaultChunkPause = 50 * time.Millisecond
	DefaultThrottle   = 3
	MaxThrottle       = 10
)

// UsageEntry is what a Recorder receives for every decorated call.
type UsageEntry struct {
	Operation        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCost    float64
	Success          bool
}

type Recorder interface {
	RecordUsage(ctx context.Context, entry UsageEntry) error
}

type Client struct {
	api       *openai.Client
	prices    *PriceTable
	recorder  Recorder
	logger    *zap.Logger
	chunkSize int
	pause     time.Duration
}

type Option func(*Client)

func WithPriceTable(t *PriceTable) Option {
	return func(c *Client) { c.prices = t }
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

func WithChunkSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

func WithChunkPause(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.pause = d
		}
	}
}

func New(api *openai.Client, opts ...Option) *Client {
	c := &Client{
		api:       api,
		prices:    DefaultPriceTable(),
		logger:    api.Logger(),
		chunkSize: DefaultChunkSize,
		pause:     DefaultChunkPause,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) API() *openai.Client {
	return c.api
}

func (c *Client) Prices() *PriceTable {
	return c.prices
}

func (c *Client) record(ctx context.Context, entry UsageEntry) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordUsage(ctx, entry); err != nil {
		c.logger.Warn("unable to record usage", zap.String("operation", entry.Operation), zap.Error(err))
	}
}

// ItemMeta is the bookkeeping every batch record carries.
type ItemMeta struct {
	Index         int    `json:"index"`
	BatchIndex    int    `json:"batch_index"`
	BatchPosition int    `json:"batch_position"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
	Err           error  `json:"-"`
}

func (m *ItemMeta) fail(err error) {
	m.Success = false
	m.Err = err
	m.Error = err.Error()
	m.ErrorKind = string(openai.KindOf(err))
}

// Summary aggregates a batch call.
type Summary struct {
	Items         int     `json:"items"`
	Succeeded     int     `json:"succeeded"`
	Failed        int     `json:"failed"`
	Chunks        int     `json:"chunks"`
	FailedChunks  int     `json:"failed_chunks"`
	PromptTokens  int     `json:"prompt_tokens"`
	EstimatedCost float64 `json:"estimated_cost"`
}

func validateThrottle(n int) (int, error) {
	if n == 0 {
		return DefaultThrottle, nil
	}
	if n < 1 || n > MaxThrottle {
		return 0, openai.Validationf("throttle %d outside [1, %d]", n, MaxThrottle)
	}
	return n, nil
}
