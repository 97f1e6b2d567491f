package insights

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/dwgeddes/PoShOpenAI/openai"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type EmbeddingRecord struct {
	Input string `json:"input"`
	ItemMeta
	Model      string    `json:"model,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Dimensions int       `json:"dimensions"`
}

// EmbedBatch embeds inputs in chunks, one request per chunk.
func (c *Client) EmbedBatch(ctx context.Context, inputs []string, model goopenai.EmbeddingModel) ([]EmbeddingRecord, Summary) {
	records := make([]EmbeddingRecord, len(inputs))
	sum := Summary{Items: len(inputs)}
	if model == "" {
		model = openai.DefaultEmbeddingModel
	}

	eachChunk(ctx, len(inputs), c.chunkSize, c.pause, func(s Span) {
		sum.Chunks++
		var (
			sent  []string
			slots []int
		)
		for i := s.Start; i < s.End; i++ {
			records[i] = EmbeddingRecord{
				Input:    inputs[i],
				ItemMeta: ItemMeta{Index: i, BatchIndex: s.Batch, BatchPosition: i - s.Start},
			}
			if strings.TrimSpace(inputs[i]) == "" {
				records[i].fail(openai.Validationf("input %d is empty", i))
				continue
			}
			sent = append(sent, inputs[i])
			slots = append(slots, i)
		}
		if len(sent) == 0 {
			return
		}

		resp, err := c.api.CreateEmbeddings(ctx, sent, model)
		if err == nil && len(resp.Data) != len(sent) {
			err = openai.Unexpected(fmt.Sprintf("embeddings returned %d vectors for %d inputs", len(resp.Data), len(sent)), nil)
		}
		if err != nil {
			sum.FailedChunks++
			c.logger.Warn("embedding chunk failed", zap.Int("chunk", s.Batch), zap.Error(err))
			perr := openai.PartialBatch(s.Batch, err)
			for _, i := range slots {
				records[i].fail(perr)
			}
			return
		}

		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(slots) {
				continue
			}
			r := &records[slots[d.Index]]
			r.Success = true
			r.Model = string(resp.Model)
			r.Embedding = d.Embedding
			r.Dimensions = len(d.Embedding)
		}
		cost, _ := c.prices.EstimateCost(string(resp.Model), resp.Usage.PromptTokens, 0)
		sum.PromptTokens += resp.Usage.PromptTokens
		sum.EstimatedCost += cost
		c.record(ctx, UsageEntry{
			Operation:     "embeddings",
			Model:         string(resp.Model),
			PromptTokens:  resp.Usage.PromptTokens,
			TotalTokens:   resp.Usage.TotalTokens,
			EstimatedCost: cost,
			Success:       true,
		})
	})

	for i := range records {
		if records[i].Success {
			sum.Succeeded++
			continue
		}
		if records[i].Err == nil {
			records[i].fail(openai.Unexpected("no embedding returned for input", nil))
		}
		sum.Failed++
	}
	sum.EstimatedCost = roundCost(sum.EstimatedCost)
	return records, sum
}

// EmbedParallel embeds every input with its own request, at most throttle
// in flight. Results keep input order.
func (c *Client) EmbedParallel(ctx context.Context, inputs []string, model goopenai.EmbeddingModel, throttle int) ([]EmbeddingRecord, error) {
	throttle, err := validateThrottle(throttle)
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = openai.DefaultEmbeddingModel
	}
	api := c.api.Snapshot()
	records := make([]EmbeddingRecord, len(inputs))

	g := new(errgroup.Group)
	g.SetLimit(throttle)
	for i, input := range inputs {
		i, input := i, input
		g.Go(func() error {
			rec := EmbeddingRecord{Input: input, ItemMeta: ItemMeta{Index: i, BatchIndex: i}}
			resp, err := api.CreateEmbeddings(ctx, []string{input}, model)
			if err == nil && len(resp.Data) == 0 {
				err = openai.Unexpected("no embedding returned for input", nil)
			}
			if err != nil {
				rec.fail(err)
				records[i] = rec
				return nil
			}
			rec.Success = true
			rec.Model = string(resp.Model)
			rec.Embedding = resp.Data[0].Embedding
			rec.Dimensions = len(rec.Embedding)
			records[i] = rec
			cost, _ := c.prices.EstimateCost(rec.Model, resp.Usage.PromptTokens, 0)
			c.record(ctx, UsageEntry{
				Operation:     "embeddings",
				Model:         rec.Model,
				PromptTokens:  resp.Usage.PromptTokens,
				TotalTokens:   resp.Usage.TotalTokens,
				EstimatedCost: cost,
				Success:       true,
			})
			return nil
		})
	}
	_ = g.Wait()
	return records, nil
}

// CosineSimilarity returns 0 for mismatched or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
