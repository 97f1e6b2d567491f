package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/dwgeddes/PoShOpenAI/openai"
	"go.uber.org/zap"
)

type ModerationRecord struct {
	Input string `json:"input"`
	ItemMeta
	Model          string             `json:"model,omitempty"`
	Flagged        bool               `json:"flagged"`
	Categories     []string           `json:"categories,omitempty"`
	TopCategory    string             `json:"top_category,omitempty"`
	MaxScore       float64            `json:"max_score"`
	RiskLevel      string             `json:"risk_level,omitempty"`
	RequiresReview bool               `json:"requires_review"`
	Scores         map[string]float64 `json:"scores,omitempty"`
}

// DecorateModeration derives the risk fields for one remote result.
func DecorateModeration(input string, r openai.ModerationResult) ModerationRecord {
	top, score := TopCategory(r.CategoryScores)
	return ModerationRecord{
		Input:          input,
		ItemMeta:       ItemMeta{Success: true},
		Flagged:        r.Flagged,
		Categories:     FlaggedCategories(r.Categories),
		TopCategory:    top,
		MaxScore:       score,
		RiskLevel:      RiskLevel(score, r.Flagged),
		RequiresReview: RequiresReview(score, r.Flagged),
		Scores:         r.CategoryScores,
	}
}

// ModerateBatch moderates inputs in chunks. It always returns one record per
// input; a failed chunk marks only its own items as failed.
func (c *Client) ModerateBatch(ctx context.Context, inputs []string, model string) ([]ModerationRecord, Summary) {
	records := make([]ModerationRecord, len(inputs))
	sum := Summary{Items: len(inputs)}

	eachChunk(ctx, len(inputs), c.chunkSize, c.pause, func(s Span) {
		sum.Chunks++
		var (
			sent  []string
			slots []int
		)
		for i := s.Start; i < s.End; i++ {
			records[i] = ModerationRecord{
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

		resp, err := c.api.CreateModeration(ctx, openai.ModerationRequest{Input: sent, Model: model})
		if err == nil && len(resp.Results) != len(sent) {
			err = openai.Unexpected(fmt.Sprintf("moderation returned %d results for %d inputs", len(resp.Results), len(sent)), nil)
		}
		if err != nil {
			sum.FailedChunks++
			c.logger.Warn("moderation chunk failed", zap.Int("chunk", s.Batch), zap.Int("items", len(sent)), zap.Error(err))
			perr := openai.PartialBatch(s.Batch, err)
			for _, i := range slots {
				records[i].fail(perr)
			}
			return
		}
		for j, i := range slots {
			meta := records[i].ItemMeta
			records[i] = DecorateModeration(inputs[i], resp.Results[j])
			meta.Success = true
			records[i].ItemMeta = meta
			records[i].Model = resp.Model
		}
		c.record(ctx, UsageEntry{Operation: "moderation", Model: resp.Model, Success: true})
	})

	for _, r := range records {
		if r.Success {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	return records, sum
}
