// Package ledger keeps a local sqlite record of API usage and assistant
// runs.
package ledger

import (
	"context"
	"time"

	"github.com/dwgeddes/PoShOpenAI/insights"
	"github.com/dwgeddes/PoShOpenAI/openai"
	goopenai "github.com/sashabaranov/go-openai"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDSN = "poshopenai.db"

type UsageRecord struct {
	ID               uint `gorm:"primaryKey"`
	Operation        string
	Model            string `gorm:"index"`
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	EstimatedCost    float64
	Success          bool
	CreatedAt        time.Time `gorm:"index"`
}

type RunRecord struct {
	ID          string `gorm:"primaryKey"`
	ThreadID    string
	AssistantID string
	Model       string
	Status      goopenai.RunStatus
	LastError   string
	TotalTokens int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ModelUsage is one row of UsageByModel.
type ModelUsage struct {
	Model         string
	Calls         int
	TotalTokens   int
	EstimatedCost float64
}

type DB struct {
	*gorm.DB
}

// NewDB opens (creating if needed) the sqlite database at dsn. Use
// a temporary path for a throwaway ledger.
func NewDB(dsn string) (*DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&UsageRecord{}, &RunRecord{}); err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

func (db *DB) RecordUsage(ctx context.Context, e insights.UsageEntry) error {
	return db.WithContext(ctx).Create(&UsageRecord{
		Operation:        e.Operation,
		Model:            e.Model,
		PromptTokens:     e.PromptTokens,
		CompletionTokens: e.CompletionTokens,
		TotalTokens:      e.TotalTokens,
		EstimatedCost:    e.EstimatedCost,
		Success:          e.Success,
	}).Error
}

// SaveRun upserts the latest known state of run.
func (db *DB) SaveRun(ctx context.Context, run openai.Run) error {
	rec := RunRecord{
		ID:          run.ID,
		ThreadID:    run.ThreadID,
		AssistantID: run.AssistantID,
		Model:       run.Model,
		Status:      run.Status,
	}
	if run.CreatedAt > 0 {
		rec.CreatedAt = time.Unix(run.CreatedAt, 0)
	}
	if run.LastError != nil {
		rec.LastError = run.LastError.Message
	}
	if run.Usage != nil {
		rec.TotalTokens = run.Usage.TotalTokens
	}
	return db.WithContext(ctx).Save(&rec).Error
}

func (db *DB) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	var rec RunRecord
	err := db.WithContext(ctx).First(&rec, "id = ?", id).Error
	return &rec, err
}

// TotalCost sums estimated cost recorded at or after since.
func (db *DB) TotalCost(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := db.WithContext(ctx).Model(&UsageRecord{}).
		Where("created_at >= ?", since).
		Select("COALESCE(SUM(estimated_cost), 0)").
		Scan(&total).Error
	return total, err
}

func (db *DB) UsageByModel(ctx context.Context, since time.Time) ([]ModelUsage, error) {
	var rows []ModelUsage
	err := db.WithContext(ctx).Model(&UsageRecord{}).
		Select("model, COUNT(*) AS calls, SUM(total_tokens) AS total_tokens, SUM(estimated_cost) AS estimated_cost").
		Where("created_at >= ?", since).
		Group("model").
		Order("model").
		Scan(&rows).Error
	return rows, err
}
