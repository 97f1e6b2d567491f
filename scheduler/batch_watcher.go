// Package scheduler polls long-running batch jobs in the background.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dwgeddes/PoShOpenAI/openai"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const (
	batchTag = "%s|BATCH"

	MinInterval  = 10 * time.Millisecond
	checkTimeout = 30 * time.Second
)

var ErrAlreadyWatched = errors.New("batch is already being watched")

type BatchGetter interface {
	GetBatch(ctx context.Context, id string) (openai.Batch, error)
}

type Watcher struct {
	gocron.Scheduler
	api    BatchGetter
	logger *zap.Logger

	mu      sync.Mutex
	watched map[string]bool
}

func NewWatcher(api BatchGetter, logger *zap.Logger) (*Watcher, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{
		Scheduler: s,
		api:       api,
		logger:    logger,
		watched:   make(map[string]bool),
	}
	s.Start()
	return w, nil
}

// Watch checks batchID every interval until it reaches a terminal status,
// then removes the job and calls onDone once with the final batch.
func (w *Watcher) Watch(batchID string, interval time.Duration, onDone func(openai.Batch)) error {
	if batchID == "" {
		return openai.Validationf("batch id is empty")
	}
	if interval < MinInterval {
		return openai.Validationf("watch interval %s below %s", interval, MinInterval)
	}

	w.mu.Lock()
	if w.watched[batchID] {
		w.mu.Unlock()
		return ErrAlreadyWatched
	}
	w.watched[batchID] = true
	w.mu.Unlock()

	_, err := w.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(w.check, batchID, onDone),
		gocron.WithTags(makeBatchTag(batchID)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		w.forget(batchID)
		return err
	}
	w.logger.Info("watching batch", zap.String("batch", batchID), zap.Duration("interval", interval))
	return nil
}

func (w *Watcher) check(batchID string, onDone func(openai.Batch)) {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	batch, err := w.api.GetBatch(ctx, batchID)
	if err != nil {
		w.logger.Warn("error retrieving batch", zap.String("batch", batchID), zap.Error(err))
		return
	}
	w.logger.Debug("batch status",
		zap.String("batch", batchID),
		zap.String("status", batch.Status),
		zap.Int("completed", batch.RequestCounts.Completed),
		zap.Int("total", batch.RequestCounts.Total),
	)
	if !batch.Terminal() {
		return
	}
	if !w.forget(batchID) {
		return
	}
	w.RemoveByTags(makeBatchTag(batchID))
	w.logger.Info("batch finished", zap.String("batch", batchID), zap.String("status", batch.Status))
	if onDone != nil {
		onDone(batch)
	}
}

// forget reports whether batchID was still being watched.
func (w *Watcher) forget(batchID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.watched[batchID] {
		return false
	}
	delete(w.watched, batchID)
	return true
}

func (w *Watcher) Watching(batchID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watched[batchID]
}

// Stop abandons a watch without calling its callback.
func (w *Watcher) Stop(batchID string) {
	if w.forget(batchID) {
		w.RemoveByTags(makeBatchTag(batchID))
	}
}

func makeBatchTag(batchID string) string {
	return fmt.Sprintf(batchTag, batchID)
}
