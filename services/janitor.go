package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"knowledgebase-platform/internal/logger"
)

// StaleReaper fails out documents stuck in pending.
type StaleReaper interface {
	FailStalePending(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Janitor periodically fails documents whose ingestion never completed, for
// example after a worker crash that skipped the status finalizer. The queue's
// own retries cover everything short of process death, so the deadline is
// deliberately generous.
type Janitor struct {
	scheduler *gocron.Scheduler
	store     StaleReaper
	olderThan time.Duration
	interval  time.Duration
}

func NewJanitor(store StaleReaper, olderThan, interval time.Duration) *Janitor {
	return &Janitor{
		scheduler: gocron.NewScheduler(time.UTC),
		store:     store,
		olderThan: olderThan,
		interval:  interval,
	}
}

// Start schedules the reaper and runs the scheduler in the background.
func (j *Janitor) Start() error {
	_, err := j.scheduler.Every(j.interval).Do(j.sweep)
	if err != nil {
		return err
	}

	j.scheduler.StartAsync()
	logger.Info("stale-pending janitor started",
		"older_than", j.olderThan.String(), "interval", j.interval.String())
	return nil
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reaped, err := j.store.FailStalePending(ctx, j.olderThan)
	if err != nil {
		logger.Error("stale-pending sweep failed", "error", err)
		return
	}
	if reaped > 0 {
		logger.Info("failed stale pending documents", "count", reaped)
	}
}
