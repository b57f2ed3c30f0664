package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"daily-digest/internal/model"
	"daily-digest/internal/pipeline"

	"github.com/robfig/cron/v3"
)

// BatchRunner runs one digest batch.
type BatchRunner interface {
	RunBatch(ctx context.Context) ([]pipeline.UserResult, error)
}

// Scheduler triggers a batch on a cron schedule. A tick that fires while the
// previous batch is still running is skipped.
type Scheduler struct {
	Spec   string
	Runner BatchRunner

	running atomic.Bool
}

func (s *Scheduler) Name() string { return "scheduler" }

func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.Spec, func() { s.RunNow(ctx) }); err != nil {
		return fmt.Errorf("%w: scheduler spec %q: %v", model.ErrConfiguration, s.Spec, err)
	}
	c.Start()
	slog.Info("scheduler: started", "spec", s.Spec)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// RunNow runs one batch unless one is already running. It reports whether a
// batch ran.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		slog.Warn("scheduler: previous batch still running, skipping tick")
		return false
	}
	defer s.running.Store(false)

	results, err := s.Runner.RunBatch(ctx)
	if err != nil {
		slog.Error("scheduler: batch failed", "err", err)
		return true
	}
	slog.Info("scheduler: batch finished", "users", len(results), "summary", pipeline.Summary(results))
	return true
}
