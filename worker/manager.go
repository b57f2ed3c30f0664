package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Worker runs until ctx is done. A non-nil error stops the manager.
type Worker interface {
	Name() string
	Start(ctx context.Context) error
}

// Manager starts and supervises a set of workers.
type Manager struct {
	workers []Worker
}

func NewManager(ws ...Worker) *Manager {
	return &Manager{workers: ws}
}

// Start runs every worker and blocks until ctx is done or a worker fails.
// A failing worker cancels the others; its error is returned after all have
// exited.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var once sync.Once
	var first error
	for _, w := range m.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			slog.Info("worker: started", "worker", w.Name())
			err := w.Start(ctx)
			if err != nil {
				slog.Error("worker: stopped with error", "worker", w.Name(), "err", err)
				once.Do(func() {
					first = err
					cancel()
				})
				return
			}
			slog.Info("worker: stopped", "worker", w.Name())
		}(w)
	}
	wg.Wait()
	return first
}
