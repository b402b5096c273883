// Package dispatcher fans a batch of work items out to a pool of workers and
// streams their completions back in finish order.
package dispatcher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screener/internal/queue/memory"
	"github.com/JakeFAU/batch-screener/internal/screener"
	"github.com/JakeFAU/batch-screener/internal/worker"
)

// Dispatcher owns the queue feeding a fixed set of workers.
type Dispatcher struct {
	queue   *memory.Queue
	workers []*worker.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher. The workers must consume from queue.
func New(queue *memory.Queue, workers []*worker.Worker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		logger:  logger,
	}
}

// Run enqueues items in order, starts all workers, and returns the completion
// stream. The channel is closed once every worker has returned, which happens
// after the queue drains or ctx is cancelled. Callers must drain it.
func (d *Dispatcher) Run(ctx context.Context, items []screener.WorkItem) <-chan worker.Completion {
	out := make(chan worker.Completion, len(d.workers))

	go func() {
		defer d.queue.Close()
		for i, item := range items {
			if err := d.queue.Enqueue(ctx, item); err != nil {
				d.logger.Info("feeding stopped",
					zap.Int("enqueued", i),
					zap.Int("remaining", len(items)-i),
					zap.Error(err),
				)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx, out)
		}(w)
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
