// Package dispatcher manages worker fan-out over the job queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/structcalc/async-deflection-calculator/internal/deflection"
	"github.com/structcalc/async-deflection-calculator/internal/worker"
)

// Dispatcher fans out queue work to a fixed pool of workers. It is built once
// by the composition root and injected wherever jobs are submitted, so tests
// can substitute an inline pool.
type Dispatcher struct {
	queue   deflection.Queue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue deflection.Queue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until the context finishes and every
// worker has drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Enqueue proxies to the underlying queue. Submission never waits for a
// worker; the admission path returns as soon as the job is queued.
func (d *Dispatcher) Enqueue(ctx context.Context, item deflection.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Size reports the fixed worker pool size.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}
