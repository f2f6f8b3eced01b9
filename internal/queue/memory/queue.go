// Package memory provides the in-process job queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/structcalc/async-deflection-calculator/internal/deflection"
)

// Queue is an unbounded FIFO queue with context-aware dequeue. Enqueue never
// blocks: submission carries no backpressure signal, a busy pool just grows
// the backlog.
type Queue struct {
	mu     sync.Mutex
	items  []deflection.QueueItem
	signal chan struct{}
	done   chan struct{}
	closed bool
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Enqueue appends a job to the backlog.
func (q *Queue) Enqueue(ctx context.Context, job deflection.QueueItem) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return deflection.ErrQueueClosed
	}
	q.items = append(q.items, job)
	q.mu.Unlock()
	q.wake()
	return nil
}

// Dequeue pops the oldest job, blocking until one arrives, the context ends,
// or the queue closes with an empty backlog.
func (q *Queue) Dequeue(ctx context.Context) (deflection.QueueItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			q.wake()
			return item, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return deflection.QueueItem{}, deflection.ErrQueueClosed
		}
		select {
		case <-ctx.Done():
			return deflection.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.signal:
		case <-q.done:
		}
	}
}

// Len reports the current backlog size.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes blocked dequeuers. Pending items are
// still drained before dequeuers see the closed error.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
