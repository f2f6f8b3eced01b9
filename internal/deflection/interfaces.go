package deflection

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by queue operations after Close; workers treat it
// as the drain-and-exit signal.
var ErrQueueClosed = errors.New("queue closed")

// Queue provides enqueue/dequeue semantics for deflection jobs.
type Queue interface {
	Enqueue(ctx context.Context, job QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Evaluator turns a submitted batch into a JobResult.
type Evaluator interface {
	Evaluate(jobID int64, items []any) JobResult
}

// Deliverer pushes a JobResult to its callback target. Failures are reported
// in the DeliveryResult, never raised.
type Deliverer interface {
	Deliver(ctx context.Context, result JobResult, target CallbackTarget) DeliveryResult
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper models the simulated processing delay so tests can skip it.
type Sleeper interface {
	Sleep(d time.Duration)
}
