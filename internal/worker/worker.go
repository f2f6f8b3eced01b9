// Package worker implements the job execution loop: dequeue, evaluate,
// deliver.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/structcalc/async-deflection-calculator/internal/deflection"
	"github.com/structcalc/async-deflection-calculator/internal/metrics"
)

// Worker consumes queue items and executes the deflection pipeline. A job runs
// entirely on one worker goroutine with no suspension points: the simulated
// delay, the item loop, and the callback happen back to back.
type Worker struct {
	queue     deflection.Queue
	evaluator deflection.Evaluator
	deliverer deflection.Deliverer
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue deflection.Queue,
	evaluator deflection.Evaluator,
	deliverer deflection.Deliverer,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		evaluator: evaluator,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue
// closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, deflection.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.Int64("beam_deflection_id", item.JobID))
		w.processJob(ctx, item)
	}
}

// processJob runs one job to completion with exactly one delivery attempt.
// The pipeline runs on a context detached from the run loop: a job already
// dequeued finishes and delivers even if Run's context is canceled mid-job.
// A panic escaping the pipeline is recovered so the pool never shrinks; the
// job is dropped and counted.
func (w *Worker) processJob(ctx context.Context, item deflection.QueueItem) {
	ctx = context.WithoutCancel(ctx)
	metrics.WorkerBusy(1)
	defer metrics.WorkerBusy(-1)
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error("job panicked",
				zap.Int64("beam_deflection_id", item.JobID),
				zap.Any("panic", rec),
			)
			metrics.ObserveJob("panicked")
		}
	}()

	result := w.evaluator.Evaluate(item.JobID, item.Items)
	invalid := len(item.Items) - len(result.Items)
	metrics.ObserveItems(len(result.Items), invalid)

	out := w.deliverer.Deliver(ctx, result, item.Callback)
	if out.Delivered() {
		metrics.ObserveJob("delivered")
		metrics.ObserveCallback("delivered")
		w.logger.Info("job completed",
			zap.Int64("beam_deflection_id", item.JobID),
			zap.Bool("within_norm", result.WithinNorm),
			zap.Int("callback_status", out.StatusCode),
		)
		return
	}
	metrics.ObserveJob("callback_failed")
	metrics.ObserveCallback("failed")
	w.logger.Warn("job completed but callback failed",
		zap.Int64("beam_deflection_id", item.JobID),
		zap.String("url", out.URL),
		zap.Int("callback_status", out.StatusCode),
		zap.Error(out.Err),
	)
}
