package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/structcalc/async-deflection-calculator/internal/deflection"
	queueMemory "github.com/structcalc/async-deflection-calculator/internal/queue/memory"
)

type fakeEvaluator struct {
	mu         sync.Mutex
	calls      []int64
	panic      bool
	onEvaluate func()
}

func (e *fakeEvaluator) Evaluate(jobID int64, items []any) deflection.JobResult {
	e.mu.Lock()
	e.calls = append(e.calls, jobID)
	e.mu.Unlock()
	if e.onEvaluate != nil {
		e.onEvaluate()
	}
	if e.panic {
		panic("aggregation bug")
	}
	results := make([]deflection.ItemResult, 0, len(items))
	for i := range items {
		results = append(results, deflection.ItemResult{BeamID: int64(i + 1), DeflectionMm: 1})
	}
	return deflection.JobResult{JobID: jobID, WithinNorm: true, Items: results}
}

type fakeDeliverer struct {
	mu      sync.Mutex
	results []deflection.JobResult
	targets []deflection.CallbackTarget
	ctxErrs []error
	status  int
	done    chan struct{}
}

func (d *fakeDeliverer) Deliver(ctx context.Context, result deflection.JobResult, target deflection.CallbackTarget) deflection.DeliveryResult {
	d.mu.Lock()
	d.results = append(d.results, result)
	d.targets = append(d.targets, target)
	d.ctxErrs = append(d.ctxErrs, ctx.Err())
	d.mu.Unlock()
	if d.done != nil {
		d.done <- struct{}{}
	}
	return deflection.DeliveryResult{StatusCode: d.status}
}

func TestWorkerProcessesJobAndDelivers(t *testing.T) {
	t.Parallel()

	q := queueMemory.NewQueue()
	ev := &fakeEvaluator{}
	del := &fakeDeliverer{status: 200, done: make(chan struct{}, 1)}
	w := New(q, ev, del, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	item := deflection.QueueItem{
		JobID:    42,
		Items:    []any{map[string]any{}},
		Callback: deflection.CallbackTarget{URL: "https://hook.example.com", AuthToken: "tok"},
	}
	require.NoError(t, q.Enqueue(ctx, item))

	select {
	case <-del.done:
	case <-time.After(time.Second):
		t.Fatal("worker did not deliver the result")
	}

	del.mu.Lock()
	defer del.mu.Unlock()
	require.Equal(t, []int64{42}, ev.calls)
	require.Len(t, del.results, 1)
	require.Equal(t, int64(42), del.results[0].JobID)
	require.Equal(t, "https://hook.example.com", del.targets[0].URL)
	require.Equal(t, "tok", del.targets[0].AuthToken)
}

func TestWorkerSurvivesPanic(t *testing.T) {
	t.Parallel()

	q := queueMemory.NewQueue()
	ev := &fakeEvaluator{panic: true}
	del := &fakeDeliverer{status: 200}
	w := New(q, ev, del, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.NoError(t, q.Enqueue(ctx, deflection.QueueItem{JobID: 1}))
	require.NoError(t, q.Enqueue(ctx, deflection.QueueItem{JobID: 2}))

	require.Eventually(t, func() bool {
		ev.mu.Lock()
		defer ev.mu.Unlock()
		return len(ev.calls) == 2
	}, time.Second, 10*time.Millisecond, "worker stopped processing after a panic")

	// No delivery happens for panicked jobs.
	del.mu.Lock()
	require.Empty(t, del.results)
	del.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
}

func TestWorkerStopsWhenQueueCloses(t *testing.T) {
	t.Parallel()

	q := queueMemory.NewQueue()
	w := New(q, &fakeEvaluator{}, &fakeDeliverer{status: 200}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	q.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after queue close")
	}
}

func TestWorkerDeliversAfterRunContextCanceledMidJob(t *testing.T) {
	t.Parallel()

	q := queueMemory.NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel the run context while the job is being evaluated. The dequeued
	// job must still get its one delivery attempt on a live context.
	ev := &fakeEvaluator{onEvaluate: cancel}
	del := &fakeDeliverer{status: 200, done: make(chan struct{}, 1)}
	w := New(q, ev, del, zap.NewNop())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.NoError(t, q.Enqueue(context.Background(), deflection.QueueItem{JobID: 7}))

	select {
	case <-del.done:
	case <-time.After(time.Second):
		t.Fatal("canceled run context aborted the delivery")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancel")
	}

	del.mu.Lock()
	defer del.mu.Unlock()
	require.Len(t, del.results, 1)
	require.Equal(t, int64(7), del.results[0].JobID)
	require.NoError(t, del.ctxErrs[0], "delivery context must not inherit the cancel")
}

func TestWorkerLogsFailedCallbackAndContinues(t *testing.T) {
	t.Parallel()

	q := queueMemory.NewQueue()
	ev := &fakeEvaluator{}
	del := &fakeDeliverer{status: 500, done: make(chan struct{}, 2)}
	w := New(q, ev, del, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, q.Enqueue(ctx, deflection.QueueItem{JobID: 1}))
	require.NoError(t, q.Enqueue(ctx, deflection.QueueItem{JobID: 2}))

	for i := 0; i < 2; i++ {
		select {
		case <-del.done:
		case <-time.After(time.Second):
			t.Fatal("worker stopped after a failed callback")
		}
	}
}
