package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if jobsTotal == nil || itemsTotal == nil || callbackDeliveriesTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil || busyWorkers == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveJobAndCallback(t *testing.T) {
	Init()

	ObserveJob("delivered")
	if val := testutil.ToFloat64(jobsTotal.WithLabelValues("delivered")); val < 1 {
		t.Errorf("expected jobsTotal delivered >= 1, got %f", val)
	}

	ObserveCallback("failed")
	if val := testutil.ToFloat64(callbackDeliveriesTotal.WithLabelValues("failed")); val < 1 {
		t.Errorf("expected callbackDeliveriesTotal failed >= 1, got %f", val)
	}

	ObserveItems(2, 1)
	if val := testutil.ToFloat64(itemsTotal.WithLabelValues("ok")); val < 2 {
		t.Errorf("expected itemsTotal ok >= 2, got %f", val)
	}
	if val := testutil.ToFloat64(itemsTotal.WithLabelValues("invalid")); val < 1 {
		t.Errorf("expected itemsTotal invalid >= 1, got %f", val)
	}
}

func TestWorkerBusyGauge(t *testing.T) {
	Init()

	before := testutil.ToFloat64(busyWorkers)
	WorkerBusy(1)
	if got := testutil.ToFloat64(busyWorkers); got != before+1 {
		t.Errorf("expected gauge %f, got %f", before+1, got)
	}
	WorkerBusy(-1)
	if got := testutil.ToFloat64(busyWorkers); got != before {
		t.Errorf("expected gauge %f, got %f", before, got)
	}
}
