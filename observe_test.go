package kbase

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWithPrometheus_CountsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newMemoryClient(t, WithPrometheus(reg))
	ctx := context.Background()

	if _, err := c.Load(ctx, sampleKB(), LoadOptions{}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := c.Query(ctx, "goroutines", nil); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if _, err := c.Query(ctx, "", nil); err == nil {
		t.Fatal("expected error for empty query")
	}

	ops := c.obs.metrics.operations
	if got := testutil.ToFloat64(ops.WithLabelValues("load", "ok")); got != 1 {
		t.Errorf("load ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("query", "ok")); got != 1 {
		t.Errorf("query ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ops.WithLabelValues("query", "error")); got != 1 {
		t.Errorf("query error = %v, want 1", got)
	}
}

func TestNewSDKMetrics_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newSDKMetrics(reg)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	second, err := newSDKMetrics(reg)
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if first.operations != second.operations {
		t.Error("expected the registered counter to be reused")
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var o *observer
	o.observe("noop", time.Now(), nil)
}
