package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordersUpdateCollectors(t *testing.T) {
	before := testutil.ToFloat64(commandsTotal.WithLabelValues("delete", "ok"))
	RecordCommand("delete", "ok")
	if got := testutil.ToFloat64(commandsTotal.WithLabelValues("delete", "ok")); got != before+1 {
		t.Fatalf("commands counter = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(sanctionsTotal.WithLabelValues("restrict"))
	RecordSanction("restrict")
	if got := testutil.ToFloat64(sanctionsTotal.WithLabelValues("restrict")); got != before+1 {
		t.Fatalf("sanctions counter = %v, want %v", got, before+1)
	}

	before = testutil.ToFloat64(eventsTotal.WithLabelValues("text", "enforced"))
	RecordEvent("text", "enforced", time.Millisecond)
	if got := testutil.ToFloat64(eventsTotal.WithLabelValues("text", "enforced")); got != before+1 {
		t.Fatalf("events counter = %v, want %v", got, before+1)
	}
}

func TestRuntimeWithoutMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Fatalf("gather = (%d, %v), want registered collectors", n, err)
	}

	rt := NewRuntime("")
	ctx := context.Background()
	if err := rt.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if rt.server != nil {
		t.Fatalf("empty address must not start a server")
	}
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rt.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
