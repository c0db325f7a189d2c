package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordersIncrementCounters(t *testing.T) {
	t.Parallel()

	before := testutil.ToFloat64(violationsTotal.WithLabelValues("test_kind"))
	RecordViolation("test_kind")
	RecordViolation("test_kind")
	if got := testutil.ToFloat64(violationsTotal.WithLabelValues("test_kind")); got != before+2 {
		t.Fatalf("expected %v violations, got %v", before+2, got)
	}

	before = testutil.ToFloat64(mutesTotal.WithLabelValues("test_result"))
	RecordMute("test_result")
	if got := testutil.ToFloat64(mutesTotal.WithLabelValues("test_result")); got != before+1 {
		t.Fatalf("expected %v mutes, got %v", before+1, got)
	}
}

func TestInitWithoutServer(t *testing.T) {
	t.Parallel()

	shutdown, err := Init(context.Background(), "")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	ObserveMessage("clean", 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
