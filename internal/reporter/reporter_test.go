package reporter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kvbench/kvbench/internal/logging"
	"github.com/kvbench/kvbench/internal/metrics"
)

func TestPrintPeriodLineFormatsCountTpsTimeoutsErrors(t *testing.T) {
	core := metrics.NewCore(0, 0, false)
	var buf bytes.Buffer
	r := New(core, "write", false, logging.NewDefault())
	r.out = &buf

	core.RecordSuccess()
	core.RecordSuccess()
	core.RecordFailure(true)
	snap := core.SwapPeriod()
	r.printPeriodLine(snap, time.Second)

	out := buf.String()
	if !strings.Contains(out, "write(count=2") {
		t.Fatalf("expected count=2 in output, got: %s", out)
	}
	if !strings.Contains(out, "timeouts=1") {
		t.Fatalf("expected timeouts=1 in output, got: %s", out)
	}
	if !strings.Contains(out, "errors=0") {
		t.Fatalf("expected errors=0 in output, got: %s", out)
	}
}

func TestZeroCountTickPrintsNothing(t *testing.T) {
	core := metrics.NewCore(0, 0, false)
	var buf bytes.Buffer
	r := New(core, "write", false, logging.NewDefault())
	r.out = &buf

	r.tick()
	if buf.Len() != 0 {
		t.Fatalf("expected no output for zero-count tick, got: %s", buf.String())
	}
}

func TestReentrancyGuardDropsConcurrentTick(t *testing.T) {
	core := metrics.NewCore(0, 0, false)
	r := New(core, "write", false, logging.NewDefault())
	r.busy.Store(true)
	core.RecordSuccess()
	var buf bytes.Buffer
	r.out = &buf
	r.tick()
	if buf.Len() != 0 {
		t.Fatalf("expected dropped tick to produce no output, got: %s", buf.String())
	}
}

func TestLatencySummaryPrintsCumulativeBuckets(t *testing.T) {
	core := metrics.NewCore(7, 1, false)
	var buf bytes.Buffer
	r := New(core, "write", true, logging.NewDefault())
	r.out = &buf

	core.RecordSuccessWith(1)
	core.RecordSuccessWith(2)
	core.SwapPeriod()

	r.printLatencySummary()
	out := buf.String()
	if !strings.Contains(out, "Latency Summary") {
		t.Fatalf("expected Latency Summary header, got: %s", out)
	}
}
