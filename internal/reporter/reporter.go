// Package reporter implements the single-writer timer that rolls over
// per-period metrics at a fixed 1 Hz cadence and prints live throughput and
// latency-bucket tables, grounded on the donor's own summary-ticker in
// cmd/stormdb/main.go and on the Percona-Lab mongo workload generator's
// Monitor/printInterval/PrintFinalSummary ticker-tick-format-print cycle.
package reporter

import (
	"fmt"
	"io"
	"os"
	"sync"
	"text/tabwriter"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/kvbench/kvbench/internal/logging"
	"github.com/kvbench/kvbench/internal/metrics"
)

// Reporter fires a 1 Hz timer that swaps the current metrics period and
// prints a console line, with a re-entrancy guard that drops a tick rather
// than letting two ticks run concurrently.
type Reporter struct {
	core    *metrics.Core
	out     io.Writer
	log     logging.Logger
	opName  string
	latency bool

	busy   atomic.Bool
	ticker *time.Ticker
	stopCh chan struct{}
	doneWg sync.WaitGroup

	mu sync.Mutex // guards writes to out
}

// New builds a Reporter. opName labels the console line ("read"/"write"/
// "mixed"); latency controls whether the bucket table is printed.
func New(core *metrics.Core, opName string, latency bool, log logging.Logger) *Reporter {
	return &Reporter{
		core:    core,
		out:     os.Stdout,
		log:     log,
		opName:  opName,
		latency: latency,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the 1 Hz ticker. It prints the latency header once, if
// enabled, before the first tick.
func (r *Reporter) Start() {
	if r.latency && r.core.Histogram() != nil {
		r.printLatencyHeader()
	}
	r.ticker = time.NewTicker(time.Second)
	r.doneWg.Add(1)
	go r.loop()
}

func (r *Reporter) loop() {
	defer r.doneWg.Done()
	for {
		select {
		case <-r.ticker.C:
			r.tick()
		case <-r.stopCh:
			return
		}
	}
}

// tick is the re-entrancy-guarded timer callback: if a previous tick is
// still running (should never happen given the work done here, but guarded
// per the single-writer contract), this tick is dropped, never queued.
func (r *Reporter) tick() {
	if !r.busy.CompareAndSwap(false, true) {
		return
	}
	defer r.busy.Store(false)

	snap := r.core.SwapPeriod()
	if snap.Count == 0 {
		return
	}
	r.printPeriodLine(snap, time.Second)
}

func (r *Reporter) printPeriodLine(snap metrics.Snapshot, period time.Duration) {
	tps := float64(snap.Count) / period.Seconds()
	line := fmt.Sprintf(
		"%s %s(count=%d tps=%.0f timeouts=%d errors=%d)",
		time.Now().Format("2006-01-02 15:04:05"), r.opName, snap.Count, tps, snap.Timeouts, snap.Errors,
	)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := fmt.Fprintln(r.out, line); err != nil {
		// ReporterIO: logged and ignored, metrics must not stop on console
		// failure.
		if r.log != nil {
			r.log.Warn("reporter: console write failed", zap.Error(err))
		}
	}
	if r.latency && r.core.Histogram() != nil {
		r.printLatencyRow()
	}
}

func (r *Reporter) printLatencyHeader() {
	h := r.core.Histogram()
	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprint(w, "op")
	for i := 0; i < h.Columns(); i++ {
		fmt.Fprintf(w, "\t%s", h.HeaderLabel(i))
	}
	fmt.Fprintln(w)
	w.Flush()
}

func (r *Reporter) printLatencyRow() {
	h := r.core.Histogram()
	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprint(w, r.opName)
	for i := 0; i < h.Columns(); i++ {
		fmt.Fprintf(w, "\t%d", r.bucketValue(h, i))
	}
	fmt.Fprintln(w)
	w.Flush()
}

// bucketValue prefers the AltHistogram backend when alt_histogram is
// enabled: same buckets, HDR-backed recorder instead of the flat atomic
// array, per the "identical semantics, different formatting" contract.
func (r *Reporter) bucketValue(h *metrics.Histogram, i int) uint64 {
	if alt := r.core.AltHistogramView(); alt != nil {
		return alt.Bucket(i)
	}
	return h.Bucket(i)
}

// Stop flushes a final period, prints the Latency Summary block, and
// disables further ticks. Safe to call once.
func (r *Reporter) Stop() {
	if r.ticker != nil {
		r.ticker.Stop()
	}
	close(r.stopCh)
	r.doneWg.Wait()

	// flush any last partial block
	for !r.busy.CompareAndSwap(false, true) {
		time.Sleep(time.Millisecond)
	}
	snap := r.core.SwapPeriod()
	r.busy.Store(false)
	if snap.Count > 0 {
		r.printPeriodLine(snap, time.Since(r.lastTickTime()))
	}

	r.printLatencySummary()
}

// lastTickTime is a conservative one-second estimate used only for the
// final partial-period throughput line; precise elapsed tracking for the
// trailing partial tick is not load-bearing for the summary block.
func (r *Reporter) lastTickTime() time.Time { return time.Now().Add(-time.Second) }

func (r *Reporter) printLatencySummary() {
	h := r.core.Histogram()
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Latency Summary")
	w := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprint(w, "op")
	for i := 0; i < h.Columns(); i++ {
		fmt.Fprintf(w, "\t%s", h.HeaderLabel(i))
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, r.opName)
	for i := 0; i < h.Columns(); i++ {
		fmt.Fprintf(w, "\t%d", r.bucketValue(h, i))
	}
	fmt.Fprintln(w)
	w.Flush()
}
