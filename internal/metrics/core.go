// Package metrics implements the latency histogram and the period-based
// counters workers report into and the reporter rolls over. It is grounded
// on the donor's per-op-type atomic counter/histogram struct
// (Percona-Lab mongo workload generator's stats collector) generalized to
// a single-op-class benchmark core, and on the donor's own Metrics type in
// pkg/types/types.go for the cumulative-totals shape.
package metrics

import (
	"math"
	"time"

	"go.uber.org/atomic"
)

// CeilMs rounds a duration up to the nearest whole millisecond. This is the
// single place elapsed time is converted from a monotonic clock reading
// into the milliseconds-in, milliseconds-bucketed unit the histogram
// contract requires; nothing else in this package performs unit
// conversion.
func CeilMs(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	ms := float64(d) / float64(time.Millisecond)
	return uint64(math.Ceil(ms))
}

// PeriodCounters are the mutable, atomically-incremented counters for the
// current reporting period. Workers only ever increment these; the
// reporter is the sole reader/resetter via MetricsCore.SwapPeriod.
type PeriodCounters struct {
	Count    atomic.Uint64
	Timeouts atomic.Uint64
	Errors   atomic.Uint64
}

func newPeriodCounters() *PeriodCounters { return &PeriodCounters{} }

// Snapshot is an immutable copy of a PeriodCounters taken at swap time.
type Snapshot struct {
	Count    uint64
	Timeouts uint64
	Errors   uint64
}

func (p *PeriodCounters) snapshot() Snapshot {
	return Snapshot{
		Count:    p.Count.Load(),
		Timeouts: p.Timeouts.Load(),
		Errors:   p.Errors.Load(),
	}
}

// Core owns the current period's counters, the cumulative totals, the
// monotonic start time, and the latency histogram (if enabled). It is
// shared by every worker and the reporter; workers only add, the reporter
// only swaps and reads.
type Core struct {
	current      atomic.Pointer[PeriodCounters]
	totalCount   atomic.Uint64
	totalTimeout atomic.Uint64
	totalErrors  atomic.Uint64
	startedAt    time.Time
	histogram    *Histogram
	alt          *AltHistogram
}

// NewCore builds a Core. If columns > 0, a Histogram is allocated; if
// withAlt is also true, an AltHistogram backed by HdrHistogram is built
// alongside it, recording the identical bucket boundaries under a
// different backend.
func NewCore(columns int, shift uint8, withAlt bool) *Core {
	c := &Core{startedAt: time.Now()}
	c.current.Store(newPeriodCounters())
	if columns > 0 {
		c.histogram = NewHistogram(columns, shift)
		if withAlt {
			c.alt = NewAltHistogram(columns, shift)
		}
	}
	return c
}

// RecordSuccess increments the success counter without a latency sample,
// for callers that have latency recording disabled.
func (c *Core) RecordSuccess() {
	c.current.Load().Count.Inc()
	c.totalCount.Inc()
}

// RecordSuccessWith increments the success counter and, if latency
// recording is enabled, folds elapsed into the histogram(s).
func (c *Core) RecordSuccessWith(elapsedMs uint64) {
	c.current.Load().Count.Inc()
	c.totalCount.Inc()
	if c.histogram != nil {
		c.histogram.Add(elapsedMs)
	}
	if c.alt != nil {
		c.alt.Add(elapsedMs)
	}
}

// RecordFailure routes a failed operation into the timeout or error
// counter of the current period and the cumulative totals.
func (c *Core) RecordFailure(isTimeout bool) {
	cur := c.current.Load()
	if isTimeout {
		cur.Timeouts.Inc()
		c.totalTimeout.Inc()
	} else {
		cur.Errors.Inc()
		c.totalErrors.Inc()
	}
}

// SwapPeriod atomically detaches the current period block and installs a
// fresh, zeroed one, returning a snapshot of the detached block. It must
// only be called by the reporter: this is the single linearization point
// separating two periods (Release on the store, Acquire on every worker's
// load of the current pointer).
func (c *Core) SwapPeriod() Snapshot {
	fresh := newPeriodCounters()
	old := c.current.Swap(fresh)
	return old.snapshot()
}

// AppElapsed returns the monotonic time elapsed since Core construction.
func (c *Core) AppElapsed() time.Duration { return time.Since(c.startedAt) }

// TotalCount returns the shared, never-reset cumulative success count.
// Workers use this (not their own period counts) for throughput throttling
// per-period, since PeriodCounters is reset by the reporter's swap.
func (c *Core) TotalCount() uint64 { return c.totalCount.Load() }

// TotalTimeouts and TotalErrors return cumulative failure counts.
func (c *Core) TotalTimeouts() uint64 { return c.totalTimeout.Load() }
func (c *Core) TotalErrors() uint64   { return c.totalErrors.Load() }

// Histogram returns the primary latency histogram, or nil if disabled.
func (c *Core) Histogram() *Histogram { return c.histogram }

// AltHistogramView returns the alternate histogram backend, or nil if disabled.
func (c *Core) AltHistogramView() *AltHistogram { return c.alt }
