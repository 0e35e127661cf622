package metrics

import (
	"fmt"

	"go.uber.org/atomic"
)

// Histogram is the fixed-shape logarithmic bucket counter every op latency
// is folded into. Bucket 0 counts elapsed <= 1ms; bucket k for k >= 1
// counts values in (2^((k-1)*shift), 2^(k*shift)] ms, so bucket 1 counts
// (1, 2^shift] ms. The last bucket is inclusive-open and catches all
// overflow. Counts are cumulative for the life of the run; there is no
// reset operation.
type Histogram struct {
	buckets []atomic.Uint64
	shift   uint8
}

// NewHistogram allocates a zeroed histogram with the given column count and
// geometric shift. columns must be in [2,10] and shift in [1,5]; callers are
// expected to have already validated these against BenchmarkConfig.
func NewHistogram(columns int, shift uint8) *Histogram {
	return &Histogram{buckets: make([]atomic.Uint64, columns), shift: shift}
}

// Add records one observation of elapsedMs milliseconds (already rounded up
// to the nearest millisecond by the caller) into the correct bucket. Bucket
// selection is infallible: values too large to fit saturate into the last
// bucket.
func (h *Histogram) Add(elapsedMs uint64) {
	h.buckets[h.bucketIndex(elapsedMs)].Inc()
}

// bucketIndex computes, without side effects, which bucket elapsedMs falls
// into.
func (h *Histogram) bucketIndex(elapsedMs uint64) int {
	n := len(h.buckets)
	if elapsedMs <= 1 {
		return 0
	}
	limit := uint64(1)
	for i := 0; i < n-1; i++ {
		if elapsedMs <= limit {
			return i
		}
		limit <<= h.shift
	}
	return n - 1
}

// Bucket returns the cumulative count in bucket i.
func (h *Histogram) Bucket(i int) uint64 { return h.buckets[i].Load() }

// Columns returns the number of buckets.
func (h *Histogram) Columns() int { return len(h.buckets) }

// Shift returns the geometric shift between successive buckets.
func (h *Histogram) Shift() uint8 { return h.shift }

// Sum returns the total of all bucket counts.
func (h *Histogram) Sum() uint64 {
	var total uint64
	for i := range h.buckets {
		total += h.buckets[i].Load()
	}
	return total
}

// HeaderLabel returns the column header for bucket i: "<=1ms" for bucket 0,
// ">1ms" for bucket 1, and ">{1<<(i-1)*shift}ms" for every bucket after
// that, matching the fixed two-bucket prefix plus geometric growth the
// histogram itself uses for bucket selection.
func (h *Histogram) HeaderLabel(i int) string {
	switch {
	case i == 0:
		return "<=1ms"
	case i == 1:
		return ">1ms"
	default:
		limit := uint64(1) << (uint(i-1) * uint(h.shift))
		return fmt.Sprintf(">%dms", limit)
	}
}
