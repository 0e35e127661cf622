package metrics

import (
	"sync"

	hdr "github.com/HdrHistogram/hdrhistogram-go"
)

// AltHistogram presents the same fixed buckets as Histogram but is backed
// by an HDR histogram recorder instead of a flat atomic array, exercising
// the HdrHistogram-go dependency the wider example pack favors for this
// exact concern. It uses the same bucket boundaries, cumulative-only counts
// and infallible indexing. Observations up to 2047 ms are recorded exactly
// and land in the same bucket as in Histogram; above that, HDR's
// three-significant-figure resolution can place a value lying just above a
// bucket boundary into the bucket below it.
type AltHistogram struct {
	mu     sync.Mutex
	hdr    *hdr.Histogram
	shift  uint8
	columns int
}

// NewAltHistogram builds an HDR-backed recorder spanning 1ms to one hour
// (3,600,000 ms) with three significant figures.
func NewAltHistogram(columns int, shift uint8) *AltHistogram {
	return &AltHistogram{
		hdr:     hdr.New(1, 3_600_000, 3),
		shift:   shift,
		columns: columns,
	}
}

// Add folds one observation, in milliseconds, into the HDR recorder.
// Observations above the recorder's one-hour ceiling are recorded as one
// hour, so every call is counted.
func (a *AltHistogram) Add(elapsedMs uint64) {
	v := int64(elapsedMs)
	if v < 1 {
		v = 1
	}
	if top := a.hdr.HighestTrackableValue(); elapsedMs > uint64(top) {
		v = top
	}
	a.mu.Lock()
	_ = a.hdr.RecordValue(v)
	a.mu.Unlock()
}

// Bucket derives the cumulative count for fixed bucket i from the HDR
// recorder's cumulative distribution, so that callers printing either
// backend's table see identical totals. Bounds are half-open
// (loExclusive, hiInclusive] so that, like Histogram.bucketIndex, a value
// sitting exactly on a boundary falls into exactly one bucket.
func (a *AltHistogram) Bucket(i int) uint64 {
	loExclusive, hiInclusive, unbounded := a.bucketBoundsMs(i)
	a.mu.Lock()
	defer a.mu.Unlock()
	var count int64
	for _, b := range a.hdr.Distribution() {
		if b.Count == 0 {
			continue
		}
		v := b.From
		if v > loExclusive && (unbounded || v <= hiInclusive) {
			count += b.Count
		}
	}
	return uint64(count)
}

// limitMs is Histogram.bucketIndex's own limit sequence: 2^(k*shift),
// k=0..columns-2. limitMs(0) == 1, matching the fixed "<=1ms" bucket.
func (a *AltHistogram) limitMs(k int) int64 {
	return int64(uint64(1) << (uint(k) * uint(a.shift)))
}

// bucketBoundsMs returns the half-open (loExclusive, hiInclusive] range for
// bucket i; unbounded is true for the last bucket, which has no upper
// bound, mirroring Histogram.bucketIndex's saturating final bucket.
func (a *AltHistogram) bucketBoundsMs(i int) (loExclusive, hiInclusive int64, unbounded bool) {
	switch {
	case i == 0:
		return -1, a.limitMs(0), false
	case i == a.columns-1:
		return a.limitMs(i - 1), 0, true
	default:
		return a.limitMs(i - 1), a.limitMs(i), false
	}
}

// Columns returns the bucket count this alt histogram was built to mirror.
func (a *AltHistogram) Columns() int { return a.columns }

// Sum returns the total of all bucket counts, for the same cumulative-count
// invariant Histogram.Sum() upholds.
func (a *AltHistogram) Sum() uint64 {
	var total uint64
	for i := 0; i < a.columns; i++ {
		total += a.Bucket(i)
	}
	return total
}
