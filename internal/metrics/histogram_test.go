package metrics

import "testing"

func TestBucketIndexRoundTrip(t *testing.T) {
	h := NewHistogram(7, 1)
	cases := []struct {
		elapsed uint64
		want    int
	}{
		{1, 0},
		{2, 1},
		{3, 2},
		{5, 3},
		{9, 4},
		{17, 5},
		{33, 6},
		{1_000_000, 6},
	}
	for _, tc := range cases {
		got := h.bucketIndex(tc.elapsed)
		if got != tc.want {
			t.Errorf("bucketIndex(%d) = %d, want %d", tc.elapsed, got, tc.want)
		}
	}
}

func TestBucketIndexMonotonic(t *testing.T) {
	h := NewHistogram(7, 1)
	prev := h.bucketIndex(1)
	for e := uint64(2); e < 2000; e++ {
		idx := h.bucketIndex(e)
		if idx < prev {
			t.Fatalf("bucket index not monotonic at elapsed=%d: %d < %d", e, idx, prev)
		}
		if idx < 0 || idx > h.Columns()-1 {
			t.Fatalf("bucket index %d out of range for elapsed=%d", idx, e)
		}
		prev = idx
	}
}

func TestAddIsCumulativeAndSumsToN(t *testing.T) {
	h := NewHistogram(5, 2)
	const n = 500
	for i := 0; i < n; i++ {
		h.Add(uint64(i % 100))
	}
	var sum uint64
	for i := 0; i < h.Columns(); i++ {
		sum += h.Bucket(i)
	}
	if sum != n {
		t.Fatalf("bucket sum = %d, want %d", sum, n)
	}
}

func TestHeaderLabels(t *testing.T) {
	h := NewHistogram(4, 1)
	if got := h.HeaderLabel(0); got != "<=1ms" {
		t.Errorf("label 0 = %q", got)
	}
	if got := h.HeaderLabel(1); got != ">1ms" {
		t.Errorf("label 1 = %q", got)
	}
	if got := h.HeaderLabel(2); got != ">2ms" {
		t.Errorf("label 2 = %q", got)
	}
}
