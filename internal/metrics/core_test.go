package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCeilMsRoundsUp(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want uint64
	}{
		{0, 0},
		{1, 1},
		{time.Millisecond, 1},
		{time.Millisecond + 1, 2},
		{2500 * time.Microsecond, 3},
	}
	for _, tc := range cases {
		if got := CeilMs(tc.d); got != tc.want {
			t.Errorf("CeilMs(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestSwapPeriodResetsAndPreservesTotal(t *testing.T) {
	c := NewCore(7, 1, false)
	for i := 0; i < 10; i++ {
		c.RecordSuccess()
	}
	first := c.SwapPeriod()
	if first.Count != 10 {
		t.Fatalf("expected first swap to report 10, got %d", first.Count)
	}

	for i := 0; i < 5; i++ {
		c.RecordSuccess()
	}
	second := c.SwapPeriod()
	if second.Count != 5 {
		t.Fatalf("expected second swap to report 5 (reset), got %d", second.Count)
	}
	if c.TotalCount() != 15 {
		t.Fatalf("expected cumulative total 15, got %d", c.TotalCount())
	}
}

func TestConcurrentRecordSuccessIsRace_Free(t *testing.T) {
	c := NewCore(7, 1, false)
	var wg sync.WaitGroup
	const workers = 16
	const perWorker = 1000
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c.RecordSuccessWith(uint64(i%50 + 1))
			}
		}()
	}
	wg.Wait()
	if c.TotalCount() != workers*perWorker {
		t.Fatalf("total count = %d, want %d", c.TotalCount(), workers*perWorker)
	}
	if c.Histogram().Sum() != workers*perWorker {
		t.Fatalf("histogram sum = %d, want %d", c.Histogram().Sum(), workers*perWorker)
	}
}

func TestRecordFailureRoutesTimeoutsAndErrors(t *testing.T) {
	c := NewCore(0, 0, false)
	c.RecordFailure(true)
	c.RecordFailure(true)
	c.RecordFailure(false)
	if c.TotalTimeouts() != 2 {
		t.Fatalf("timeouts = %d, want 2", c.TotalTimeouts())
	}
	if c.TotalErrors() != 1 {
		t.Fatalf("errors = %d, want 1", c.TotalErrors())
	}
}
