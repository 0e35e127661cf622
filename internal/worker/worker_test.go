package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/atomic"

	"github.com/kvbench/kvbench/internal/kvdb"
	"github.com/kvbench/kvbench/internal/kvdb/mockkv"
	"github.com/kvbench/kvbench/internal/logging"
	"github.com/kvbench/kvbench/internal/metrics"
	"github.com/kvbench/kvbench/internal/rng"
	"github.com/kvbench/kvbench/internal/valuesource"
)

func TestPartitionKeyRangeCoversAndDisjoint(t *testing.T) {
	cases := []struct{ n, w int64 }{
		{1000, 4}, {1000, 3}, {10, 10}, {10, 3}, {1, 5}, {7, 1},
	}
	for _, tc := range cases {
		ranges := PartitionKeyRange(tc.n, tc.w)
		var total int64
		var prevEnd int64
		for _, r := range ranges {
			if r.Start != prevEnd {
				t.Fatalf("n=%d w=%d: gap/overlap at range start=%d, expected %d", tc.n, tc.w, r.Start, prevEnd)
			}
			prevEnd = r.Start + r.Count
			total += r.Count
		}
		if total != tc.n {
			t.Fatalf("n=%d w=%d: ranges sum to %d, want %d", tc.n, tc.w, total, tc.n)
		}
		if len(ranges) > 0 {
			minC, maxC := ranges[0].Count, ranges[0].Count
			for _, r := range ranges {
				if r.Count < minC {
					minC = r.Count
				}
				if r.Count > maxC {
					maxC = r.Count
				}
			}
			if maxC-minC > 1 {
				t.Fatalf("n=%d w=%d: range sizes differ by more than 1 (%d vs %d)", tc.n, tc.w, minC, maxC)
			}
		}
	}
}

func TestInitWorker1000Keys4WorkersAllSucceed(t *testing.T) {
	client := mockkv.New()
	core := metrics.NewCore(0, 0, false)
	cfg := Config{Namespace: "bench", Set: "bench", Records: 1000}
	ranges := PartitionKeyRange(1000, 4)

	var wg sync.WaitGroup
	for i, r := range ranges {
		wg.Add(1)
		go func(id int, start, count int64) {
			defer wg.Done()
			vs := valuesource.New(valuesource.KindInt, 0, false, rng.New(uint64(id)+1))
			st := &State{RNG: rng.New(uint64(id) + 100), Valid: func() bool { return true }}
			w := NewInitWorker(id, cfg, client, core, vs, st, start, count, 3, logging.NewDefault())
			if err := w.Run(context.Background()); err != nil {
				t.Errorf("init worker %d failed: %v", id, err)
			}
		}(i, r.Start, r.Count)
	}
	wg.Wait()

	if core.TotalCount() != 1000 {
		t.Fatalf("expected 1000 successful puts, got %d", core.TotalCount())
	}
}

func TestSyncWorkerRecordsOutcomesUntilInvalid(t *testing.T) {
	client := mockkv.New()
	core := metrics.NewCore(7, 1, false)
	cfg := Config{Namespace: "bench", Set: "bench", Records: 100, ReadPct: 50, BatchSize: 1, Latency: true}
	vs := valuesource.New(valuesource.KindInt, 0, false, rng.New(1))

	var remaining atomic.Int64
	remaining.Store(200)
	st := &State{RNG: rng.New(42), Valid: func() bool { return remaining.Load() > 0 }}

	w := NewSyncWorker(0, cfg, client, core, vs, st, logging.NewDefault())

	done := make(chan error, 1)
	go func() {
		// Valid() flips false once the test stores zero into remaining
		// below.
		done <- w.Run(context.Background())
	}()

	// Let the worker run briefly, then force it to stop by making Valid
	// return false; since the mock has no latency, this should complete in
	// well under a second either way. We poll TotalCount as a stop signal.
	for i := 0; i < 1000 && core.TotalCount()+core.TotalErrors()+core.TotalTimeouts() < 50; i++ {
		time.Sleep(time.Millisecond)
	}
	remaining.Store(0)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("sync worker returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sync worker did not stop after Valid() went false")
	}

	if core.TotalCount() == 0 {
		t.Fatal("expected at least some successful operations")
	}
}

func TestAsyncWorkerKeepsIssuingUntilStopBudget(t *testing.T) {
	client := mockkv.New()
	core := metrics.NewCore(0, 0, false)
	cfg := Config{Namespace: "bench", Set: "bench", Records: 100, ReadPct: 50, BatchSize: 1}
	vs := valuesource.New(valuesource.KindInt, 0, false, rng.New(1))

	var count atomic.Int64
	const budget = 300
	stop := func() bool { return count.Load() >= budget }

	aw := NewAsyncWorker(cfg, client, core, vs, 8, stop)

	// Completions are counted through the core itself: its
	// TotalCount/TotalErrors/TotalTimeouts track every completion.
	go func() {
		aw.Run(context.Background(), 1, logging.NewDefault())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		count.Store(int64(core.TotalCount() + core.TotalErrors() + core.TotalTimeouts()))
		if count.Load() >= budget {
			break
		}
		time.Sleep(time.Millisecond)
	}

	total := core.TotalCount() + core.TotalErrors() + core.TotalTimeouts()
	if total < budget {
		t.Fatalf("expected at least %d completions, got %d", budget, total)
	}
}

func TestIssueSyncWritesAreAlwaysSingleKeyEvenWhenBatched(t *testing.T) {
	client := mockkv.New()
	cfg := Config{Namespace: "bench", Set: "bench", Records: 100, ReadPct: 0, BatchSize: 10}
	vs := valuesource.New(valuesource.KindInt, 0, false, rng.New(1))
	st := &State{RNG: rng.New(5)}

	// ReadPct=0 forces the write path on every call regardless of
	// BatchSize; writes must remain single-key.
	_, err := issueSync(context.Background(), client, cfg, vs, st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := 0
	for k := int64(0); k < cfg.Records; k++ {
		rec, err := client.Get(context.Background(), kvdb.Policy{}, keyOf(cfg, k), BinName)
		if err != nil {
			t.Fatalf("unexpected get error: %v", err)
		}
		if _, ok := rec.Bins[BinName]; ok {
			stored++
		}
	}
	if stored != 1 {
		t.Fatalf("expected the write to touch exactly 1 key, got %d", stored)
	}
}

func TestBatchReadCountsAsOneOperationNotN(t *testing.T) {
	client := mockkv.New()
	core := metrics.NewCore(0, 0, false)
	cfg := Config{Namespace: "bench", Set: "bench", Records: 100, ReadPct: 100, BatchSize: 10}
	vs := valuesource.New(valuesource.KindInt, 0, false, rng.New(1))
	st := &State{RNG: rng.New(5)}

	elapsed, err := issueSync(context.Background(), client, cfg, vs, st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recordOutcome(core, elapsed, err, cfg.Latency)

	if core.TotalCount() != 1 {
		t.Fatalf("expected a 10-key batch read to count as 1 operation, got %d", core.TotalCount())
	}
}

func TestTimeoutInjectionRoutesToTimeoutsNotErrorsAndKeepsProgress(t *testing.T) {
	client := mockkv.New()
	client.FailEvery = 2
	client.FailKind = kvdb.ErrTimeout
	core := metrics.NewCore(0, 0, false)
	cfg := Config{Namespace: "bench", Set: "bench", Records: 100, ReadPct: 50, BatchSize: 1}
	vs := valuesource.New(valuesource.KindInt, 0, false, rng.New(1))
	st := &State{RNG: rng.New(9)}

	const iterations = 400
	for i := 0; i < iterations; i++ {
		elapsed, err := issueSync(context.Background(), client, cfg, vs, st)
		recordOutcome(core, elapsed, err, cfg.Latency)
	}

	total := core.TotalCount() + core.TotalTimeouts() + core.TotalErrors()
	if total != iterations {
		t.Fatalf("expected %d total outcomes, got %d", iterations, total)
	}
	if core.TotalErrors() != 0 {
		t.Fatalf("expected zero hard errors from a timeout-only injector, got %d", core.TotalErrors())
	}
	if core.TotalTimeouts() == 0 {
		t.Fatal("expected some operations to be recorded as timeouts")
	}
	// FailEvery=2 fails every other call, so timeouts should be roughly half
	// of all attempted outcomes; forward progress (TotalCount > 0) must hold
	// even with half the operations failing.
	ratio := float64(core.TotalTimeouts()) / float64(total)
	if ratio < 0.3 || ratio > 0.7 {
		t.Fatalf("expected timeout ratio near 0.5, got %f (%d/%d)", ratio, core.TotalTimeouts(), total)
	}
	if core.TotalCount() == 0 {
		t.Fatal("expected forward progress: some operations still succeeded")
	}
}

var _ kvdb.Client = (*mockkv.Client)(nil)
