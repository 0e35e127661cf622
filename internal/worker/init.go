package worker

import (
	"context"

	"github.com/kvbench/kvbench/internal/kvdb"
	"github.com/kvbench/kvbench/internal/logging"
	"github.com/kvbench/kvbench/internal/metrics"
	"github.com/kvbench/kvbench/internal/valuesource"
	"go.uber.org/zap"
)

// InitWorker populates keys [KeyStart, KeyStart+KeyCount) once each, in
// order. On a recoverable failure the same key is retried up to
// MaxRetries times before the worker aborts (fatal for that worker only,
// per §4.9).
type InitWorker struct {
	id         int
	cfg        Config
	client     kvdb.Client
	core       *metrics.Core
	vs         *valuesource.Source
	state      *State
	keyStart   int64
	keyCount   int64
	maxRetries int
	log        logging.Logger
}

// NewInitWorker builds one InitWorker over the contiguous, non-overlapping
// key range [keyStart, keyStart+keyCount).
func NewInitWorker(id int, cfg Config, client kvdb.Client, core *metrics.Core, vs *valuesource.Source, state *State, keyStart, keyCount int64, maxRetries int, log logging.Logger) *InitWorker {
	return &InitWorker{id: id, cfg: cfg, client: client, core: core, vs: vs, state: state, keyStart: keyStart, keyCount: keyCount, maxRetries: maxRetries, log: log}
}

// Run writes every key in this worker's range exactly once, returning a
// Fatal if a key exhausts its retry budget.
func (w *InitWorker) Run(ctx context.Context) (fatalErr error) {
	defer func() {
		if r := recover(); r != nil {
			if w.log != nil {
				w.log.Error("init worker exited fatally", nil, zap.Int("worker_id", w.id), zap.Any("cause", r))
			}
			fatalErr = &Fatal{WorkerID: w.id, Cause: r}
		}
	}()

	for k := w.keyStart; k < w.keyStart+w.keyCount; k++ {
		if !w.state.Valid() {
			return nil
		}
		if err := w.writeKeyWithRetry(ctx, k); err != nil {
			return &Fatal{WorkerID: w.id, Cause: err}
		}
	}
	return nil
}

func (w *InitWorker) writeKeyWithRetry(ctx context.Context, key int64) error {
	retries := w.maxRetries
	for {
		v := w.vs.Next(w.state.RNG)
		err := w.client.Put(ctx, kvdb.Policy{}, keyOf(w.cfg, key), BinName, valueOf(v))
		if err == nil {
			w.core.RecordSuccess()
			return nil
		}
		w.core.RecordFailure(kvdb.IsTimeout(err))
		if retries <= 0 {
			return err
		}
		retries--
	}
}

// PartitionKeyRange implements §4.7.3's contiguous, non-overlapping
// partitioning: given N keys and W workers (W = min(workers, N)), rem = N
// mod W workers get one extra key. Ranges are assigned contiguously so the
// union is exactly [0, N) and no two ranges overlap.
func PartitionKeyRange(n, workers int64) []struct{ Start, Count int64 } {
	w := workers
	if w > n {
		w = n
	}
	if w <= 0 {
		return nil
	}
	base := n / w
	rem := n % w

	ranges := make([]struct{ Start, Count int64 }, w)
	var offset int64
	for i := int64(0); i < w; i++ {
		count := base
		if i < rem {
			count++
		}
		ranges[i] = struct{ Start, Count int64 }{Start: offset, Count: count}
		offset += count
	}
	return ranges
}
