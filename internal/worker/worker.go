// Package worker implements the three worker variants that generate and
// issue commands against a kvdb.Client: SyncWorker (one goroutine per
// worker, blocking calls), AsyncWorker (a single cooperative dispatcher per
// slot, capped in-flight concurrency), and InitWorker (one-time key-range
// population). All three share the outer operation-selection shape from
// §4.7 and are grounded on the donor's internal/workload/simple/generator.go
// worker loop (sync shape) and internal/concurrency/backpressure.go's
// admission-control pattern (async in-flight cap).
package worker

import (
	"context"
	"time"

	"github.com/kvbench/kvbench/internal/kvdb"
	"github.com/kvbench/kvbench/internal/metrics"
	"github.com/kvbench/kvbench/internal/rng"
	"github.com/kvbench/kvbench/internal/valuesource"
)

// BinName is the single bin every operation in this benchmark addresses.
const BinName = "value"

// Config carries the read-only, shared fields every worker variant needs.
type Config struct {
	Namespace string
	Set       string
	ReadPct   int
	BatchSize int
	Records   int64
	TargetTPS int64
	Latency   bool
}

// State is the per-worker lifecycle record: {rng, valid}. Created by the
// orchestrator, destroyed on shutdown. Workers do
// not share mutable state except through the atomics on Core.
type State struct {
	RNG   *rng.FastRNG
	Valid func() bool // returns false once the fleet-wide stop flag is set
}

// Fatal wraps a panic or unrecoverable error escaping a worker loop body.
// Caught at the worker boundary; logged; the worker exits but the run
// continues unless all workers exit (§4.9).
type Fatal struct {
	WorkerID int
	Cause    any
}

func (f *Fatal) Error() string {
	return "worker: fatal exit"
}

func randomKey(r *rng.FastRNG, records int64) int64 {
	return r.NextRange(0, records)
}

func keyOf(cfg Config, v int64) kvdb.Key {
	return kvdb.Key{Namespace: cfg.Namespace, Set: cfg.Set, Value: v}
}

// issueSync performs exactly one iteration of the shared sync/async
// operation-selection shape (§4.7.1 steps 1-3): choose read vs write, and
// for reads choose batch vs single-key. It returns the elapsed time if
// latency recording is enabled (else a zero duration) and the error, if
// any, from the underlying client call.
func issueSync(ctx context.Context, client kvdb.Client, cfg Config, vs *valuesource.Source, st *State) (time.Duration, error) {
	die := st.RNG.NextRange(0, 100)
	start := time.Now()
	var err error
	if die < int64(cfg.ReadPct) {
		if cfg.BatchSize > 1 {
			keys := make([]kvdb.Key, cfg.BatchSize)
			for i := range keys {
				keys[i] = keyOf(cfg, randomKey(st.RNG, cfg.Records))
			}
			_, err = client.BatchGet(ctx, kvdb.Policy{}, keys, BinName)
		} else {
			_, err = client.Get(ctx, kvdb.Policy{}, keyOf(cfg, randomKey(st.RNG, cfg.Records)), BinName)
		}
	} else {
		v := vs.Next(st.RNG)
		err = client.Put(ctx, kvdb.Policy{}, keyOf(cfg, randomKey(st.RNG, cfg.Records)), BinName, valueOf(v))
	}
	if !cfg.Latency {
		return 0, err
	}
	return time.Since(start), err
}

func valueOf(v valuesource.Value) any {
	switch v.Kind() {
	case valuesource.KindInt:
		return v.Int()
	case valuesource.KindStr:
		return v.Str()
	default:
		return v.Bytes()
	}
}

// recordOutcome feeds a completed operation into the shared MetricsCore,
// per §4.5's record_success/record_success_with/record_failure contract.
func recordOutcome(core *metrics.Core, elapsed time.Duration, err error, latency bool) {
	if err == nil {
		if latency {
			core.RecordSuccessWith(metrics.CeilMs(elapsed))
		} else {
			core.RecordSuccess()
		}
		return
	}
	core.RecordFailure(kvdb.IsTimeout(err))
}

// throttle implements the §4.7.1 step 6 / §9 throughput throttle: it reads
// the never-reset cumulative total (not the reporter-reset period count,
// the bug the donor's original source exhibited) and, if the rate implied
// since the run started exceeds target_tps, sleeps until the next
// wall-clock second boundary.
func throttle(core *metrics.Core, targetTPS int64) {
	if targetTPS <= 0 {
		return
	}
	elapsed := core.AppElapsed()
	if elapsed < time.Second {
		return
	}
	allowed := float64(targetTPS) * elapsed.Seconds()
	if float64(core.TotalCount()) <= allowed {
		return
	}
	sleepUntilNextSecond()
}

func sleepUntilNextSecond() {
	now := time.Now()
	next := now.Truncate(time.Second).Add(time.Second)
	d := next.Sub(now)
	if d > 0 {
		time.Sleep(d)
	}
}
