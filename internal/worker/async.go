package worker

import (
	"context"
	"sync"
	"time"

	"github.com/kvbench/kvbench/internal/kvdb"
	"github.com/kvbench/kvbench/internal/logging"
	"github.com/kvbench/kvbench/internal/metrics"
	"github.com/kvbench/kvbench/internal/rng"
	"github.com/kvbench/kvbench/internal/valuesource"
)

// AsyncWorker is a single-threaded cooperative dispatcher: it starts
// InFlightMax "slots", each issuing one operation with a completion
// callback. On completion the callback records metrics and synchronously
// issues the slot's next operation, which caps concurrency at InFlightMax
// and provides backpressure — no new command is generated until an
// in-flight one completes. Grounded on the donor's
// internal/concurrency/backpressure.go admission-control shape, adapted
// from a connection-count cap to an in-flight-operation-count cap.
type AsyncWorker struct {
	cfg         Config
	client      kvdb.Client
	core        *metrics.Core
	vs          *valuesource.Source
	inFlightMax int
	stop        func() bool

	wg sync.WaitGroup
}

// NewAsyncWorker builds an AsyncWorker. stop is polled before every new
// command is issued (§4.7.2 cancellation); outstanding commands are
// allowed to complete once stop starts returning true.
func NewAsyncWorker(cfg Config, client kvdb.Client, core *metrics.Core, vs *valuesource.Source, inFlightMax int, stop func() bool) *AsyncWorker {
	return &AsyncWorker{cfg: cfg, client: client, core: core, vs: vs, inFlightMax: inFlightMax, stop: stop}
}

// Run starts all slots and blocks until every slot has quiesced (each slot
// quiesces once stop() is observed true and its last in-flight op
// completes), or ctx is cancelled.
func (a *AsyncWorker) Run(ctx context.Context, seedBase int64, _ logging.Logger) {
	a.wg.Add(a.inFlightMax)
	for slot := 0; slot < a.inFlightMax; slot++ {
		st := &State{RNG: rng.New(uint64(seedBase) + uint64(slot) + 1)}
		a.issueNext(ctx, st)
	}
	a.wg.Wait()
}

func (a *AsyncWorker) issueNext(ctx context.Context, st *State) {
	if a.stop() || ctx.Err() != nil {
		a.wg.Done()
		return
	}

	die := st.RNG.NextRange(0, 100)
	start := time.Now()

	complete := func(err error) {
		if a.cfg.Latency {
			recordOutcome(a.core, time.Since(start), err, true)
		} else {
			recordOutcome(a.core, 0, err, false)
		}
		throttle(a.core, a.cfg.TargetTPS)
		a.issueNext(ctx, st)
	}

	if die < int64(a.cfg.ReadPct) {
		if a.cfg.BatchSize > 1 {
			keys := make([]kvdb.Key, a.cfg.BatchSize)
			for i := range keys {
				keys[i] = keyOf(a.cfg, randomKey(st.RNG, a.cfg.Records))
			}
			a.client.BatchGetAsync(ctx, kvdb.Policy{}, keys, BinName, complete)
		} else {
			a.client.GetAsync(ctx, kvdb.Policy{}, keyOf(a.cfg, randomKey(st.RNG, a.cfg.Records)), BinName, complete)
		}
		return
	}

	v := a.vs.Next(st.RNG)
	a.client.PutAsync(ctx, kvdb.Policy{}, keyOf(a.cfg, randomKey(st.RNG, a.cfg.Records)), BinName, valueOf(v), complete)
}
