// Package orchestrator builds the workers, starts the reporter, enforces
// the transaction budget, and drives shutdown, grounded on the donor's
// cmd/stormdb/main.go runLoadTest signal-handling/graceful-shutdown flow
// and internal/workerpool/workerpool.go's timeout-based Shutdown.
package orchestrator

import (
	"context"
	"encoding/binary"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kvbench/kvbench/internal/config"
	"github.com/kvbench/kvbench/internal/kvdb"
	"github.com/kvbench/kvbench/internal/logging"
	"github.com/kvbench/kvbench/internal/metrics"
	"github.com/kvbench/kvbench/internal/reporter"
	"github.com/kvbench/kvbench/internal/rng"
	"github.com/kvbench/kvbench/internal/valuesource"
	"github.com/kvbench/kvbench/internal/worker"
)

// Orchestrator owns the run's MetricsCore, Reporter and worker fleet.
type Orchestrator struct {
	cfg    config.BenchmarkConfig
	client kvdb.Client
	log    logging.Logger
	runID  uuid.UUID

	core *metrics.Core
	rep  *reporter.Reporter
}

// New validates cfg (rejecting out-of-range read_pct/columns/shift with a
// clear diagnostic, per §4.8) and builds an Orchestrator.
func New(cfg config.BenchmarkConfig, client kvdb.Client, log logging.Logger) (*Orchestrator, error) {
	if err := config.Validate(&cfg); err != nil {
		return nil, err
	}
	columns := 0
	if cfg.LatencyEnabled {
		columns = cfg.LatencyColumns
	}
	core := metrics.NewCore(columns, uint8(cfg.LatencyShift), cfg.AltHistogram)

	opName := "write"
	if cfg.ReadPct == 100 {
		opName = "read"
	} else if cfg.ReadPct > 0 {
		opName = "mixed"
	}
	rep := reporter.New(core, opName, cfg.LatencyEnabled, log)

	return &Orchestrator{
		cfg:    cfg,
		client: client,
		log:    log,
		runID:  uuid.New(),
		core:   core,
		rep:    rep,
	}, nil
}

func (o *Orchestrator) workerCfg() worker.Config {
	return worker.Config{
		Namespace: o.cfg.Namespace,
		Set:       o.cfg.Set,
		ReadPct:   o.cfg.ReadPct,
		BatchSize: o.cfg.BatchSize,
		Records:   o.cfg.Records,
		TargetTPS: o.cfg.TargetTPS,
		Latency:   o.cfg.LatencyEnabled,
	}
}

// RunInit partitions [0, records_init) across min(workers, records_init)
// InitWorkers (§4.7.3) and runs them to completion. Per-worker fatal errors
// are aggregated with multierr; a single worker's fatal exit does not stop
// the others.
func (o *Orchestrator) RunInit(ctx context.Context, recordsInit int64) error {
	ranges := worker.PartitionKeyRange(recordsInit, int64(o.cfg.WorkerCount))

	var wg conc.WaitGroup
	errs := make([]error, len(ranges))
	valid := func() bool { return true }

	// Built once, before fan-out, exactly as RunWorkload builds its shared
	// vs: a Source is not safe to share its seeding RNG across goroutines
	// (FastRNG has no locking, per §4.2), and the fixed_value contract
	// requires every worker to see the same one identity.
	vs := valuesource.New(binKind(o.cfg.BinType), o.cfg.BinSize, o.cfg.FixedValue, rng.New(o.seed()+1))

	for i, r := range ranges {
		i, r := i, r
		wg.Go(func() {
			st := &worker.State{RNG: rng.New(uint64(i) + 1000), Valid: valid}
			w := worker.NewInitWorker(i, o.workerCfg(), o.client, o.core, vs, st, r.Start, r.Count, 3, o.log)
			errs[i] = w.Run(ctx)
		})
	}
	wg.Wait()

	var merged error
	for _, e := range errs {
		merged = multierr.Append(merged, e)
	}
	return merged
}

func binKind(t config.BinType) valuesource.Kind {
	switch t {
	case config.BinStr:
		return valuesource.KindStr
	case config.BinBytes:
		return valuesource.KindBytes
	default:
		return valuesource.KindInt
	}
}

// RunWorkload builds the worker fleet for the mixed/read/write phase, starts
// the reporter, enforces tx_budget and external stop signals, and returns
// once the run has fully quiesced. Shutdown order: signal workers -> await
// quiescence -> reporter final flush -> (caller drops the client).
func (o *Orchestrator) RunWorkload(ctx context.Context, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, durationOrForever(duration))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	stopped := atomic.NewBool(false)
	stop := func() bool { return stopped.Load() }
	valid := func() bool { return !stopped.Load() }

	o.rep.Start()

	vs := valuesource.New(binKind(o.cfg.BinType), o.cfg.BinSize, o.cfg.FixedValue, rng.New(o.seed()+7))

	var wg conc.WaitGroup
	errs := make([]error, o.cfg.WorkerCount)

	for i := 0; i < o.cfg.WorkerCount; i++ {
		i := i
		switch o.cfg.Mode {
		case config.ModeSync:
			wg.Go(func() {
				st := &worker.State{RNG: rng.New(uint64(i) + 2000), Valid: valid}
				w := worker.NewSyncWorker(i, o.workerCfg(), o.client, o.core, vs, st, o.log)
				errs[i] = w.Run(ctx)
			})
		case config.ModeAsync:
			wg.Go(func() {
				aw := worker.NewAsyncWorker(o.workerCfg(), o.client, o.core, vs, o.cfg.InFlightMax, stop)
				aw.Run(ctx, int64(i)+3000, o.log)
			})
		}
	}

	budgetDone := make(chan struct{})
	if o.cfg.TxBudget > 0 {
		go o.watchBudget(ctx, stopped, budgetDone)
	}

	select {
	case <-ctx.Done():
	case <-sigCh:
		o.log.Info("received stop signal, shutting down", zap.String("run_id", o.runID.String()))
	case <-budgetDone:
	}

	stopped.Store(true)
	wg.Wait()
	o.rep.Stop()

	var merged error
	for _, e := range errs {
		merged = multierr.Append(merged, e)
	}
	return merged
}

func (o *Orchestrator) watchBudget(ctx context.Context, stopped *atomic.Bool, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total := o.core.TotalCount() + o.core.TotalErrors() + o.core.TotalTimeouts()
			if int64(total) >= o.cfg.TxBudget {
				stopped.Store(true)
				return
			}
		}
	}
}

func durationOrForever(d time.Duration) time.Duration {
	if d <= 0 {
		return 365 * 24 * time.Hour
	}
	return d
}

// RunID returns the UUID stamped on this orchestrator's run.
func (o *Orchestrator) RunID() uuid.UUID { return o.runID }

// seed derives a uint64 RNG seed from the run's UUID so that separate runs
// don't share a PRNG sequence.
func (o *Orchestrator) seed() uint64 {
	return binary.BigEndian.Uint64(o.runID[:8])
}

// Core exposes the underlying metrics core, e.g. for export sinks.
func (o *Orchestrator) Core() *metrics.Core { return o.core }
