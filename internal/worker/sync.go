package worker

import (
	"context"

	"github.com/kvbench/kvbench/internal/kvdb"
	"github.com/kvbench/kvbench/internal/logging"
	"github.com/kvbench/kvbench/internal/metrics"
	"github.com/kvbench/kvbench/internal/valuesource"
	"go.uber.org/zap"
)

// SyncWorker runs one OS thread (goroutine) per worker, looping while
// State.Valid() holds.
type SyncWorker struct {
	id     int
	cfg    Config
	client kvdb.Client
	core   *metrics.Core
	vs     *valuesource.Source
	state  *State
	log    logging.Logger
}

// NewSyncWorker builds one SyncWorker instance.
func NewSyncWorker(id int, cfg Config, client kvdb.Client, core *metrics.Core, vs *valuesource.Source, state *State, log logging.Logger) *SyncWorker {
	return &SyncWorker{id: id, cfg: cfg, client: client, core: core, vs: vs, state: state, log: log}
}

// Run executes the sync loop until State.Valid() returns false or ctx is
// cancelled. A panic escaping the loop body is recovered here and reported
// as a Fatal; it does not propagate to the caller.
func (w *SyncWorker) Run(ctx context.Context) (fatalErr error) {
	defer func() {
		if r := recover(); r != nil {
			if w.log != nil {
				w.log.Error("sync worker exited fatally", nil, zap.Int("worker_id", w.id), zap.Any("cause", r))
			}
			fatalErr = &Fatal{WorkerID: w.id, Cause: r}
		}
	}()

	for w.state.Valid() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		elapsed, err := issueSync(ctx, w.client, w.cfg, w.vs, w.state)
		recordOutcome(w.core, elapsed, err, w.cfg.Latency)

		throttle(w.core, w.cfg.TargetTPS)
	}
	return nil
}
