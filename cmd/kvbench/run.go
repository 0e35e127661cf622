package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kvbench/kvbench/internal/config"
	"github.com/kvbench/kvbench/internal/kvdb/pgkv"
	"github.com/kvbench/kvbench/internal/logging"
	"github.com/kvbench/kvbench/internal/orchestrator"
)

// Version, GitCommit, BuildTime are set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "none"
	BuildTime = "unknown"
)

type cliOptions struct {
	configFile string
	workers    int
	duration   time.Duration
	readPct    int
	mode       string
	targetTPS  int64
	txBudget   int64
	initPct    int
	recordsInit int64
}

func rootCmd() *cobra.Command {
	var opts cliOptions

	root := &cobra.Command{
		Use:   "kvbench",
		Short: "Load generator and latency harness for a key/value database",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a benchmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(opts)
		},
	}
	runCmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "path to YAML config file")
	runCmd.Flags().IntVar(&opts.workers, "workers", 0, "override worker_count")
	runCmd.Flags().DurationVarP(&opts.duration, "duration", "d", 0, "run duration (0 = until tx_budget/range exhausted)")
	runCmd.Flags().IntVar(&opts.readPct, "read-pct", -1, "override read_pct")
	runCmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "override mode: sync|async")
	runCmd.Flags().Int64Var(&opts.targetTPS, "target-tps", -1, "override target_tps (0 = unlimited)")
	runCmd.Flags().Int64Var(&opts.txBudget, "tx-budget", -1, "override tx_budget (0 = unlimited)")
	runCmd.Flags().IntVar(&opts.initPct, "init-pct", -1, "override init_pct")
	runCmd.Flags().Int64Var(&opts.recordsInit, "records-init", 0, "number of keys to populate before the workload phase")

	root.AddCommand(runCmd)
	root.AddCommand(versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("kvbench %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
			return nil
		},
	}
}

func runBenchmark(opts cliOptions) error {
	cfg := config.Default()
	if opts.configFile != "" {
		loaded, err := config.Load(opts.configFile)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	applyOverrides(&cfg, opts)

	if err := config.Validate(&cfg); err != nil {
		return err
	}

	log, err := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()

	client, err := pgkv.Connect(ctx, pgkv.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Name,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	}, cfg.Namespace, cfg.Set, log)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	orch, err := orchestrator.New(cfg, client, log)
	if err != nil {
		return err
	}

	recordsInit := opts.recordsInit
	if recordsInit == 0 {
		recordsInit = cfg.Records * int64(cfg.InitPct) / 100
	}
	if recordsInit > 0 {
		if err := orch.RunInit(ctx, recordsInit); err != nil {
			log.Warn("init phase finished with worker failures", zap.Error(err))
		}
	}

	return orch.RunWorkload(ctx, opts.duration)
}

func applyOverrides(cfg *config.BenchmarkConfig, opts cliOptions) {
	if opts.workers > 0 {
		cfg.WorkerCount = opts.workers
	}
	if opts.readPct >= 0 {
		cfg.ReadPct = opts.readPct
	}
	if opts.mode != "" {
		cfg.Mode = config.Mode(opts.mode)
	}
	if opts.targetTPS >= 0 {
		cfg.TargetTPS = opts.targetTPS
	}
	if opts.txBudget >= 0 {
		cfg.TxBudget = opts.txBudget
	}
	if opts.initPct >= 0 {
		cfg.InitPct = opts.initPct
	}
}
