package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"truncfee/internal/config"
	"truncfee/internal/fee"
	"truncfee/internal/feed"
	"truncfee/internal/oracle"
	"truncfee/internal/policy"
	"truncfee/internal/sim"
	"truncfee/internal/storage"
	"truncfee/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "feectl",
		Short:        "Adaptive dynamic fee controller",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the controller over a synthetic market feed",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().Int("pools", 1, "number of simulated pools")
	simulateCmd.Flags().Int("steps", 24, "steps per pool")
	simulateCmd.Flags().Uint64("step-seconds", 3600, "seconds between steps")
	simulateCmd.Flags().Uint64("start-time", 1, "unix timestamp of the first step")
	simulateCmd.Flags().Int32("start-tick", 0, "initial tick for every pool")
	simulateCmd.Flags().Int32("calm-range", 5, "max per-step tick drift")
	simulateCmd.Flags().Int32("spike-magnitude", 0, "tick magnitude of volatility spikes")
	simulateCmd.Flags().Float64("spike-prob", 0, "per-step spike probability [0, 1]")
	simulateCmd.Flags().Int64("seed", 0, "random seed")
	simulateCmd.Flags().String("out", "./data/fee_snapshots.jsonl", "output JSONL path")
	simulateCmd.Flags().String("pg-dsn", "", "Postgres DSN (optional)")
	simulateCmd.Flags().Int("batch-size", 256, "snapshot batch size")
	simulateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	simulateCmd.Flags().String("token", "feectl", "controller write token")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	addPolicyFlags(simulateCmd.Flags())

	root.AddCommand(simulateCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded tick events through the controller",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input tick events JSONL")
	replayCmd.Flags().String("out", "./data/fee_snapshots.jsonl", "output JSONL path")
	replayCmd.Flags().String("pg-dsn", "", "Postgres DSN (optional)")
	replayCmd.Flags().Int("batch-size", 256, "snapshot batch size")
	replayCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	replayCmd.Flags().String("token", "feectl", "controller write token")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	addPolicyFlags(replayCmd.Flags())

	root.AddCommand(replayCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Drive the controller from live pool ticks",
		RunE:  runWatch,
	}

	watchCmd.Flags().String("rpc", "", "RPC URL")
	watchCmd.Flags().StringSlice("pool", nil, "pool addresses (comma-separated)")
	watchCmd.Flags().Duration("poll-interval", 3*time.Second, "chain poll interval")
	watchCmd.Flags().String("out", "./data/fee_snapshots.jsonl", "output JSONL path")
	watchCmd.Flags().String("pg-dsn", "", "Postgres DSN (optional)")
	watchCmd.Flags().Int("batch-size", 16, "snapshot batch size")
	watchCmd.Flags().String("token", "feectl", "controller write token")
	watchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	addPolicyFlags(watchCmd.Flags())

	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPolicyFlags(fs *pflag.FlagSet) {
	fs.Uint32("target-caps-per-day", 0, "target cap events per day (0 = default)")
	fs.Uint32("decay-window", 0, "cap budget decay window seconds (0 = default)")
	fs.Uint32("min-base-fee", 0, "minimum base fee ppm (0 = default)")
	fs.Uint32("max-base-fee", 0, "maximum base fee ppm (0 = default)")
	fs.Uint32("max-step", 0, "max base fee step ppm (0 = default)")
	fs.Uint32("fee-update-interval", 0, "base fee update interval seconds (0 = default)")
	fs.Uint32("surge-decay", 0, "surge decay period seconds (0 = default)")
	fs.Uint32("surge-multiplier", 0, "surge fee multiplier ppm (0 = default)")
	fs.Int32("max-tick-move", 0, "max tick move per reference unit (0 = default)")
	fs.String("cap-granularity", "", "cap granularity: step or block (empty = default)")
	fs.Uint32("default-base-fee", 0, "fallback initial base fee ppm (0 = default)")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := feed.New(feed.Config{
		Pools:          cfg.Pools,
		Steps:          cfg.Steps,
		StepSeconds:    cfg.StepSeconds,
		StartTime:      cfg.StartTime,
		StartTick:      cfg.StartTick,
		CalmRange:      cfg.CalmRange,
		SpikeMagnitude: cfg.SpikeMagnitude,
		SpikeProb:      cfg.SpikeProb,
		Seed:           cfg.Seed,
	})
	if err != nil {
		return fmt.Errorf("build feed: %w", err)
	}

	runner, cleanup, err := buildRunner(ctx, logger, cfg.Policy, pipelineConfig{
		Out:       cfg.Out,
		PgDSN:     cfg.PgDSN,
		BatchSize: cfg.BatchSize,
		StateFile: cfg.StateFile,
		StateName: "simulate",
		Token:     cfg.Token,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("simulate start",
		zap.Int("pools", cfg.Pools),
		zap.Int("steps", cfg.Steps),
		zap.Uint64("step_seconds", cfg.StepSeconds),
		zap.Int64("seed", cfg.Seed),
		zap.String("out", cfg.Out),
	)

	return runner.Run(ctx, source)
}

// pipelineConfig carries the sink and checkpoint settings shared by all
// commands.
type pipelineConfig struct {
	Out       string
	PgDSN     string
	BatchSize int
	StateFile string
	StateName string
	Token     string
}

// buildRunner wires the policy provider, oracle store, fee controller, sinks,
// and state store into a runner. The returned cleanup closes the Postgres
// pool when one was opened.
func buildRunner(ctx context.Context, logger *zap.Logger, policyCfg config.PolicyConfig, cfg pipelineConfig) (*sim.Runner, func(), error) {
	params, err := policyCfg.ToParams()
	if err != nil {
		return nil, nil, err
	}
	provider, err := policy.NewProvider(params)
	if err != nil {
		return nil, nil, err
	}

	collector := sim.NewCollector()
	ctrl := fee.NewController(provider, sim.PolicyCapacity{Provider: provider}, fee.WriteToken(cfg.Token), collector, logger)
	store := oracle.NewStore(logger)

	var sinks []storage.Sink
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlSink(cfg.Out))
	}

	cleanup := func() {}
	var stateStore sim.StateStore
	if cfg.PgDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PgDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		cleanup = pg.Close
		sinks = append(sinks, pg)
		stateStore = &sim.DBStateStore{Store: pg, Name: cfg.StateName}
	}
	if cfg.StateFile != "" {
		stateStore = &sim.FileStateStore{Path: cfg.StateFile}
	}

	runner := sim.NewRunner(sim.RunConfig{
		Token:      fee.WriteToken(cfg.Token),
		BatchSize:  cfg.BatchSize,
		StateStore: stateStore,
	}, store, ctrl, provider, collector, sinks, logger)

	return runner, cleanup, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
