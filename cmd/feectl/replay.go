package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"truncfee/internal/config"
	"truncfee/internal/sim"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input file is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := sim.NewJsonlSource(cfg.In, logger)
	if err != nil {
		return err
	}
	defer source.Close()

	runner, cleanup, err := buildRunner(ctx, logger, cfg.Policy, pipelineConfig{
		Out:       cfg.Out,
		PgDSN:     cfg.PgDSN,
		BatchSize: cfg.BatchSize,
		StateFile: cfg.StateFile,
		StateName: "replay",
		Token:     cfg.Token,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("replay start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.Int("batch_size", cfg.BatchSize),
	)

	return runner.Run(ctx, source)
}
