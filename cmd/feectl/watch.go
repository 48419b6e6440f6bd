package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"truncfee/internal/chain"
	"truncfee/internal/config"
	"truncfee/internal/sim"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWatch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	pools, err := parsePools(cfg.Pools)
	if err != nil {
		return err
	}
	if len(pools) == 0 {
		return fmt.Errorf("pool list is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer client.Close()

	runner, cleanup, err := buildRunner(ctx, logger, cfg.Policy, pipelineConfig{
		Out:       cfg.Out,
		PgDSN:     cfg.PgDSN,
		BatchSize: cfg.BatchSize,
		StateName: "watch",
		Token:     cfg.Token,
	})
	if err != nil {
		return err
	}
	defer cleanup()

	source := sim.NewChainSource(ctx, client, pools, cfg.PollInterval, logger)

	logger.Info("watch start",
		zap.String("rpc", cfg.RPCURL),
		zap.Int("pools", len(pools)),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("out", cfg.Out),
	)

	return runner.Run(ctx, source)
}

func parsePools(raw []string) ([]common.Address, error) {
	pools := make([]common.Address, 0, len(raw))
	seen := make(map[common.Address]bool)
	for _, item := range raw {
		if !common.IsHexAddress(item) {
			return nil, fmt.Errorf("invalid pool address: %s", item)
		}
		addr := common.HexToAddress(item)
		if seen[addr] {
			continue
		}
		seen[addr] = true
		pools = append(pools, addr)
	}
	return pools, nil
}
