package sim

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"truncfee/internal/chain"
	"truncfee/internal/model"
)

// TickReader is the chain surface the watcher polls. *chain.Client satisfies
// it.
type TickReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	CurrentTick(ctx context.Context, pool common.Address) (int32, error)
}

// ChainSource polls live pools for their current tick, one event per pool per
// new block. RPC failures are logged and retried on the next poll.
type ChainSource struct {
	ctx      context.Context
	client   TickReader
	pools    []common.Address
	interval time.Duration
	logger   *zap.Logger

	lastBlock uint64
	queue     []model.TickEvent
}

func NewChainSource(ctx context.Context, client TickReader, pools []common.Address, interval time.Duration, logger *zap.Logger) *ChainSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &ChainSource{
		ctx:      ctx,
		client:   client,
		pools:    pools,
		interval: interval,
		logger:   logger,
	}
}

// Next implements EventSource. It blocks until a new block produces tick
// events or the context is cancelled.
func (s *ChainSource) Next() (model.TickEvent, bool) {
	for {
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			return ev, true
		}

		if err := s.poll(); err != nil {
			s.logger.Warn("poll chain", zap.Error(err))
		}
		if len(s.queue) > 0 {
			continue
		}

		select {
		case <-s.ctx.Done():
			return model.TickEvent{}, false
		case <-time.After(s.interval):
		}
	}
}

func (s *ChainSource) poll() error {
	number, err := s.client.LatestBlockNumber(s.ctx)
	if err != nil {
		return err
	}
	if number <= s.lastBlock {
		return nil
	}

	ts, err := s.client.BlockTimestamp(s.ctx, number)
	if err != nil {
		return err
	}

	for _, pool := range s.pools {
		var tick int32
		err := chain.WithRetry(s.ctx, 2, 200*time.Millisecond, func(ctx context.Context) error {
			var tickErr error
			tick, tickErr = s.client.CurrentTick(ctx, pool)
			return tickErr
		})
		if err != nil {
			s.logger.Warn("read pool tick",
				zap.String("pool", pool.Hex()),
				zap.Uint64("block", number),
				zap.Error(err),
			)
			continue
		}
		s.queue = append(s.queue, model.TickEvent{
			Pool:      common.BytesToHash(pool.Bytes()).Hex(),
			Timestamp: ts,
			Tick:      tick,
			Source:    "chain",
		})
	}

	s.lastBlock = number
	return nil
}
