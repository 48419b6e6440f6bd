package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"truncfee/internal/fee"
	"truncfee/internal/model"
	"truncfee/internal/oracle"
	"truncfee/internal/policy"
	"truncfee/internal/storage"
)

// EventSource yields tick events in timestamp order per pool.
type EventSource interface {
	Next() (model.TickEvent, bool)
}

// RunConfig holds runtime settings for the step runner.
type RunConfig struct {
	Token      fee.WriteToken
	BatchSize  int
	StateStore StateStore
}

// Collector buffers state-change notifications as fee snapshots. It is the
// fee.Notifier handed to the controller; the runner drains it on flush. The
// controller invokes it synchronously from NotifyStep, so no locking is
// needed.
type Collector struct {
	pending []model.FeeSnapshot
}

func NewCollector() *Collector {
	return &Collector{}
}

// NotifyFeeStateChange implements fee.Notifier.
func (c *Collector) NotifyFeeStateChange(change fee.StateChange) {
	c.pending = append(c.pending, model.FeeSnapshot{
		Pool:        change.Pool.Hex(),
		Timestamp:   change.Timestamp,
		BaseFeePpm:  change.BaseFeePpm,
		SurgeFeePpm: change.SurgeFeePpm,
		TotalFeePpm: change.BaseFeePpm + change.SurgeFeePpm,
		InCap:       change.InCap,
		EmittedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// Runner drives tick events through the oracle and the fee controller and
// flushes resulting fee snapshots to the configured sinks. It owns the single
// write path: it holds the controller's write token.
type Runner struct {
	cfg       RunConfig
	store     *oracle.Store
	ctrl      *fee.Controller
	policy    *policy.Provider
	collector *Collector
	sinks     []storage.Sink
	logger    *zap.Logger

	enabled map[common.Hash]bool
}

// NewRunner builds a Runner. collector must be the same value the controller
// was constructed with as its notifier.
func NewRunner(cfg RunConfig, store *oracle.Store, ctrl *fee.Controller, provider *policy.Provider, collector *Collector, sinks []storage.Sink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	if collector == nil {
		collector = NewCollector()
	}
	return &Runner{
		cfg:       cfg,
		store:     store,
		ctrl:      ctrl,
		policy:    provider,
		collector: collector,
		sinks:     sinks,
		logger:    logger,
		enabled:   make(map[common.Hash]bool),
	}
}

// ProcessEvent pushes one tick event through the pipeline. The first event
// seen for a pool seeds the oracle and the fee state instead of stepping.
func (r *Runner) ProcessEvent(ev model.TickEvent) error {
	pool := common.HexToHash(ev.Pool)
	params := r.policy.ParamsFor(pool)
	ts := uint32(ev.Timestamp)

	if !r.enabled[pool] {
		if _, err := r.store.Initialize(pool, ts, ev.Tick); err != nil {
			return fmt.Errorf("enable oracle: %w", err)
		}
		if _, _, err := r.store.Grow(pool, oracle.DefaultSampleCapacity); err != nil {
			return fmt.Errorf("grow oracle: %w", err)
		}
		if err := r.ctrl.Initialize(r.cfg.Token, pool, ev.Timestamp); err != nil {
			return fmt.Errorf("initialize fee state: %w", err)
		}
		r.enabled[pool] = true
		return nil
	}

	var capped bool
	switch params.CapGranularity {
	case policy.PerBlock:
		// Reference is the closing tick of the previous time unit; it must
		// be read before the write rolls the unit forward.
		ref, err := r.store.UnitStartTick(pool, ts)
		if err != nil {
			return fmt.Errorf("unit start tick: %w", err)
		}
		_, capped = oracle.Classify(ref, ev.Tick, params.MaxAbsTickMove)
		if _, _, _, err := r.store.Write(pool, ts, ev.Tick, params.MaxAbsTickMove); err != nil {
			return fmt.Errorf("write observation: %w", err)
		}
	default:
		var err error
		if _, _, capped, err = r.store.Write(pool, ts, ev.Tick, params.MaxAbsTickMove); err != nil {
			return fmt.Errorf("write observation: %w", err)
		}
	}

	if err := r.ctrl.NotifyStep(r.cfg.Token, pool, ev.Timestamp, capped); err != nil {
		return fmt.Errorf("notify step: %w", err)
	}
	return nil
}

// Run consumes the source until exhaustion, flushing snapshot batches and
// checkpointing progress.
func (r *Runner) Run(ctx context.Context, source EventSource) error {
	if source == nil {
		return fmt.Errorf("event source is nil")
	}

	resumeFrom := uint64(0)
	if r.cfg.StateStore != nil {
		last, ok, err := r.cfg.StateStore.Load(ctx)
		if err != nil {
			return err
		}
		if ok {
			resumeFrom = last
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last))
		}
	}

	var total, processed, skipped int
	var lastTs uint64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, ok := source.Next()
		if !ok {
			break
		}
		total++

		if resumeFrom > 0 && ev.Timestamp <= resumeFrom {
			skipped++
			continue
		}

		if err := r.ProcessEvent(ev); err != nil {
			return fmt.Errorf("process event pool=%s ts=%d: %w", ev.Pool, ev.Timestamp, err)
		}
		processed++
		if ev.Timestamp > lastTs {
			lastTs = ev.Timestamp
		}

		if len(r.collector.pending) >= r.cfg.BatchSize {
			if err := r.flush(ctx, lastTs); err != nil {
				return err
			}
		}
	}

	if err := r.flush(ctx, lastTs); err != nil {
		return err
	}

	r.logger.Info("run complete",
		zap.Int("total", total),
		zap.Int("processed", processed),
		zap.Int("skipped", skipped),
		zap.Uint64("last_ts", lastTs),
	)
	return nil
}

func (r *Runner) flush(ctx context.Context, lastTs uint64) error {
	if len(r.collector.pending) > 0 {
		for _, sink := range r.sinks {
			if err := sink.PutSnapshotBatch(r.collector.pending); err != nil {
				return fmt.Errorf("flush snapshots: %w", err)
			}
		}
		r.logger.Debug("snapshots flushed", zap.Int("count", len(r.collector.pending)))
		r.collector.pending = r.collector.pending[:0]
	}

	if r.cfg.StateStore != nil && lastTs > 0 {
		if err := r.cfg.StateStore.Save(ctx, lastTs); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	return nil
}

// PolicyCapacity adapts policy parameters into the capacity signal used to
// seed initial base fees: a pool's configured max tick move per block is its
// capacity.
type PolicyCapacity struct {
	Provider *policy.Provider
}

func (c PolicyCapacity) MaxTicksPerBlock(pool common.Hash) (int32, bool) {
	if c.Provider == nil {
		return 0, false
	}
	params := c.Provider.ParamsFor(pool)
	if params.MaxAbsTickMove <= 0 {
		return 0, false
	}
	return params.MaxAbsTickMove, true
}
