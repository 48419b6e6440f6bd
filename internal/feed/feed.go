package feed

import (
	"fmt"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"

	"truncfee/internal/model"
)

// Config controls the synthetic market feed.
type Config struct {
	Pools          int
	Steps          int
	StepSeconds    uint64
	StartTime      uint64
	StartTick      int32
	CalmRange      int32
	SpikeMagnitude int32
	SpikeProb      float64
	Seed           int64
}

// Feed generates a deterministic per-pool tick random walk with occasional
// volatility spikes, round-robin across pools.
type Feed struct {
	cfg   Config
	rng   *rand.Rand
	ticks []int32
	step  int
}

// New validates the config and builds a feed.
func New(cfg Config) (*Feed, error) {
	if cfg.Pools <= 0 {
		return nil, fmt.Errorf("pools must be positive")
	}
	if cfg.Steps <= 0 {
		return nil, fmt.Errorf("steps must be positive")
	}
	if cfg.StepSeconds == 0 {
		return nil, fmt.Errorf("step seconds must be positive")
	}
	if cfg.CalmRange < 0 || cfg.SpikeMagnitude < 0 {
		return nil, fmt.Errorf("tick ranges must be non-negative")
	}
	if cfg.SpikeProb < 0 || cfg.SpikeProb > 1 {
		return nil, fmt.Errorf("spike probability outside [0, 1]")
	}

	ticks := make([]int32, cfg.Pools)
	for i := range ticks {
		ticks[i] = cfg.StartTick
	}

	return &Feed{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		ticks: ticks,
	}, nil
}

// PoolID returns the deterministic pool identifier for an index.
func PoolID(index int) common.Hash {
	return common.BytesToHash([]byte(fmt.Sprintf("sim-pool-%d", index)))
}

// Next returns the next tick event, or false when the feed is exhausted.
func (f *Feed) Next() (model.TickEvent, bool) {
	if f.step >= f.cfg.Steps*f.cfg.Pools {
		return model.TickEvent{}, false
	}

	poolIdx := f.step % f.cfg.Pools
	round := f.step / f.cfg.Pools
	f.step++

	delta := int32(0)
	if f.cfg.CalmRange > 0 {
		delta = int32(f.rng.Intn(int(2*f.cfg.CalmRange+1))) - f.cfg.CalmRange
	}
	if f.cfg.SpikeMagnitude > 0 && f.rng.Float64() < f.cfg.SpikeProb {
		if f.rng.Intn(2) == 0 {
			delta += f.cfg.SpikeMagnitude
		} else {
			delta -= f.cfg.SpikeMagnitude
		}
	}
	f.ticks[poolIdx] += delta

	return model.TickEvent{
		Pool:      PoolID(poolIdx).Hex(),
		Timestamp: f.cfg.StartTime + uint64(round+1)*f.cfg.StepSeconds,
		Tick:      f.ticks[poolIdx],
		Source:    "sim",
	}, true
}
