package fee

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"truncfee/internal/policy"
)

var (
	// ErrNotInitialized is returned for reads or writes against a pool
	// that was never initialized.
	ErrNotInitialized = errors.New("fee: pool not initialized")
	// ErrUnauthorized is returned when a mutating call does not carry the
	// configured write capability.
	ErrUnauthorized = errors.New("fee: caller is not the authorized writer")
)

const ppmDenominator = 1_000_000

// WriteToken is the capability required for mutating calls. The orchestrator
// that owns the single write path holds it; everything else gets read-only
// access.
type WriteToken string

// PolicySource resolves controller parameters per pool.
type PolicySource interface {
	ParamsFor(pool common.Hash) policy.Params
}

// CapacitySignal reports a pool's max-ticks-per-block capacity, used to seed
// the initial base fee. ok is false when no signal exists yet.
type CapacitySignal interface {
	MaxTicksPerBlock(pool common.Hash) (int32, bool)
}

// StateChange describes an externally observable fee transition.
type StateChange struct {
	Pool        common.Hash
	BaseFeePpm  uint32
	SurgeFeePpm uint32
	InCap       bool
	Timestamp   uint64
}

// Notifier receives state-change notifications for indexing and monitoring.
type Notifier interface {
	NotifyFeeStateChange(change StateChange)
}

// Controller runs the per-pool fee feedback loop. Each pool's state lives in
// one packed word replaced atomically under the write lock, so concurrent
// readers never see a partial update.
type Controller struct {
	mu     sync.RWMutex
	states map[common.Hash]Word

	policy   PolicySource
	capacity CapacitySignal
	notifier Notifier
	token    WriteToken
	logger   *zap.Logger
}

// NewController wires the controller to its collaborators. capacity and
// notifier may be nil.
func NewController(policySource PolicySource, capacity CapacitySignal, token WriteToken, notifier Notifier, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		states:   make(map[common.Hash]Word),
		policy:   policySource,
		capacity: capacity,
		notifier: notifier,
		token:    token,
		logger:   logger,
	}
}

// Initialize seeds a pool's fee state. Re-initializing is a logged notice and
// a no-op, so any orchestrator can call it without special-casing.
func (c *Controller) Initialize(token WriteToken, pool common.Hash, now uint64) error {
	if token != c.token {
		return fmt.Errorf("%w: pool %s", ErrUnauthorized, pool.Hex())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if word, ok := c.states[pool]; ok && !word.IsZero() {
		c.logger.Info("fee state already initialized", zap.String("pool", pool.Hex()))
		return nil
	}

	params := c.policy.ParamsFor(pool)

	base := params.DefaultBaseFeePpm
	if c.capacity != nil {
		if maxTicks, ok := c.capacity.MaxTicksPerBlock(pool); ok && maxTicks > 0 {
			base = uint32(uint64(maxTicks) * uint64(params.BaseFeeFactorPpm))
		}
	}
	base = clampBase(base, params)

	// FreqLastUpdate must be non-zero once initialized so the packed word
	// is distinguishable from the uninitialized sentinel.
	if now == 0 {
		now = 1
	}

	st := State{
		Freq:           new(big.Int),
		BaseFeePpm:     base,
		FreqLastUpdate: now,
		LastFeeUpdate:  now,
	}
	c.states[pool] = st.Pack()

	c.logger.Info("fee state initialized",
		zap.String("pool", pool.Hex()),
		zap.Uint32("base_fee_ppm", base),
		zap.Uint64("now", now),
	)
	return nil
}

// NotifyStep is the single mutating hot path. It applies frequency decay,
// records cap entry/exit, recomputes the base fee on its cadence, and commits
// the new state in one word replace. A step older than the last recorded
// update is dropped rather than producing negative elapsed time.
func (c *Controller) NotifyStep(token WriteToken, pool common.Hash, now uint64, wasCapped bool) error {
	if token != c.token {
		return fmt.Errorf("%w: pool %s", ErrUnauthorized, pool.Hex())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	word, ok := c.states[pool]
	if !ok || word.IsZero() {
		return fmt.Errorf("%w: pool %s", ErrNotInitialized, pool.Hex())
	}

	st := Unpack(word)
	if now < st.FreqLastUpdate {
		c.logger.Debug("stale step dropped",
			zap.String("pool", pool.Hex()),
			zap.Uint64("now", now),
			zap.Uint64("freq_last_update", st.FreqLastUpdate),
		)
		return nil
	}

	params := c.policy.ParamsFor(pool)

	prevInCap := st.InCap
	prevBase := st.BaseFeePpm
	prevSurge := SurgeFee(now, st.CapStart, uint64(params.SurgeDecayPeriodSeconds), st.BaseFeePpm, params.SurgeFeeMultiplierPpm)

	st.Freq = decayFreqLinear(st.Freq, now-st.FreqLastUpdate, uint64(params.CapBudgetDecayWindowSeconds))

	if wasCapped {
		st.InCap = true
		st.CapStart = now
		increment := new(big.Int).Mul(params.FreqScalingUnit, big.NewInt(ppmDenominator))
		st.Freq = addFreqSaturating(st.Freq, increment)
	} else if st.InCap {
		surge := SurgeFee(now, st.CapStart, uint64(params.SurgeDecayPeriodSeconds), st.BaseFeePpm, params.SurgeFeeMultiplierPpm)
		if surge == 0 {
			st.InCap = false
			st.CapStart = 0
		}
	}

	if now-st.LastFeeUpdate >= uint64(params.BaseFeeUpdateIntervalSeconds) {
		st.BaseFeePpm = feedbackStep(st.Freq, st.BaseFeePpm, params)
		st.LastFeeUpdate = now
	}

	st.FreqLastUpdate = now
	c.states[pool] = st.Pack()

	surge := SurgeFee(now, st.CapStart, uint64(params.SurgeDecayPeriodSeconds), st.BaseFeePpm, params.SurgeFeeMultiplierPpm)
	if st.BaseFeePpm != prevBase || surge != prevSurge || st.InCap != prevInCap {
		c.emitChange(StateChange{
			Pool:        pool,
			BaseFeePpm:  st.BaseFeePpm,
			SurgeFeePpm: surge,
			InCap:       st.InCap,
			Timestamp:   now,
		}, prevInCap)
	}
	return nil
}

// GetFeeState returns the current base and surge fee for a pool.
func (c *Controller) GetFeeState(pool common.Hash, now uint64) (uint32, uint32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	word, ok := c.states[pool]
	if !ok || word.IsZero() {
		return 0, 0, fmt.Errorf("%w: pool %s", ErrNotInitialized, pool.Hex())
	}

	st := Unpack(word)
	params := c.policy.ParamsFor(pool)
	surge := SurgeFee(now, st.CapStart, uint64(params.SurgeDecayPeriodSeconds), st.BaseFeePpm, params.SurgeFeeMultiplierPpm)
	return st.BaseFeePpm, surge, nil
}

// IsCapEventActive reports whether the pool is inside a cap event.
func (c *Controller) IsCapEventActive(pool common.Hash) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	word, ok := c.states[pool]
	if !ok || word.IsZero() {
		return false, fmt.Errorf("%w: pool %s", ErrNotInitialized, pool.Hex())
	}
	return Unpack(word).InCap, nil
}

func (c *Controller) emitChange(change StateChange, prevInCap bool) {
	if change.InCap && !prevInCap {
		c.logger.Info("cap event start",
			zap.String("pool", change.Pool.Hex()),
			zap.Uint32("surge_fee_ppm", change.SurgeFeePpm),
			zap.Uint64("ts", change.Timestamp),
		)
	} else if !change.InCap && prevInCap {
		c.logger.Info("cap event end",
			zap.String("pool", change.Pool.Hex()),
			zap.Uint64("ts", change.Timestamp),
		)
	}
	if c.notifier != nil {
		c.notifier.NotifyFeeStateChange(change)
	}
}

// feedbackStep is the rate-limited proportional controller with a dead-band.
// It nudges the base fee so the observed cap frequency tracks the daily
// target, moving at most maxStepPpm of the current fee per invocation.
func feedbackStep(freq *big.Int, baseFeePpm uint32, params policy.Params) uint32 {
	// capsPerDay in ppm-scale fixed point: freq accumulates 1e6-scaled
	// events, so dividing by the scaling unit leaves caps * 1e6.
	num := new(big.Int).Mul(freq, big.NewInt(86_400))
	den := new(big.Int).Mul(params.FreqScalingUnit, new(big.Int).SetUint64(uint64(params.CapBudgetDecayWindowSeconds)))
	capsPerDayPpm := num.Div(num, den)

	deviation := capsPerDayPpm.Div(capsPerDayPpm, new(big.Int).SetUint64(uint64(params.TargetCapsPerDay)))
	deviation.Sub(deviation, big.NewInt(ppmDenominator))

	absDeviation := new(big.Int).Abs(deviation)
	if absDeviation.Cmp(new(big.Int).SetUint64(uint64(params.MaxStepPpm))) < 0 {
		return baseFeePpm
	}

	stepCap := int64(uint64(baseFeePpm) * uint64(params.MaxStepPpm) / ppmDenominator)
	if stepCap < 1 {
		stepCap = 1
	}

	rawStep := new(big.Int).Mul(big.NewInt(int64(baseFeePpm)), deviation)
	rawStep.Quo(rawStep, big.NewInt(ppmDenominator))

	step := clampBig(rawStep, -stepCap, stepCap)
	next := int64(baseFeePpm) + step

	return clampBase64(next, params)
}

func clampBase(base uint32, params policy.Params) uint32 {
	if base < params.MinBaseFeePpm {
		return params.MinBaseFeePpm
	}
	if base > params.MaxBaseFeePpm {
		return params.MaxBaseFeePpm
	}
	return base
}

func clampBase64(base int64, params policy.Params) uint32 {
	if base < int64(params.MinBaseFeePpm) {
		return params.MinBaseFeePpm
	}
	if base > int64(params.MaxBaseFeePpm) {
		return params.MaxBaseFeePpm
	}
	return uint32(base)
}

func clampBig(v *big.Int, lo, hi int64) int64 {
	if v.Cmp(big.NewInt(hi)) > 0 {
		return hi
	}
	if v.Cmp(big.NewInt(lo)) < 0 {
		return lo
	}
	return v.Int64()
}
