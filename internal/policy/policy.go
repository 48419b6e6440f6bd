package policy

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrParameterOutOfRange is returned when supplied parameters violate their
// documented bounds.
var ErrParameterOutOfRange = errors.New("policy: parameter out of range")

// Granularity selects the reference tick used for cap classification.
type Granularity string

const (
	// PerStep compares against the immediately preceding recorded
	// observation.
	PerStep Granularity = "step"
	// PerBlock compares against the tick at the start of the current
	// discrete time unit.
	PerBlock Granularity = "block"
)

// Params are the tuning knobs the fee controller reads. All fee and ratio
// values are parts-per-million.
type Params struct {
	TargetCapsPerDay             uint32      `json:"target_caps_per_day"`
	CapBudgetDecayWindowSeconds  uint32      `json:"cap_budget_decay_window_seconds"`
	FreqScalingUnit              *big.Int    `json:"-"`
	MinBaseFeePpm                uint32      `json:"min_base_fee_ppm"`
	MaxBaseFeePpm                uint32      `json:"max_base_fee_ppm"`
	MaxStepPpm                   uint32      `json:"max_step_ppm"`
	BaseFeeUpdateIntervalSeconds uint32      `json:"base_fee_update_interval_seconds"`
	SurgeDecayPeriodSeconds      uint32      `json:"surge_decay_period_seconds"`
	SurgeFeeMultiplierPpm        uint32      `json:"surge_fee_multiplier_ppm"`
	MaxAbsTickMove               int32       `json:"max_abs_tick_move"`
	CapGranularity               Granularity `json:"cap_granularity"`
	DefaultBaseFeePpm            uint32      `json:"default_base_fee_ppm"`
	BaseFeeFactorPpm             uint32      `json:"base_fee_factor_ppm"`
}

// Defaults mirror the reference deployment: 3000 ppm starting fee bounded to
// [100, 50000] ppm, a daily cap budget, and hourly fee cadence.
func Defaults() Params {
	return Params{
		TargetCapsPerDay:             4,
		CapBudgetDecayWindowSeconds:  86_400,
		FreqScalingUnit:              new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil),
		MinBaseFeePpm:                100,
		MaxBaseFeePpm:                50_000,
		MaxStepPpm:                   20_000,
		BaseFeeUpdateIntervalSeconds: 3_600,
		SurgeDecayPeriodSeconds:      3_600,
		SurgeFeeMultiplierPpm:        3_000_000,
		MaxAbsTickMove:               100,
		CapGranularity:               PerStep,
		DefaultBaseFeePpm:            3_000,
		BaseFeeFactorPpm:             60,
	}
}

// Validate checks the documented bounds.
func (p Params) Validate() error {
	if p.MinBaseFeePpm > p.MaxBaseFeePpm {
		return fmt.Errorf("%w: min base fee %d exceeds max %d", ErrParameterOutOfRange, p.MinBaseFeePpm, p.MaxBaseFeePpm)
	}
	if p.MaxBaseFeePpm > 1_000_000 {
		return fmt.Errorf("%w: max base fee %d exceeds 100%%", ErrParameterOutOfRange, p.MaxBaseFeePpm)
	}
	if p.TargetCapsPerDay == 0 {
		return fmt.Errorf("%w: target caps per day must be positive", ErrParameterOutOfRange)
	}
	if p.CapBudgetDecayWindowSeconds == 0 {
		return fmt.Errorf("%w: decay window must be positive", ErrParameterOutOfRange)
	}
	if p.FreqScalingUnit == nil || p.FreqScalingUnit.Sign() <= 0 {
		return fmt.Errorf("%w: freq scaling unit must be positive", ErrParameterOutOfRange)
	}
	if p.MaxStepPpm == 0 || p.MaxStepPpm > 1_000_000 {
		return fmt.Errorf("%w: max step %d outside (0, 1e6]", ErrParameterOutOfRange, p.MaxStepPpm)
	}
	if p.SurgeFeeMultiplierPpm > 100_000_000 {
		return fmt.Errorf("%w: surge multiplier %d exceeds 100x", ErrParameterOutOfRange, p.SurgeFeeMultiplierPpm)
	}
	if p.MaxAbsTickMove < 0 {
		return fmt.Errorf("%w: max abs tick move must be non-negative", ErrParameterOutOfRange)
	}
	switch p.CapGranularity {
	case PerStep, PerBlock:
	default:
		return fmt.Errorf("%w: unknown cap granularity %q", ErrParameterOutOfRange, p.CapGranularity)
	}
	return nil
}

// Provider resolves parameters per pool with a global default fallback.
type Provider struct {
	mu        sync.RWMutex
	defaults  Params
	overrides map[common.Hash]Params
}

// NewProvider builds a provider from validated defaults.
func NewProvider(defaults Params) (*Provider, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return &Provider{
		defaults:  defaults,
		overrides: make(map[common.Hash]Params),
	}, nil
}

// SetOverride installs pool-specific parameters.
func (p *Provider) SetOverride(pool common.Hash, params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	p.overrides[pool] = params
	p.mu.Unlock()
	return nil
}

// ParamsFor returns the pool's parameters, falling back to the defaults.
func (p *Provider) ParamsFor(pool common.Hash) Params {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if params, ok := p.overrides[pool]; ok {
		return params
	}
	return p.defaults
}
