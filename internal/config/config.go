package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"truncfee/internal/policy"
)

// newViper merges config file, environment variables, and flags.
func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("FEECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

// PolicyConfig carries the controller tuning knobs shared by all commands.
// Zero values fall back to the built-in defaults.
type PolicyConfig struct {
	TargetCapsPerDay uint32
	DecayWindowSecs  uint32
	MinBaseFeePpm    uint32
	MaxBaseFeePpm    uint32
	MaxStepPpm       uint32
	UpdateInterval   uint32
	SurgeDecaySecs   uint32
	SurgeMultiplier  uint32
	MaxTickMove      int32
	Granularity      string
	DefaultBaseFee   uint32
}

func policyFromViper(v *viper.Viper) PolicyConfig {
	return PolicyConfig{
		TargetCapsPerDay: v.GetUint32("target-caps-per-day"),
		DecayWindowSecs:  v.GetUint32("decay-window"),
		MinBaseFeePpm:    v.GetUint32("min-base-fee"),
		MaxBaseFeePpm:    v.GetUint32("max-base-fee"),
		MaxStepPpm:       v.GetUint32("max-step"),
		UpdateInterval:   v.GetUint32("fee-update-interval"),
		SurgeDecaySecs:   v.GetUint32("surge-decay"),
		SurgeMultiplier:  v.GetUint32("surge-multiplier"),
		MaxTickMove:      v.GetInt32("max-tick-move"),
		Granularity:      v.GetString("cap-granularity"),
		DefaultBaseFee:   v.GetUint32("default-base-fee"),
	}
}

// ToParams overlays the configured values on the policy defaults and
// validates the result.
func (c PolicyConfig) ToParams() (policy.Params, error) {
	params := policy.Defaults()

	if c.TargetCapsPerDay != 0 {
		params.TargetCapsPerDay = c.TargetCapsPerDay
	}
	if c.DecayWindowSecs != 0 {
		params.CapBudgetDecayWindowSeconds = c.DecayWindowSecs
	}
	if c.MinBaseFeePpm != 0 {
		params.MinBaseFeePpm = c.MinBaseFeePpm
	}
	if c.MaxBaseFeePpm != 0 {
		params.MaxBaseFeePpm = c.MaxBaseFeePpm
	}
	if c.MaxStepPpm != 0 {
		params.MaxStepPpm = c.MaxStepPpm
	}
	if c.UpdateInterval != 0 {
		params.BaseFeeUpdateIntervalSeconds = c.UpdateInterval
	}
	if c.SurgeDecaySecs != 0 {
		params.SurgeDecayPeriodSeconds = c.SurgeDecaySecs
	}
	if c.SurgeMultiplier != 0 {
		params.SurgeFeeMultiplierPpm = c.SurgeMultiplier
	}
	if c.MaxTickMove != 0 {
		params.MaxAbsTickMove = c.MaxTickMove
	}
	if c.Granularity != "" {
		params.CapGranularity = policy.Granularity(c.Granularity)
	}
	if c.DefaultBaseFee != 0 {
		params.DefaultBaseFeePpm = c.DefaultBaseFee
	}
	params.FreqScalingUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	if err := params.Validate(); err != nil {
		return policy.Params{}, err
	}
	return params, nil
}
