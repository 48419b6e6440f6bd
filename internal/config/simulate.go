package config

import (
	"github.com/spf13/pflag"
)

// SimulateConfig holds settings for the synthetic-feed simulation command.
type SimulateConfig struct {
	Pools          int
	Steps          int
	StepSeconds    uint64
	StartTime      uint64
	StartTick      int32
	CalmRange      int32
	SpikeMagnitude int32
	SpikeProb      float64
	Seed           int64

	Out       string
	PgDSN     string
	BatchSize int
	StateFile string
	Token     string
	LogLevel  string

	Policy PolicyConfig
}

// LoadSimulate merges config file, environment variables, and flags into
// SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return SimulateConfig{}, err
	}

	v.SetDefault("pools", 1)
	v.SetDefault("steps", 24)
	v.SetDefault("step-seconds", uint64(3600))
	v.SetDefault("start-time", uint64(1))
	v.SetDefault("calm-range", int32(5))
	v.SetDefault("spike-magnitude", int32(0))
	v.SetDefault("spike-prob", 0.0)
	v.SetDefault("out", "./data/fee_snapshots.jsonl")
	v.SetDefault("batch-size", 256)
	v.SetDefault("token", "feectl")
	v.SetDefault("log-level", "info")

	cfg := SimulateConfig{
		Pools:          v.GetInt("pools"),
		Steps:          v.GetInt("steps"),
		StepSeconds:    v.GetUint64("step-seconds"),
		StartTime:      v.GetUint64("start-time"),
		StartTick:      v.GetInt32("start-tick"),
		CalmRange:      v.GetInt32("calm-range"),
		SpikeMagnitude: v.GetInt32("spike-magnitude"),
		SpikeProb:      v.GetFloat64("spike-prob"),
		Seed:           v.GetInt64("seed"),
		Out:            v.GetString("out"),
		PgDSN:          v.GetString("pg-dsn"),
		BatchSize:      v.GetInt("batch-size"),
		StateFile:      v.GetString("state-file"),
		Token:          v.GetString("token"),
		LogLevel:       v.GetString("log-level"),
		Policy:         policyFromViper(v),
	}

	return cfg, nil
}
