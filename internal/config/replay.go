package config

import (
	"github.com/spf13/pflag"
)

// ReplayConfig holds settings for the JSONL tick-event replay command.
type ReplayConfig struct {
	In        string
	Out       string
	PgDSN     string
	BatchSize int
	StateFile string
	Token     string
	LogLevel  string

	Policy PolicyConfig
}

// LoadReplay merges config file, environment variables, and flags into
// ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return ReplayConfig{}, err
	}

	v.SetDefault("out", "./data/fee_snapshots.jsonl")
	v.SetDefault("batch-size", 256)
	v.SetDefault("token", "feectl")
	v.SetDefault("log-level", "info")

	cfg := ReplayConfig{
		In:        v.GetString("in"),
		Out:       v.GetString("out"),
		PgDSN:     v.GetString("pg-dsn"),
		BatchSize: v.GetInt("batch-size"),
		StateFile: v.GetString("state-file"),
		Token:     v.GetString("token"),
		LogLevel:  v.GetString("log-level"),
		Policy:    policyFromViper(v),
	}

	return cfg, nil
}
