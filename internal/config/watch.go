package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// WatchConfig holds settings for the live pool-watching command.
type WatchConfig struct {
	RPCURL       string
	Pools        []string
	PollInterval time.Duration
	Out          string
	PgDSN        string
	BatchSize    int
	Token        string
	LogLevel     string

	Policy PolicyConfig
}

// LoadWatch merges config file, environment variables, and flags into
// WatchConfig.
func LoadWatch(cfgFile string, flags *pflag.FlagSet) (WatchConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return WatchConfig{}, err
	}

	v.SetDefault("poll-interval", 3*time.Second)
	v.SetDefault("out", "./data/fee_snapshots.jsonl")
	v.SetDefault("batch-size", 16)
	v.SetDefault("token", "feectl")
	v.SetDefault("log-level", "info")

	cfg := WatchConfig{
		RPCURL:       v.GetString("rpc"),
		Pools:        getStringSlice(v, "pool"),
		PollInterval: v.GetDuration("poll-interval"),
		Out:          v.GetString("out"),
		PgDSN:        v.GetString("pg-dsn"),
		BatchSize:    v.GetInt("batch-size"),
		Token:        v.GetString("token"),
		LogLevel:     v.GetString("log-level"),
		Policy:       policyFromViper(v),
	}

	return cfg, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
