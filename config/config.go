// Package config loads node configuration and holds the small set of
// protocol constants (the peer punishment bounds) that the rest
// of the module treats as fixed parameters rather than deriving from
// the chain or sync packages themselves. Loading follows the pack's own
// viper + mapstructure idiom (pkg/config/config.go).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bazukachain/bazuka/chain"
)

// Punishment bounds, applied by node.Context.Punish per spec.md §7:
// punished_until = min(max(punished_until, now)+secs, now+MaxPunish).
const (
	// MinPunish is the backoff applied for a transient fault (a peer
	// that simply failed to answer in time).
	MinPunish uint32 = 30
	// MaxPunish is the ceiling on how far into the future punished_until
	// may ever be pushed, regardless of how many faults accumulate.
	MaxPunish uint32 = 3600
	// MisbehaviorPunish is the backoff applied when a peer actively
	// offered invalid data (a failed chain extension), harsher than a
	// mere timeout.
	MisbehaviorPunish uint32 = 300
)

// Config is the unified node configuration, loaded from an optional YAML
// file plus environment overrides (mirrors pkg/config/config.go's shape,
// trimmed to what this node actually needs).
type Config struct {
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Storage struct {
		DBPath          string `mapstructure:"db_path"`
		LRUCacheEntries int    `mapstructure:"lru_cache_entries"`
	} `mapstructure:"storage"`

	Chain struct {
		PoWEnabled      bool `mapstructure:"pow_enabled"`
		HeaderCacheSize int  `mapstructure:"header_cache_size"`
	} `mapstructure:"chain"`

	Heartbeat struct {
		IntervalSeconds int `mapstructure:"interval_seconds"`
	} `mapstructure:"heartbeat"`
}

// Default returns the configuration a freshly initialized node starts
// with, before any file or environment overrides are merged in.
func Default() Config {
	var c Config
	c.Log.Level = "info"
	c.Storage.LRUCacheEntries = 4096
	c.Chain.PoWEnabled = false
	c.Chain.HeaderCacheSize = chain.DefaultParams().HeaderCacheSize
	c.Heartbeat.IntervalSeconds = 10
	return c
}

// Load reads an optional YAML config file at path (skipped if path is
// empty or the file does not exist) and merges in environment variable
// overrides prefixed BAZUKA_, on top of Default(). A .env file in the
// working directory, if present, is loaded into the process environment
// first (the pack's own cmd/cli idiom, e.g. warehouse.go's
// `_ = godotenv.Load()`), so BAZUKA_* overrides can live there too.
func Load(path string) (Config, error) {
	_ = godotenv.Load()
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BAZUKA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("storage.db_path", cfg.Storage.DBPath)
	v.SetDefault("storage.lru_cache_entries", cfg.Storage.LRUCacheEntries)
	v.SetDefault("chain.pow_enabled", cfg.Chain.PoWEnabled)
	v.SetDefault("chain.header_cache_size", cfg.Chain.HeaderCacheSize)
	v.SetDefault("heartbeat.interval_seconds", cfg.Heartbeat.IntervalSeconds)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
				return cfg, fmt.Errorf("config: reading %s: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// ChainParams derives chain.Params from this config, for passing to
// chain.New.
func (c Config) ChainParams() chain.Params {
	p := chain.DefaultParams()
	p.PoWEnabled = c.Chain.PoWEnabled
	if c.Chain.HeaderCacheSize > 0 {
		p.HeaderCacheSize = c.Chain.HeaderCacheSize
	}
	return p
}
