// Package config provides a reusable loader for forknet configuration
// files and environment variables, following the same viper-backed
// contract the original Synnergy config package exposed: named config
// files under a search path, merged with an optional named overlay,
// merged again with environment variables, and unmarshaled into one
// struct callers share as AppConfig.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"forknet/pkg/utils"
)

// Config is the unified configuration for a forked node.
type Config struct {
	Network struct {
		Name           string `mapstructure:"name" json:"name"`
		RemoteURL      string `mapstructure:"remote_url" json:"remote_url"`
		Checkpoint     uint64 `mapstructure:"checkpoint" json:"checkpoint"`
	} `mapstructure:"network" json:"network"`

	RPC struct {
		Port    int  `mapstructure:"port" json:"port"`
		Enabled bool `mapstructure:"enabled" json:"enabled"`
	} `mapstructure:"rpc" json:"rpc"`

	Metrics struct {
		Port    int  `mapstructure:"port" json:"port"`
		Enabled bool `mapstructure:"enabled" json:"enabled"`
	} `mapstructure:"metrics" json:"metrics"`

	Storage struct {
		StatePath string `mapstructure:"state_path" json:"state_path"`
	} `mapstructure:"storage" json:"storage"`

	Gas struct {
		MinBudget     uint64 `mapstructure:"min_budget" json:"min_budget"`
		ReferencePrice uint64 `mapstructure:"reference_price" json:"reference_price"`
	} `mapstructure:"gas" json:"gas"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads default.yaml (from cmd/config or config), merges <env>.yaml
// over it when env is non-empty, and applies any FORKNET_* environment
// overrides (e.g. FORKNET_NETWORK_NAME for network.name) into AppConfig.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("FORKNET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the FORKNET_ENV environment
// variable, falling back to the default config alone if unset.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("FORKNET_ENV", ""))
}

// Defaults returns a Config populated with the CLI's baseline flag
// values, used when no config file is present (e.g. in tests or a
// quick `fork start` with no on-disk config).
func Defaults() Config {
	var c Config
	c.Network.Name = "localnet"
	c.Network.Checkpoint = 0
	c.RPC.Port = 9000
	c.RPC.Enabled = true
	c.Metrics.Port = 9100
	c.Metrics.Enabled = true
	c.Storage.StatePath = "fork-state.bin"
	c.Gas.MinBudget = 2_000_000
	c.Gas.ReferencePrice = 1
	c.Logging.Level = "info"
	return c
}
