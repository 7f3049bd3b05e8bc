package config

// Package config provides a reusable loader for the engine's configuration
// files and environment variables.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"ruleengine/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// EngineConfig is the unified configuration for a ruleengine process: the
// in-process engine tunables plus the demo CLI's own settings. It has the
// structure Load expects in default.yaml and an optional <env>.yaml,
// looked up under cmd/ruleengine/config and config.
type EngineConfig struct {
	Store struct {
		Partitions    int      `mapstructure:"partitions" json:"partitions"`
		IndexedFields []string `mapstructure:"indexed_fields" json:"indexed_fields"`
	} `mapstructure:"store" json:"store"`

	Network struct {
		TokenPoolSize int `mapstructure:"token_pool_size" json:"token_pool_size"`
	} `mapstructure:"network" json:"network"`

	Batch struct {
		ParallelThreshold int `mapstructure:"parallel_threshold" json:"parallel_threshold"`
		MaxCreatedFacts   int `mapstructure:"max_created_facts" json:"max_created_facts"`
		TimeoutMS         int `mapstructure:"timeout_ms" json:"timeout_ms"`
	} `mapstructure:"batch" json:"batch"`

	Calculator struct {
		CompiledCacheSize int `mapstructure:"compiled_cache_size" json:"compiled_cache_size"`
		MemoCacheSize     int `mapstructure:"memo_cache_size" json:"memo_cache_size"`
	} `mapstructure:"calculator" json:"calculator"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig EngineConfig

// Default returns the configuration used when no file is present.
func Default() EngineConfig {
	var c EngineConfig
	c.Store.Partitions = 1
	c.Store.IndexedFields = []string{"entity_id", "id", "user_id", "customer_id", "status", "category"}
	c.Network.TokenPoolSize = 4096
	c.Batch.ParallelThreshold = 10000
	c.Batch.MaxCreatedFacts = 10000
	c.Batch.TimeoutMS = 30000
	c.Calculator.CompiledCacheSize = 1024
	c.Calculator.MemoCacheSize = 4096
	c.Logging.Level = "info"
	return c
}

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// If env is empty, only the default configuration is loaded. A missing
// config file is not an error: the defaults from Default are used instead.
func Load(env string) (*EngineConfig, error) {
	AppConfig = Default()

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/ruleengine/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
			}
		}
	}

	viper.AutomaticEnv() // no prefix is set: variables match upper-cased key names

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the RULEENGINE_ENV environment
// variable to select an overlay file.
func LoadFromEnv() (*EngineConfig, error) {
	return Load(utils.EnvOrDefault("RULEENGINE_ENV", ""))
}
