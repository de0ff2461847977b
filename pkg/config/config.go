// Package config provides a reusable loader for the aggregator's
// configuration files and environment variables. It is versioned so that
// other binaries in this module can depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/veilchain/aggregator/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for an aggregator process. It mirrors
// the YAML files under cmd/aggregator/config.
type Config struct {
	Rollup struct {
		Size              int           `mapstructure:"size" json:"size"`
		MaxRollupWaitTime time.Duration `mapstructure:"max_wait" json:"max_wait"`
		MinRollupInterval time.Duration `mapstructure:"min_interval" json:"min_interval"`
	} `mapstructure:"rollup" json:"rollup"`

	Chain struct {
		RPCEndpoint        string   `mapstructure:"rpc_endpoint" json:"rpc_endpoint"`
		ProcessorAddress   string   `mapstructure:"processor_address" json:"processor_address"`
		Confirmations      uint64   `mapstructure:"confirmations" json:"confirmations"`
		SupportedAssets    []string `mapstructure:"supported_assets" json:"supported_assets"`
		GasLimit           uint64   `mapstructure:"gas_limit" json:"gas_limit"`
		ChainID            int64    `mapstructure:"chain_id" json:"chain_id"`
		KeystorePath       string   `mapstructure:"keystore_path" json:"keystore_path"`
		KeystorePassphrase string   `mapstructure:"keystore_passphrase" json:"keystore_passphrase"`
		SubmitterAddress   string   `mapstructure:"submitter_address" json:"submitter_address"`
	} `mapstructure:"chain" json:"chain"`

	ProofGenerator struct {
		BinaryPath     string        `mapstructure:"binary_path" json:"binary_path"`
		RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"`
	} `mapstructure:"prover" json:"prover"`

	Verifier struct {
		WasmPath string `mapstructure:"wasm_path" json:"wasm_path"`
	} `mapstructure:"verifier" json:"verifier"`

	Fees struct {
		TxsPerRollup          uint32            `mapstructure:"txs_per_rollup" json:"txs_per_rollup"`
		PublishIntervalSecs   int64             `mapstructure:"publish_interval_secs" json:"publish_interval_secs"`
		FeeGasPriceMultiplier float64           `mapstructure:"fee_gas_price_multiplier" json:"fee_gas_price_multiplier"`
		NativeAssetID         uint32            `mapstructure:"native_asset_id" json:"native_asset_id"`
		AssetPricesWei        map[string]string `mapstructure:"asset_prices_wei" json:"asset_prices_wei"`
	} `mapstructure:"fees" json:"fees"`

	Control struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"control" json:"control"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig, validated,
// and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/aggregator/config")
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

	viper.AutomaticEnv() // env overrides named after the upper-cased config key; no AGG_ prefix is set

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	if err := Validate(&AppConfig); err != nil {
		return nil, err
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the AGG_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("AGG_ENV", ""))
}

// ConfigError marks a startup-time configuration problem. Per the fail-fast
// error handling design, the aggregator refuses to start rather than run
// with an inconsistent rollup/timing policy.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "config: " + e.Reason }

// Validate checks the cross-field invariants the spec requires before the
// aggregator is allowed to start: rollupSize must be a power of two, and
// minRollupInterval must not exceed maxRollupWaitTime.
func Validate(cfg *Config) error {
	if cfg.Rollup.Size <= 0 || cfg.Rollup.Size&(cfg.Rollup.Size-1) != 0 {
		return &ConfigError{Reason: fmt.Sprintf("rollup.size %d is not a power of two", cfg.Rollup.Size)}
	}
	if cfg.Rollup.MinRollupInterval > cfg.Rollup.MaxRollupWaitTime {
		return &ConfigError{Reason: fmt.Sprintf(
			"rollup.min_interval (%s) exceeds rollup.max_wait (%s)",
			cfg.Rollup.MinRollupInterval, cfg.Rollup.MaxRollupWaitTime)}
	}
	return nil
}
