// Package batch drives full analysis passes: one orchestrated
// configuration → container → analysis → summary pass per run
// configuration, and a multi-run driver with failure isolation, result
// caching and post-batch aggregation.
package batch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors for run configurations.
var (
	// ErrEmptyRunList indicates a run configuration without entries.
	ErrEmptyRunList = errors.New("run configuration has an empty run_list")
	// ErrMissingParamConfig indicates a run entry without a discovery
	// location.
	ErrMissingParamConfig = errors.New("run entry has no param_config")
	// ErrMissingFnConfig indicates a run entry without a function
	// binding file and no override.
	ErrMissingFnConfig = errors.New("run entry has no fn_config")
	// ErrBadCacheCodec indicates an unknown cache codec name.
	ErrBadCacheCodec = errors.New("unknown cache codec")
)

// Cache codec names accepted in run configurations.
const (
	CodecJSON   = "json"
	CodecGob    = "gob"
	CodecGobLZ4 = "gob.lz4"
)

// AfterBatchSave is the after_batch value selecting the default save
// behavior with no callback.
const AfterBatchSave = "save"

// envPrefix namespaces environment overrides (NEUROBATCH_MERGE=false).
const envPrefix = "NEUROBATCH"

// RunEntry is one batch iteration: a parameter-discovery location and a
// function-binding file, plus optional per-entry option overrides.
type RunEntry struct {
	// ParamConfig is the discovery root directory or a single recording
	// parameter file.
	ParamConfig string `mapstructure:"param_config"`
	// FnConfig is the function-binding file for this entry.
	FnConfig string `mapstructure:"fn_config"`
	// Overrides adjusts pass options for this entry only.
	Overrides map[string]any `mapstructure:"overrides"`
}

// CacheConfig holds batch cache settings.
type CacheConfig struct {
	// Codec selects the dump format: json, gob or gob.lz4.
	Codec string `mapstructure:"codec"`
	// Overwrite forces re-execution even when a dump exists.
	Overwrite bool `mapstructure:"overwrite"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Config is a full batch run configuration.
type Config struct {
	// RunList names the iterations to execute, in order.
	RunList []RunEntry `mapstructure:"run_list"`
	// AfterBatch names a registered post-batch callback, or "save" for
	// the default persistence-only behavior.
	AfterBatch string `mapstructure:"after_batch"`
	// KeepAllData keeps full pass results in memory on the runner.
	KeepAllData bool `mapstructure:"keep_all_data"`
	// HandleErrors isolates per-iteration failures instead of aborting.
	HandleErrors bool `mapstructure:"handle_errors"`
	// Merge consolidates per-recording CSV outputs after a fresh pass.
	Merge bool `mapstructure:"merge"`

	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// LoadConfig loads a run configuration file with defaults and
// environment overrides applied.
func LoadConfig(path string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	viperCfg.SetConfigFile(path)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read run configuration %s: %w", path, readErr)
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal run configuration: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid run configuration %s: %w", path, validateErr)
	}

	return &config, nil
}

// setDefaults sets default run configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("after_batch", AfterBatchSave)
	viperCfg.SetDefault("keep_all_data", false)
	viperCfg.SetDefault("handle_errors", false)
	viperCfg.SetDefault("merge", true)

	viperCfg.SetDefault("cache.codec", CodecGobLZ4)
	viperCfg.SetDefault("cache.overwrite", false)

	viperCfg.SetDefault("logging.level", "info")
}

// validateConfig validates a loaded run configuration.
func validateConfig(config *Config) error {
	if len(config.RunList) == 0 {
		return ErrEmptyRunList
	}

	for i, entry := range config.RunList {
		if entry.ParamConfig == "" {
			return fmt.Errorf("%w: entry %d", ErrMissingParamConfig, i)
		}
	}

	switch config.Cache.Codec {
	case CodecJSON, CodecGob, CodecGobLZ4:
	default:
		return fmt.Errorf("%w: %q", ErrBadCacheCodec, config.Cache.Codec)
	}

	return nil
}
