package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/krishi/pkg/pipeline/support/exception"
	"github.com/tigerroll/krishi/pkg/pipeline/support/logger"
)

const moduleName = "config"

// LoadConfig loads configuration from the embedded YAML and environment
// variables. It is expected to be called once during application startup.
//
// Load order:
//  1. `.env` (optional, best effort) so that placeholder expansion sees it.
//  2. Defaults from NewConfig().
//  3. Embedded YAML with ${VAR} placeholders expanded, unmarshaled over the
//     defaults.
//
// envFilePath: path to a .env file; empty means the default lookup.
// embedded: the embedded configuration bytes.
func LoadConfig(envFilePath string, embedded EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	expanded, err := NewOsEnvironmentExpander().Expand(embedded)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to expand environment placeholders in config", err, false)
	}

	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to unmarshal embedded config", err, false)
	}

	if err := validate(cfg); err != nil {
		return nil, exception.NewPipelineError(moduleName, "invalid configuration", err, false)
	}

	return cfg, nil
}

// validate checks the structural requirements the pipeline cannot run without.
// Per-store connectivity problems are intentionally not checked here: a
// missing source store is a per-store skip at run time, not a config error.
func validate(cfg *Config) error {
	if cfg.Krishi.Warehouse.Path == "" {
		return fmt.Errorf("warehouse.path must not be empty")
	}
	if cfg.Krishi.Warehouse.BatchSize <= 0 {
		return fmt.Errorf("warehouse.batch_size must be positive, got %d", cfg.Krishi.Warehouse.BatchSize)
	}
	if len(cfg.Krishi.Resolver.Vocabulary) == 0 {
		return fmt.Errorf("resolver.vocabulary must contain at least one canonical commodity label")
	}
	if cfg.Krishi.Resolver.MinSimilarity < 0 || cfg.Krishi.Resolver.MinSimilarity > 1 {
		return fmt.Errorf("resolver.min_similarity must be within [0, 1], got %g", cfg.Krishi.Resolver.MinSimilarity)
	}
	return nil
}
