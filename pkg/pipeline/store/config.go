// Package store provides access to relational stores: opening source stores
// and the warehouse through GORM, and inspecting their schemas as data.
package store

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DatabaseConfig holds connection settings for one relational store.
// Source stores are read-only to the pipeline; the warehouse is the sole
// write target.
type DatabaseConfig struct {
	Type     string `yaml:"type" mapstructure:"type"`         // Store type ("sqlite", "mysql", "postgres").
	Host     string `yaml:"host" mapstructure:"host"`         // Host address (unused for sqlite).
	Port     int    `yaml:"port" mapstructure:"port"`         // Port number (unused for sqlite).
	Database string `yaml:"database" mapstructure:"database"` // Database name, or sqlite file path.
	User     string `yaml:"user" mapstructure:"user"`         // User (unused for sqlite).
	Password string `yaml:"password" mapstructure:"password"` // Password (unused for sqlite).
	Sslmode  string `yaml:"sslmode" mapstructure:"sslmode"`   // SSL mode for postgres connections.
}

// DecodeConfig decodes a raw per-store configuration map (as parsed from the
// `krishi.sources` YAML section) into a DatabaseConfig. The type defaults to
// "sqlite" when omitted, matching the dominant source-store format.
func DecodeConfig(raw map[string]interface{}) (DatabaseConfig, error) {
	var cfg DatabaseConfig
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return DatabaseConfig{}, fmt.Errorf("failed to decode store config: %w", err)
	}
	if cfg.Type == "" {
		cfg.Type = "sqlite"
	}
	return cfg, nil
}
