// Package config loads the docstore configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DOCSTORE_*, e.g. DOCSTORE_STORAGE_ROOT)
//  2. Configuration file (YAML or TOML)
//  3. Default values
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Search    SearchConfig    `mapstructure:"search"`
	Changelog ChangelogConfig `mapstructure:"changelog"`
}

type LoggingConfig struct {
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level      string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	File       string `mapstructure:"file"`
	JSON       bool   `mapstructure:"json"`
	NoColor    bool   `mapstructure:"no_color"`
	NoTerminal bool   `mapstructure:"no_terminal"`
}

type StorageConfig struct {
	// Root folder holding the public and protected trees
	Root string `mapstructure:"root" validate:"required"`
	// MaxInlineSize is the largest content returned inline; 0 disables the ceiling
	MaxInlineSize int64 `mapstructure:"max_inline_size" validate:"gte=0"`
	LoadWorkers   int   `mapstructure:"load_workers" validate:"gte=1,lte=256"`
}

type SearchConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path of the SQLite database, ":memory:" keeps the index in memory
	Path string `mapstructure:"path" validate:"required_if=Enabled true"`
}

type ChangelogConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Dir           string `mapstructure:"dir" validate:"required_if=Enabled true"`
	SnapshotEvery int    `mapstructure:"snapshot_every" validate:"gte=0"`

	Consul   ConsulConfig   `mapstructure:"consul"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	S3       S3Config       `mapstructure:"s3"`
}

type ConsulConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	Datacenter string `mapstructure:"datacenter"`
	Prefix     string `mapstructure:"prefix"`
}

type PostgresConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

type S3Config struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Bucket    string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"`
}

// Load reads configPath (optional) and the environment on top of the defaults
// and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper registers defaults for every key so environment variables
// override them even without a config file.
func setupViper(v *viper.Viper, configPath string) {
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("DOCSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
}
