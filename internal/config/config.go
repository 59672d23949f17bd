// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "utxoorder.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultDatabasePath    = ".utxoorder"
	DefaultOutputFormat    = OutputFormatText
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// OutputFormat selects how sorted refs are printed
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text" // One "<txid>#<index>" per line
	OutputFormatJson OutputFormat = "json" // JSON array of strings
	OutputFormatCbor OutputFormat = "cbor" // Hex CBOR input set
)

// Valid returns true if the OutputFormat is a known format
func (f OutputFormat) Valid() bool {
	switch f {
	case OutputFormatText, OutputFormatJson, OutputFormatCbor:
		return true
	default:
		return false
	}
}

// ErrInvalidConfig is returned when a loaded config fails validation
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	DatabasePath    string       `yaml:"databasePath"    split_words:"true"`
	BindAddr        string       `yaml:"bindAddr"        split_words:"true"`
	ShutdownTimeout string       `yaml:"shutdownTimeout" split_words:"true"`
	OutputFormat    OutputFormat `yaml:"outputFormat"    split_words:"true"`
	Port            uint         `yaml:"port"`
	// Keep the UTxO store in memory instead of under DatabasePath
	InMemory bool `yaml:"inMemory" split_words:"true"`
}

// DefaultConfig returns a new Config populated with default values
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    DefaultDatabasePath,
		BindAddr:        "0.0.0.0",
		ShutdownTimeout: DefaultShutdownTimeout,
		OutputFormat:    DefaultOutputFormat,
		Port:            8080,
		InMemory:        false,
	}
}

// LoadConfig builds a config from defaults, the YAML config file and the
// environment, in that order of precedence. When configFile is empty, the
// user and system config paths are checked.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Overlay config values onto existing defaults
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// Process environment variables
	if err := envconfig.Process("utxoorder", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	// Check for config file in this path: ~/.utxoorder/utxoorder.yaml
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".utxoorder", "utxoorder.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/utxoorder/utxoorder.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

// Validate checks the config for values that cannot be used
func (c *Config) Validate() error {
	if c.OutputFormat == "" {
		c.OutputFormat = DefaultOutputFormat
	}
	if !c.OutputFormat.Valid() {
		return fmt.Errorf(
			"%w: outputFormat %q (must be 'text', 'json', or 'cbor')",
			ErrInvalidConfig,
			c.OutputFormat,
		)
	}
	if _, err := c.ShutdownTimeoutDuration(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !c.InMemory && c.DatabasePath == "" {
		return fmt.Errorf(
			"%w: databasePath must be set unless inMemory is enabled",
			ErrInvalidConfig,
		)
	}
	return nil
}

// ShutdownTimeoutDuration parses ShutdownTimeout
func (c *Config) ShutdownTimeoutDuration() (time.Duration, error) {
	if c.ShutdownTimeout == "" {
		return time.ParseDuration(DefaultShutdownTimeout)
	}
	ret, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	return ret, nil
}

// ListenAddress returns the HTTP listen address
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}
