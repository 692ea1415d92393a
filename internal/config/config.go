// Copyright 2026 Blink Labs Software
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
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/blinklabs-io/coffer"
)

type ctxKey string

const configContextKey ctxKey = "coffer.config"

const (
	DefaultShutdownTimeout  = "30s"
	DefaultSnapshotInterval = "5m"
	DefaultSlotLength       = "1s"
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

type Config struct {
	Genesis           coffer.Genesis `yaml:"genesis"`
	DatabasePath      string         `yaml:"databasePath"      split_words:"true"`
	BindAddr          string         `yaml:"bindAddr"          split_words:"true"`
	ApiPort           uint           `yaml:"apiPort"           split_words:"true"`
	MetricsPort       uint           `yaml:"metricsPort"       split_words:"true"`
	DeploymentId      string         `yaml:"deploymentId"      split_words:"true"`
	SystemStart       string         `yaml:"systemStart"       split_words:"true"`
	SlotLength        string         `yaml:"slotLength"        split_words:"true"`
	SnapshotInterval  string         `yaml:"snapshotInterval"  split_words:"true"`
	SnapshotRetention int            `yaml:"snapshotRetention" split_words:"true"`
	ShutdownTimeout   string         `yaml:"shutdownTimeout"   split_words:"true"`
	EarlyResolution   bool           `yaml:"earlyResolution"   split_words:"true"`
	// Dev mode runs against an in-memory ledger funded at startup
	DevMode          bool   `yaml:"devMode"          split_words:"true"`
	DevFunding       uint64 `yaml:"devFunding"       split_words:"true"`
	DevYield         bool   `yaml:"devYield"         split_words:"true"`
	Tracing          bool   `yaml:"tracing"`
	TracingStdout    bool   `yaml:"tracingStdout"    split_words:"true"`
	TracingEndpoint  string `yaml:"tracingEndpoint"  split_words:"true"`
	TracingService   string `yaml:"tracingService"   split_words:"true"`
	TracingSampleAll bool   `yaml:"tracingSampleAll" split_words:"true"`
}

func defaultConfig() *Config {
	return &Config{
		DatabasePath:      ".coffer",
		BindAddr:          "0.0.0.0",
		ApiPort:           8080,
		MetricsPort:       12799,
		SlotLength:        DefaultSlotLength,
		SnapshotInterval:  DefaultSnapshotInterval,
		SnapshotRetention: 8,
		ShutdownTimeout:   DefaultShutdownTimeout,
		EarlyResolution:   true,
		DevFunding:        1_000_000,
		TracingService:    "coffer",
	}
}

var globalConfig = defaultConfig()

// LoadConfig reads the config file, if any, over the defaults and then
// applies COFFER_* environment variables. With no file given it looks in
// ~/.coffer/coffer.yaml and then /etc/coffer/coffer.yaml.
func LoadConfig(configFile string) (*Config, error) {
	if configFile == "" {
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".coffer", "coffer.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}
		if configFile == "" {
			systemPath := "/etc/coffer/coffer.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Overlay config values onto existing defaults
		if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Process environment variables
	if err := envconfig.Process("coffer", globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	if err := globalConfig.Validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

// Validate checks the process settings. The genesis section is checked when
// the vault is built, so that commands which never build one still load.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"slotLength":       c.SlotLength,
		"snapshotInterval": c.SnapshotInterval,
		"shutdownTimeout":  c.ShutdownTimeout,
	} {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s: negative duration %s", name, value)
		}
	}
	if _, err := c.SystemStartTime(); err != nil {
		return err
	}
	if c.SnapshotRetention < 0 {
		return fmt.Errorf(
			"invalid snapshotRetention: %d",
			c.SnapshotRetention,
		)
	}
	return nil
}

// Durations parses the duration settings, applying defaults for empty
// values
func (c *Config) Durations() (slotLength, snapshotInterval, shutdownTimeout time.Duration, err error) {
	parse := func(value, def string) (time.Duration, error) {
		if value == "" {
			value = def
		}
		return time.ParseDuration(value)
	}
	if slotLength, err = parse(c.SlotLength, DefaultSlotLength); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid slot length: %w", err)
	}
	if snapshotInterval, err = parse(c.SnapshotInterval, DefaultSnapshotInterval); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid snapshot interval: %w", err)
	}
	if shutdownTimeout, err = parse(c.ShutdownTimeout, DefaultShutdownTimeout); err != nil {
		return 0, 0, 0, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	return slotLength, snapshotInterval, shutdownTimeout, nil
}

// SystemStartTime parses the RFC 3339 time that slot zero begins at. It
// returns the zero time when none is configured.
func (c *Config) SystemStartTime() (time.Time, error) {
	if c.SystemStart == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, c.SystemStart)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid systemStart: %w", err)
	}
	return t, nil
}
