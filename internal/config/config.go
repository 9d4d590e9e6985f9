// Copyright 2026 CNI authors
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

// Package config loads the addrtable command configuration from defaults,
// an optional file and ADDRTABLE_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/containernetworking/addrtable/pkg/pf"
	"github.com/containernetworking/addrtable/pkg/utils"
)

type Config struct {
	// Backend is "pf", "nftables" or empty to detect one.
	Backend  string         `mapstructure:"backend"`
	Device   string         `mapstructure:"device"`
	Anchor   string         `mapstructure:"anchor"`
	NFTables NFTablesConfig `mapstructure:"nftables"`
	LogLevel string         `mapstructure:"log_level"`
	// LockDir holds one lock file per table; empty disables locking.
	LockDir string `mapstructure:"lock_dir"`
}

type NFTablesConfig struct {
	Table string `mapstructure:"table"`
}

// New returns a viper instance carrying the defaults and environment
// bindings. Callers may bind flags to it before passing it to Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("backend", "")
	v.SetDefault("device", pf.DefaultDevicePath)
	v.SetDefault("anchor", "")
	v.SetDefault("nftables.table", "addrtable")
	v.SetDefault("log_level", "info")
	v.SetDefault("lock_dir", "")

	v.SetEnvPrefix("ADDRTABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configPath, if set, into v and returns the validated result.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Backend {
	case "", utils.PFBackend, utils.NFTablesBackend:
	default:
		return fmt.Errorf("backend must be %q or %q, got %q", utils.PFBackend, utils.NFTablesBackend, c.Backend)
	}
	if c.Backend != utils.NFTablesBackend && c.Device == "" {
		return fmt.Errorf("device must not be empty")
	}
	if len(c.Anchor) >= pf.PathMax {
		return fmt.Errorf("anchor must be shorter than %d bytes", pf.PathMax)
	}
	if c.NFTables.Table == "" {
		return fmt.Errorf("nftables.table must not be empty")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}
