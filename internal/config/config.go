// Copyright 2025 Google LLC
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

// Package config binds fsx's runtime configuration to a pflag.FlagSet via
// viper, with an optional YAML config file overlay, mirroring the
// flag/viper wiring gcsfuse uses for its own mount configuration.
package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root configuration struct, unmarshalled from bound flags
// and, optionally, a YAML file.
type Config struct {
	Catalog CatalogConfig `yaml:"catalog"`
	Tier    TierConfig    `yaml:"tier"`
	Sparse  SparseConfig  `yaml:"sparse"`
	Watch   WatchConfig   `yaml:"watch"`
	Shell   ShellConfig   `yaml:"shell"`
	Logging LoggingConfig `yaml:"logging"`
}

type CatalogConfig struct {
	DBPath        string `yaml:"db-path"`
	MaxPathLength int    `yaml:"max-path-length"`
}

type TierConfig struct {
	HotMaxSizeBytes int64  `yaml:"hot-max-size-bytes"`
	WarmEnabled     bool   `yaml:"warm-enabled"`
	WarmDir         string `yaml:"warm-dir"`
	ColdEnabled     bool   `yaml:"cold-enabled"`
	ColdBucket      string `yaml:"cold-bucket"`
	MaxFileSizeBytes int64 `yaml:"max-file-size-bytes"`
}

type SparseConfig struct {
	Mode    string   `yaml:"mode"` // "off", "pattern", "cone"
	Preset  string   `yaml:"preset"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	Cones   []string `yaml:"cones"`
}

type WatchConfig struct {
	DebounceMs int    `yaml:"debounce-ms"`
	MaxWaitMs  int    `yaml:"max-wait-ms"`
	Mode       string `yaml:"mode"` // "leading", "trailing", "both"
}

type ShellConfig struct {
	SafetyPolicyPath string `yaml:"safety-policy-path"`
	HistoryLimit     int    `yaml:"history-limit"`
}

type LoggingConfig struct {
	Severity   string `yaml:"severity"`
	Format     string `yaml:"format"` // "text" or "json"
	LogFile    string `yaml:"log-file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// BindFlags registers every configuration knob on flagSet and binds it to
// viper under the matching dotted key, so a later viper.Unmarshal fills a
// Config from whichever source (flag, env, file) takes precedence.
func BindFlags(flagSet *pflag.FlagSet) error {
	bindings := []struct {
		key, flag, short, def, usage string
	}{
		{"catalog.db-path", "catalog-db-path", "", "fsx.db", "Path to the bbolt catalog database file."},
		{"sparse.mode", "sparse-mode", "", "off", "Sparse checkout mode: off, pattern, or cone."},
		{"sparse.preset", "sparse-preset", "", "", "Named sparse preset (typescript, javascript, source, web, config)."},
		{"watch.mode", "watch-mode", "", "trailing", "Watch debounce mode: leading, trailing, or both."},
		{"shell.safety-policy-path", "safety-policy-path", "", "", "Path to a YAML safety policy overlay (not read by fsxctl)."},
		{"logging.severity", "log-severity", "", "info", "Minimum log severity: trace, debug, info, warn, error, off."},
		{"logging.format", "log-format", "", "text", "Log output format: text or json."},
		{"logging.log-file", "log-file", "", "", "Log file path; empty logs to stderr."},
	}
	for _, b := range bindings {
		flagSet.StringP(b.flag, b.short, b.def, b.usage)
		if err := viper.BindPFlag(b.key, flagSet.Lookup(b.flag)); err != nil {
			return err
		}
	}

	intBindings := []struct {
		key, flag string
		def       int
		usage     string
	}{
		{"catalog.max-path-length", "max-path-length", 4096, "Maximum normalized path length before ENAMETOOLONG."},
		{"watch.debounce-ms", "watch-debounce-ms", 50, "Debounce window, in milliseconds."},
		{"watch.max-wait-ms", "watch-max-wait-ms", 0, "Max-wait ceiling, in milliseconds; 0 disables it."},
		{"shell.history-limit", "shell-history-limit", 1000, "Number of shell executions retained in history (not read by fsxctl; the executor keeps the last 1000)."},
		{"logging.max-size-mb", "log-max-size-mb", 100, "Log file rotation size, in megabytes."},
		{"logging.max-backups", "log-max-backups", 5, "Number of rotated log files retained."},
		{"logging.max-age-days", "log-max-age-days", 28, "Days a rotated log file is retained."},
	}
	for _, b := range intBindings {
		flagSet.Int(b.flag, b.def, b.usage)
		if err := viper.BindPFlag(b.key, flagSet.Lookup(b.flag)); err != nil {
			return err
		}
	}

	boolBindings := []struct {
		key, flag string
		def       bool
		usage     string
	}{
		{"tier.warm-enabled", "tier-warm-enabled", false, "Enable the warm object-store tier."},
		{"tier.cold-enabled", "tier-cold-enabled", false, "Enable the cold object-store tier."},
	}
	for _, b := range boolBindings {
		flagSet.Bool(b.flag, b.def, b.usage)
		if err := viper.BindPFlag(b.key, flagSet.Lookup(b.flag)); err != nil {
			return err
		}
	}

	flagSet.Int64("tier-hot-max-size-bytes", 1<<20, "Inline-hot-tier size ceiling, in bytes.")
	if err := viper.BindPFlag("tier.hot-max-size-bytes", flagSet.Lookup("tier-hot-max-size-bytes")); err != nil {
		return err
	}
	flagSet.Int64("tier-max-file-size-bytes", 0, "Reject writes larger than this, in bytes; 0 disables the check.")
	if err := viper.BindPFlag("tier.max-file-size-bytes", flagSet.Lookup("tier-max-file-size-bytes")); err != nil {
		return err
	}
	flagSet.String("tier-warm-dir", "", "Local directory for the warm tier (not read by fsxctl, whose warm tier is in memory).")
	if err := viper.BindPFlag("tier.warm-dir", flagSet.Lookup("tier-warm-dir")); err != nil {
		return err
	}
	flagSet.String("tier-cold-bucket", "", "Object-store bucket name for the cold tier (not read by fsxctl, whose cold tier is in memory).")
	if err := viper.BindPFlag("tier.cold-bucket", flagSet.Lookup("tier-cold-bucket")); err != nil {
		return err
	}
	flagSet.StringSlice("sparse-include", nil, "Sparse pattern-mode include globs.")
	if err := viper.BindPFlag("sparse.include", flagSet.Lookup("sparse-include")); err != nil {
		return err
	}
	flagSet.StringSlice("sparse-exclude", nil, "Sparse pattern-mode exclude globs.")
	if err := viper.BindPFlag("sparse.exclude", flagSet.Lookup("sparse-exclude")); err != nil {
		return err
	}
	flagSet.StringSlice("sparse-cones", nil, "Sparse cone-mode directory paths.")
	return viper.BindPFlag("sparse.cones", flagSet.Lookup("sparse-cones"))
}
