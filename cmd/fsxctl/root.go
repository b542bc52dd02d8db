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

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dot-do/fsx/internal/catalog"
	"github.com/dot-do/fsx/internal/clock"
	"github.com/dot-do/fsx/internal/config"
	"github.com/dot-do/fsx/internal/fsfacade"
	"github.com/dot-do/fsx/internal/logger"
	"github.com/dot-do/fsx/internal/objectstore"
	"github.com/dot-do/fsx/internal/shell/exec"
	"github.com/dot-do/fsx/internal/shell/safety"
	"github.com/dot-do/fsx/internal/sparse"
	"github.com/dot-do/fsx/internal/sparsefs"
	"github.com/dot-do/fsx/internal/tier"
	"github.com/dot-do/fsx/internal/watch"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "fsxctl [flags] [command]",
	Short: "Run commands, or an interactive shell, against an embedded virtual filesystem",
	Long: `fsxctl hosts the fsx catalog-backed virtual filesystem outside of any
embedding program: it opens (or creates) a bbolt catalog, applies the
configured sparse-checkout view and debounce policy, and either runs a
single bash-like command line or drops into an interactive REPL.`,
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file overlay")
	if err := config.BindFlags(rootCmd.PersistentFlags()); err != nil {
		panic(fmt.Sprintf("fsxctl: binding flags: %v", err))
	}
}

// Execute runs the fsxctl root command.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Init(logger.Config{
		Severity:   parseSeverity(cfg.Logging.Severity),
		Format:     cfg.Logging.Format,
		LogFile:    cfg.Logging.LogFile,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	ex, closeFn, err := buildExecutor(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := context.Background()
	if len(args) > 0 {
		line := strings.Join(args, " ")
		out, code, err := ex.Run(ctx, line)
		fmt.Fprint(os.Stdout, out)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(code)
	}
	return repl(ctx, ex)
}

func repl(ctx context.Context, ex *exec.Executor) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprint(os.Stdout, ex.Cwd, "$ ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out, code, err := ex.Run(ctx, line)
			fmt.Fprint(os.Stdout, out)
			if err != nil {
				fmt.Fprintf(os.Stderr, "fsxctl: %v (exit %d)\n", err, code)
			}
		}
		fmt.Fprint(os.Stdout, ex.Cwd, "$ ")
	}
	fmt.Fprintln(os.Stdout)
	return scanner.Err()
}

// buildExecutor wires config into the catalog, tier router, facade (or
// sparse-filtered facade), watch manager and shell executor.
func buildExecutor(cfg *config.Config) (*exec.Executor, func(), error) {
	db, err := catalog.Open(cfg.Catalog.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening catalog: %w", err)
	}
	closers := []func(){func() { db.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	warm := objectstoreFor(cfg.Tier.WarmEnabled)
	cold := objectstoreFor(cfg.Tier.ColdEnabled)
	router := tier.New(tier.Config{
		HotMaxSize:  cfg.Tier.HotMaxSizeBytes,
		WarmEnabled: cfg.Tier.WarmEnabled,
		ColdEnabled: cfg.Tier.ColdEnabled,
		MaxFileSize: cfg.Tier.MaxFileSizeBytes,
	}, warm, cold)
	cat := catalog.NewCatalog(db, router)

	mgr := watchManagerFor(cfg)
	facade := fsfacade.New(cat, fsfacade.Options{
		MaxPathLength: cfg.Catalog.MaxPathLength,
		Watch:         watch.FacadeEmitter{Manager: mgr},
	})

	var fs exec.FS = facade
	if cfg.Sparse.Mode != "" && cfg.Sparse.Mode != "off" {
		matcher, err := sparseMatcherFor(cfg)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("building sparse matcher: %w", err)
		}
		fs = sparsefs.New(facade, matcher)
	}

	safetyStore, err := safety.Open(db.Raw())
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("opening safety store: %w", err)
	}

	ex := exec.New(fs, safetyStore)
	return ex, closeAll, nil
}

func objectstoreFor(enabled bool) objectstore.Store {
	if !enabled {
		return nil
	}
	// A real deployment substitutes a bucket-backed Store here; fsxctl
	// ships the in-process Memory store so the reference binary never
	// pulls in a specific cloud SDK (see DESIGN.md's domain-stack notes).
	return objectstore.NewMemory()
}

func watchManagerFor(cfg *config.Config) *watch.Manager {
	mode := watchModeFor(cfg.Watch.Mode)
	wcfg := watch.Config{
		Debounce: msDuration(cfg.Watch.DebounceMs),
		MaxWait:  msDuration(cfg.Watch.MaxWaitMs),
		Mode:     mode,
	}
	sink := watch.SinkFunc(func(e watch.Event) {
		logger.Debugf("watch: %s %s", e.Kind, e.Path)
	})
	return watch.New(clock.RealClock{}, sink, wcfg)
}

func sparseMatcherFor(cfg *config.Config) (*sparse.Matcher, error) {
	if cfg.Sparse.Preset != "" {
		return sparse.NewPresetMatcher("/", cfg.Sparse.Preset, cfg.Sparse.Include, cfg.Sparse.Exclude)
	}
	if cfg.Sparse.Mode == "cone" {
		return sparse.NewConeMatcher("/", cfg.Sparse.Cones, cfg.Sparse.Exclude)
	}
	return sparse.NewPatternMatcher("/", cfg.Sparse.Include, cfg.Sparse.Exclude), nil
}

func watchModeFor(s string) watch.Mode {
	switch s {
	case "leading":
		return watch.ModeLeading
	case "both":
		return watch.ModeBoth
	default:
		return watch.ModeTrailing
	}
}

func msDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }

func parseSeverity(s string) logger.Severity {
	switch strings.ToLower(s) {
	case "trace":
		return logger.SeverityTrace
	case "debug":
		return logger.SeverityDebug
	case "warn", "warning":
		return logger.SeverityWarning
	case "error":
		return logger.SeverityError
	case "off":
		return logger.SeverityOff
	default:
		return logger.SeverityInfo
	}
}
