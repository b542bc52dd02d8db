// Copyright 2023 Google Inc. All Rights Reserved.
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

// Package logger provides the structured logger used by the FS facade,
// watch manager and executor for diagnostics. It is never consulted
// for control flow - only typed errors (see internal/fserrors) are.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity mirrors the level names used across the core's log lines.
type Severity int

const (
	SeverityTrace Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityOff
)

// mapped onto slog's levels; TRACE is modeled as a level below slog.LevelDebug.
const (
	levelTrace = slog.Level(-8)
)

var (
	mu      sync.RWMutex
	base    = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	current = SeverityInfo
)

// Config selects the output target and rotation policy. A zero Config logs
// text lines to stderr at INFO.
type Config struct {
	Severity   Severity
	Format     string // "text" or "json"
	LogFile    string // empty means stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Init (re)configures the package-level logger. Mirrors the teacher's
// severity-gated slog handler, rotating through lumberjack when LogFile is
// set so long-running executors don't grow an unbounded log file.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	current = cfg.Severity
	var w io.Writer = os.Stderr
	if cfg.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    nonZero(cfg.MaxSizeMB, 100),
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Severity)}
	if cfg.Format == "json" {
		base = slog.New(slog.NewJSONHandler(w, opts))
	} else {
		base = slog.New(slog.NewTextHandler(w, opts))
	}
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func slogLevel(s Severity) slog.Level {
	switch s {
	case SeverityTrace:
		return levelTrace
	case SeverityDebug:
		return slog.LevelDebug
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError:
		return slog.LevelError
	case SeverityOff:
		return slog.Level(1 << 20)
	default:
		return slog.LevelInfo
	}
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Tracef(format string, args ...any)   { get().Log(context.Background(), levelTrace, sprintf(format, args...)) }
func Debugf(format string, args ...any)   { get().Debug(sprintf(format, args...)) }
func Infof(format string, args ...any)    { get().Info(sprintf(format, args...)) }
func Warnf(format string, args ...any)    { get().Warn(sprintf(format, args...)) }
func Errorf(format string, args ...any)   { get().Error(sprintf(format, args...)) }

// WithPath returns a logger carrying a "path" attribute, the common case for
// per-operation diagnostics in the catalog and FS facade.
func WithPath(path string) *slog.Logger {
	return get().With("path", path)
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
