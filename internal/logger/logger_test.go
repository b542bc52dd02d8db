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

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withCapturedOutput(t *testing.T, cfg Config, f func()) string {
	t.Helper()
	mu.Lock()
	saved := base
	savedLevel := current
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		base = saved
		current = savedLevel
		mu.Unlock()
	})

	var buf bytes.Buffer
	Init(cfg)
	mu.Lock()
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Severity)}
	if cfg.Format == "json" {
		base = slog.New(slog.NewJSONHandler(&buf, opts))
	} else {
		base = slog.New(slog.NewTextHandler(&buf, opts))
	}
	mu.Unlock()

	f()
	return buf.String()
}

func TestSeverityGatingSuppressesLowerLevels(t *testing.T) {
	out := withCapturedOutput(t, Config{Severity: SeverityWarning}, func() {
		Debugf("quiet %s", "debug")
		Infof("quiet %s", "info")
		Warnf("loud %s", "warning")
		Errorf("loud %s", "error")
	})
	assert.NotContains(t, out, "quiet debug")
	assert.NotContains(t, out, "quiet info")
	assert.Contains(t, out, "loud warning")
	assert.Contains(t, out, "loud error")
}

func TestSeverityOffSuppressesEverything(t *testing.T) {
	out := withCapturedOutput(t, Config{Severity: SeverityOff}, func() {
		Errorf("should not appear")
	})
	assert.Empty(t, out)
}

func TestSeverityTraceEmitsEverything(t *testing.T) {
	out := withCapturedOutput(t, Config{Severity: SeverityTrace}, func() {
		Tracef("trace line")
		Debugf("debug line")
	})
	assert.Contains(t, out, "trace line")
	assert.Contains(t, out, "debug line")
}

func TestJSONFormatProducesParsableLines(t *testing.T) {
	out := withCapturedOutput(t, Config{Severity: SeverityInfo, Format: "json"}, func() {
		Infof("hello %s", "world")
	})
	line := strings.TrimSpace(out)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	assert.Equal(t, "hello world", decoded["msg"])
}

func TestWithPathAttachesPathAttribute(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	mu.Lock()
	saved := base
	base = l
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		base = saved
		mu.Unlock()
	})

	WithPath("/a/b.txt").Info("touched")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "/a/b.txt", decoded["path"])
}

func TestInitRotatesToConfiguredLogFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "fsx.log")
	Init(Config{Severity: SeverityInfo, LogFile: logFile, MaxSizeMB: 1})
	Infof("rotated line")

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "rotated line")
}
