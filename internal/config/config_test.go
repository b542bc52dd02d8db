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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) *pflag.FlagSet {
	t.Helper()
	viper.Reset()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(fs))
	require.NoError(t, fs.Parse(nil))
	return fs
}

func TestBindFlagsDefaults(t *testing.T) {
	resetViper(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "fsx.db", cfg.Catalog.DBPath)
	assert.Equal(t, 4096, cfg.Catalog.MaxPathLength)
	assert.Equal(t, int64(1<<20), cfg.Tier.HotMaxSizeBytes)
	assert.Equal(t, "off", cfg.Sparse.Mode)
	assert.Equal(t, "trailing", cfg.Watch.Mode)
	assert.Equal(t, 50, cfg.Watch.DebounceMs)
	assert.Equal(t, "info", cfg.Logging.Severity)
}

func TestLoadOverlaysYAMLFile(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "fsx.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalog:\n  db-path: /tmp/custom.db\nwatch:\n  mode: both\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.Catalog.DBPath)
	assert.Equal(t, "both", cfg.Watch.Mode)
}

func TestLoadMissingFileErrors(t *testing.T) {
	resetViper(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
