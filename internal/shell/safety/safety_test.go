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

package safety

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func TestAnalyzeFlagsRecursiveForceRemoval(t *testing.T) {
	a := Analyze("rm -rf /data", DefaultPolicy(), nil)
	assert.Equal(t, RiskHigh, a.Risk)
	assert.Equal(t, VerdictBlock, a.Verdict)
	require.Len(t, a.Findings, 1)
}

func TestAnalyzeAllowsSafeCommand(t *testing.T) {
	a := Analyze("ls -la /data", DefaultPolicy(), nil)
	assert.Equal(t, RiskNone, a.Risk)
	assert.Equal(t, VerdictAllow, a.Verdict)
	assert.Empty(t, a.Findings)
}

func TestAnalyzeWarnsOnWorldWritableChmod(t *testing.T) {
	a := Analyze("chmod 777 /data", DefaultPolicy(), nil)
	assert.Equal(t, RiskMedium, a.Risk)
	assert.Equal(t, VerdictWarn, a.Verdict)
}

func TestOverrideWinsOverPolicyVerdict(t *testing.T) {
	overrides := []Override{{Pattern: `^rm -rf /data/scratch`, Verdict: VerdictAllow}}
	a := Analyze("rm -rf /data/scratch", DefaultPolicy(), overrides)
	assert.True(t, a.Overridden)
	assert.Equal(t, VerdictAllow, a.Verdict)
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	bolt, err := bbolt.Open(filepath.Join(dir, "safety.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })
	s, err := Open(bolt)
	require.NoError(t, err)
	return s
}

func TestStorePersistsOverrides(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutOverride(Override{Pattern: "^rm -rf /tmp", Verdict: VerdictAllow, Reason: "scratch space"}))

	overrides, err := s.ListOverrides()
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, "^rm -rf /tmp", overrides[0].Pattern)

	require.NoError(t, s.DeleteOverride("^rm -rf /tmp"))
	overrides, err = s.ListOverrides()
	require.NoError(t, err)
	assert.Empty(t, overrides)
}

func TestStoreRejectsInvalidOverridePattern(t *testing.T) {
	s := openTestStore(t)
	err := s.PutOverride(Override{Pattern: "(unclosed", Verdict: VerdictAllow})
	assert.Error(t, err)
}

func TestHistoryAppendAndTrim(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendHistory(HistoryEntry{CommandLine: "ls", Risk: RiskNone, Verdict: VerdictAllow, Time: time.Now()}, 3))
	}
	hist, err := s.History()
	require.NoError(t, err)
	assert.Len(t, hist, 3, "history is trimmed to the configured limit")
}
