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

package sparse

import (
	"testing"

	"github.com/dot-do/fsx/internal/fserrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatcherIncludeExclude(t *testing.T) {
	m := NewPatternMatcher("/", []string{"src/**/*.go"}, []string{"src/vendor/**"})

	assert.True(t, m.ShouldInclude("/src/pkg/foo.go"))
	assert.False(t, m.ShouldInclude("/src/pkg/foo.txt"))
	assert.False(t, m.ShouldInclude("/src/vendor/dep/bar.go"))
}

func TestPatternMatcherTraversal(t *testing.T) {
	m := NewPatternMatcher("/", []string{"src/**/*.go"}, []string{"src/vendor/**"})

	assert.True(t, m.ShouldTraverseDirectory("/src"))
	assert.True(t, m.ShouldTraverseDirectory("/src/pkg"))
	assert.False(t, m.ShouldTraverseDirectory("/src/vendor"))
	assert.False(t, m.ShouldTraverseDirectory("/other"))
}

func TestConeMatcherRejectsWildcards(t *testing.T) {
	_, err := NewConeMatcher("/", []string{"src/*"}, nil)
	require.Error(t, err)
	assert.True(t, fserrors.Is(err, fserrors.EINVAL))
}

func TestConeMatcherIncludesRootFilesAndCone(t *testing.T) {
	m, err := NewConeMatcher("/", []string{"src/app"}, nil)
	require.NoError(t, err)

	assert.True(t, m.ShouldInclude("/README.md"), "root-level files are always included")
	assert.True(t, m.ShouldInclude("/src/app/main.go"), "inside a declared cone")
	assert.True(t, m.ShouldInclude("/src/other.go"), "immediate child of a cone ancestor")
	assert.False(t, m.ShouldInclude("/src/other/deep/file.go"), "not a cone, not an ancestor's immediate child")
}

func TestConeMatcherTraversal(t *testing.T) {
	m, err := NewConeMatcher("/", []string{"src/app"}, nil)
	require.NoError(t, err)

	assert.True(t, m.ShouldTraverseDirectory("/src"), "ancestor of cone")
	assert.True(t, m.ShouldTraverseDirectory("/src/app"))
	assert.True(t, m.ShouldTraverseDirectory("/src/app/nested"))
	assert.False(t, m.ShouldTraverseDirectory("/other"))
}

func TestConeMatcherExcludeOverridesInclusion(t *testing.T) {
	m, err := NewConeMatcher("/", []string{"src"}, []string{"src/**/*.test.go"})
	require.NoError(t, err)

	assert.True(t, m.ShouldInclude("/src/main.go"))
	assert.False(t, m.ShouldInclude("/src/main_test.go.test.go"))
}

func TestPresetRegistryLookupAndRegister(t *testing.T) {
	_, err := LookupPreset("typescript")
	require.NoError(t, err)

	_, err = LookupPreset("does-not-exist")
	assert.True(t, fserrors.Is(err, fserrors.EINVAL))

	RegisterPreset(Preset{Name: "custom", Include: []string{"**/*.custom"}})
	p, err := LookupPreset("custom")
	require.NoError(t, err)
	assert.Equal(t, []string{"**/*.custom"}, p.Include)
}

func TestNewPresetMatcherMergesExtras(t *testing.T) {
	m, err := NewPresetMatcher("/", "typescript", []string{"**/*.md"}, nil)
	require.NoError(t, err)

	assert.True(t, m.ShouldInclude("/README.md"))
	assert.True(t, m.ShouldInclude("/src/a.ts"))
	assert.False(t, m.ShouldInclude("/src/a.py"))
}
