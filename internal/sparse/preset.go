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
	"sync"

	"github.com/dot-do/fsx/internal/fserrors"
)

// Preset names a built-in include/exclude pattern set that callers can
// reference by name instead of spelling out globs.
type Preset struct {
	Name    string
	Include []string
	Exclude []string
}

var (
	presetsMu sync.RWMutex
	presets   = map[string]Preset{
		"typescript": {
			Name:    "typescript",
			Include: []string{"**/*.ts", "**/*.tsx", "**/tsconfig*.json", "package.json"},
			Exclude: []string{"**/node_modules/**", "**/dist/**"},
		},
		"javascript": {
			Name:    "javascript",
			Include: []string{"**/*.js", "**/*.jsx", "**/*.mjs", "package.json"},
			Exclude: []string{"**/node_modules/**", "**/dist/**"},
		},
		"source": {
			Name:    "source",
			Include: []string{"**/*.go", "**/*.ts", "**/*.tsx", "**/*.js", "**/*.py", "**/*.rs", "**/*.java", "**/*.c", "**/*.cc", "**/*.cpp", "**/*.h"},
			Exclude: []string{"**/node_modules/**", "**/vendor/**", "**/.git/**"},
		},
		"web": {
			Name:    "web",
			Include: []string{"**/*.html", "**/*.css", "**/*.scss", "**/*.js", "**/*.ts", "**/*.tsx", "**/*.jsx"},
			Exclude: []string{"**/node_modules/**", "**/dist/**"},
		},
		"config": {
			Name:    "config",
			Include: []string{"**/*.json", "**/*.yaml", "**/*.yml", "**/*.toml", "**/.env*"},
			Exclude: []string{"**/node_modules/**"},
		},
	}
)

// RegisterPreset adds or overwrites a named preset, so callers can extend
// the built-in set without forking the package.
func RegisterPreset(p Preset) {
	presetsMu.Lock()
	defer presetsMu.Unlock()
	presets[p.Name] = p
}

// LookupPreset returns the preset registered under name.
func LookupPreset(name string) (Preset, error) {
	presetsMu.RLock()
	defer presetsMu.RUnlock()
	p, ok := presets[name]
	if !ok {
		return Preset{}, fserrors.New("lookup_preset", name, fserrors.EINVAL)
	}
	return p, nil
}

// NewPresetMatcher builds a pattern-mode matcher from a registered preset,
// optionally merging in extra include/exclude patterns.
func NewPresetMatcher(root, presetName string, extraInclude, extraExclude []string) (*Matcher, error) {
	p, err := LookupPreset(presetName)
	if err != nil {
		return nil, err
	}
	include := append(append([]string{}, p.Include...), extraInclude...)
	exclude := append(append([]string{}, p.Exclude...), extraExclude...)
	return NewPatternMatcher(root, include, exclude), nil
}
