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

// Package sparse implements the pattern/cone sparse-checkout matcher of
// spec §4.E, using github.com/bmatcuk/doublestar/v4 for "**"-aware glob
// evaluation in pattern mode.
package sparse

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dot-do/fsx/internal/fserrors"
)

// Matcher evaluates should_include/should_traverse_directory against a
// configured root, in either pattern mode or cone mode.
type Matcher struct {
	root    string
	cone    bool
	include []string
	exclude []string
	cones   []string // cone mode only: plain directory paths
}

// NewPatternMatcher builds a pattern-mode matcher from glob include/exclude
// lists, relative to root (a leading "/" is stripped for matching).
func NewPatternMatcher(root string, include, exclude []string) *Matcher {
	return &Matcher{root: normalizeRoot(root), include: include, exclude: exclude}
}

// NewConeMatcher builds a cone-mode matcher from plain directory paths.
// The constructor rejects any entry containing a wildcard character.
func NewConeMatcher(root string, cones []string, exclude []string) (*Matcher, error) {
	for _, c := range cones {
		if strings.ContainsAny(c, "*?[{") {
			return nil, fserrors.New("cone_matcher", c, fserrors.EINVAL)
		}
	}
	clean := make([]string, len(cones))
	for i, c := range cones {
		clean[i] = strings.Trim(c, "/")
	}
	return &Matcher{root: normalizeRoot(root), cone: true, cones: clean, exclude: exclude}, nil
}

func normalizeRoot(root string) string {
	return strings.Trim(root, "/")
}

// relativize strips a leading "/" so patterns (relative to root) match.
func (m *Matcher) relativize(path string) string {
	rel := strings.TrimPrefix(path, "/")
	if m.root != "" {
		rel = strings.TrimPrefix(rel, m.root+"/")
	}
	return rel
}

// ShouldInclude reports whether a file at relative path is part of the
// sparse view.
func (m *Matcher) ShouldInclude(path string) bool {
	rel := m.relativize(path)
	if m.matchesExclude(rel) {
		return false
	}
	if m.cone {
		return m.coneIncludes(rel)
	}
	return m.matchesAny(m.include, rel)
}

// ShouldTraverseDirectory reports whether a descendant of the directory
// at relative path could still match the matcher's rules.
func (m *Matcher) ShouldTraverseDirectory(path string) bool {
	rel := m.relativize(path)
	if m.cone {
		return m.coneTraversable(rel)
	}
	if m.prunedByExclude(rel) {
		return false
	}
	if len(m.include) == 0 {
		return true
	}
	for _, pat := range m.include {
		if prefixCompatible(pat, rel) {
			return true
		}
	}
	return false
}

func (m *Matcher) matchesAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func (m *Matcher) matchesExclude(rel string) bool {
	return m.matchesAny(m.exclude, rel)
}

// prunedByExclude reports whether an exclude pattern strictly prunes this
// directory, i.e. every path under it would be excluded.
func (m *Matcher) prunedByExclude(rel string) bool {
	for _, pat := range m.exclude {
		base := strings.TrimSuffix(pat, "/**")
		base = strings.TrimSuffix(base, "/*")
		if base != pat && (base == rel || strings.HasPrefix(rel, base+"/")) {
			return true
		}
		if ok, _ := doublestar.Match(pat, rel); ok && !strings.Contains(pat, "*") {
			return true
		}
	}
	return false
}

// prefixCompatible reports whether a directory at rel could contain a
// match for glob pattern pat: every literal segment of pat up to rel's
// depth must equal the corresponding segment of rel.
func prefixCompatible(pat, rel string) bool {
	if rel == "" {
		return true
	}
	patSegs := strings.Split(pat, "/")
	relSegs := strings.Split(rel, "/")
	for i, rs := range relSegs {
		if i >= len(patSegs) {
			return true // pattern is shorter/"**"-open, descendants still possible
		}
		ps := patSegs[i]
		if ps == "**" {
			return true
		}
		if strings.ContainsAny(ps, "*?[{") {
			continue // wildcard segment: assume compatible, refined by doublestar at leaf
		}
		if ps != rs {
			return false
		}
	}
	return true
}

// coneIncludes implements cone mode's inclusion rule: root-level files,
// immediate children of a cone ancestor, or anything inside a cone.
func (m *Matcher) coneIncludes(rel string) bool {
	if rel == "" {
		return true
	}
	segs := strings.Split(rel, "/")
	if len(segs) == 1 {
		return true // (a) root-level file
	}
	dir := strings.Join(segs[:len(segs)-1], "/")
	for _, cone := range m.cones {
		if dir == cone || strings.HasPrefix(dir+"/", cone+"/") {
			return true // (c) inside a declared cone
		}
		if isAncestorDir(dir, cone) {
			return true // (b) immediate child of an ancestor of a cone
		}
	}
	return false
}

// coneTraversable implements cone mode's traverse rule: an ancestor of a
// cone, or inside a cone.
func (m *Matcher) coneTraversable(rel string) bool {
	if rel == "" {
		return true
	}
	for _, cone := range m.cones {
		if rel == cone || strings.HasPrefix(rel+"/", cone+"/") {
			return true
		}
		if isAncestorDir(rel, cone) {
			return true
		}
	}
	return false
}

// isAncestorDir reports whether dir is an ancestor directory of, or equal
// to, target.
func isAncestorDir(dir, target string) bool {
	if dir == target {
		return true
	}
	return strings.HasPrefix(target+"/", dir+"/")
}
