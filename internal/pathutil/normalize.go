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

// Package pathutil implements the core's path normalizer: purely lexical
// canonicalization of an abstract path, with no symlink resolution and no
// catalog lookups.
package pathutil

import (
	"strings"

	"github.com/dot-do/fsx/internal/fserrors"
)

// DefaultMaxPathLength is the ceiling normalize enforces unless overridden.
const DefaultMaxPathLength = 4096

// Normalize canonicalizes an arbitrary path per spec §4.A: prepend a
// leading slash if missing, drop empty segments and ".", pop the stack on
// "..", rejoin with single slashes, and reject anything over maxLen.
func Normalize(path string, maxLen int) (string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxPathLength
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	segments := strings.Split(path, "/")
	stack := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}

	result := "/" + strings.Join(stack, "/")

	if len(result) > maxLen {
		return "", fserrors.New("normalize", path, fserrors.ENAMETOOLONG)
	}

	return result, nil
}

// Base returns the basename of an already-normalized path ("" for root).
func Base(path string) string {
	if path == "/" {
		return ""
	}
	idx := strings.LastIndexByte(path, '/')
	return path[idx+1:]
}

// Dir returns the parent of an already-normalized path ("/" for a
// top-level entry or root itself).
func Dir(path string) string {
	if path == "/" {
		return "/"
	}
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

// Join joins a normalized parent directory and a basename into a child path.
func Join(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// Split decomposes an already-normalized non-root path into its segments.
func Split(path string) []string {
	if path == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// IsAncestor reports whether ancestor is a/ the ancestor directory of path
// (or equal to it), both assumed normalized.
func IsAncestor(ancestor, path string) bool {
	if ancestor == path {
		return true
	}
	if ancestor == "/" {
		return true
	}
	return strings.HasPrefix(path, ancestor+"/")
}
