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

package sparsefs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dot-do/fsx/internal/catalog"
	"github.com/dot-do/fsx/internal/fserrors"
	"github.com/dot-do/fsx/internal/fsfacade"
	"github.com/dot-do/fsx/internal/objectstore"
	"github.com/dot-do/fsx/internal/sparse"
	"github.com/dot-do/fsx/internal/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSparseFS(t *testing.T, matcher *sparse.Matcher) *FS {
	t.Helper()
	dir := t.TempDir()
	db, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	router := tier.New(tier.Config{HotMaxSize: tier.DefaultHotMaxSize, WarmEnabled: true}, objectstore.NewMemory(), objectstore.NewMemory())
	cat := catalog.NewCatalog(db, router)
	inner := fsfacade.New(cat, fsfacade.Options{})
	return New(inner, matcher)
}

func TestSparseFSHidesExcludedPaths(t *testing.T) {
	ctx := context.Background()
	matcher := sparse.NewPatternMatcher("/", []string{"src/**/*.go"}, nil)
	fs := newTestSparseFS(t, matcher)

	require.NoError(t, fs.inner.Mkdir("/src", fsfacade.MkdirOptions{Recursive: true}))
	require.NoError(t, fs.inner.WriteFile(ctx, "/src/a.go", []byte("x"), 0, fsfacade.FlagTruncate))
	require.NoError(t, fs.inner.WriteFile(ctx, "/src/a.txt", []byte("y"), 0, fsfacade.FlagTruncate))

	assert.True(t, fs.Exists("/src/a.go"))
	assert.False(t, fs.Exists("/src/a.txt"))

	_, err := fs.Stat("/src/a.txt")
	require.Error(t, err)
	assert.True(t, fserrors.Is(err, fserrors.ENOENT))
}

func TestSparseFSReaddirFiltersEntries(t *testing.T) {
	ctx := context.Background()
	matcher := sparse.NewPatternMatcher("/", []string{"src/**/*.go"}, nil)
	fs := newTestSparseFS(t, matcher)

	require.NoError(t, fs.inner.Mkdir("/src", fsfacade.MkdirOptions{Recursive: true}))
	require.NoError(t, fs.inner.WriteFile(ctx, "/src/a.go", []byte("x"), 0, fsfacade.FlagTruncate))
	require.NoError(t, fs.inner.WriteFile(ctx, "/src/a.txt", []byte("y"), 0, fsfacade.FlagTruncate))

	entries, err := fs.Readdir("/src", fsfacade.ReaddirOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.go", entries[0].Name)
}

func TestSparseFSConeModeTraversal(t *testing.T) {
	ctx := context.Background()
	matcher, err := sparse.NewConeMatcher("/", []string{"src/app"}, nil)
	require.NoError(t, err)
	fs := newTestSparseFS(t, matcher)

	require.NoError(t, fs.inner.Mkdir("/src/app", fsfacade.MkdirOptions{Recursive: true}))
	require.NoError(t, fs.inner.Mkdir("/src/other", fsfacade.MkdirOptions{Recursive: true}))
	require.NoError(t, fs.inner.WriteFile(ctx, "/src/app/main.go", []byte("x"), 0, fsfacade.FlagTruncate))
	require.NoError(t, fs.inner.WriteFile(ctx, "/src/other/deep.go", []byte("y"), 0, fsfacade.FlagTruncate))

	assert.True(t, fs.Exists("/src/app/main.go"))

	entries, err := fs.Readdir("/src", fsfacade.ReaddirOptions{})
	require.NoError(t, err)
	names := map[string]catalog.Kind{}
	for _, e := range entries {
		names[e.Name] = e.Kind
	}
	assert.Contains(t, names, "app")
}

func TestSparseFSRmForceOnExcludedIsSilent(t *testing.T) {
	matcher := sparse.NewPatternMatcher("/", []string{"src/**/*.go"}, nil)
	fs := newTestSparseFS(t, matcher)
	err := fs.Rm(context.Background(), "/excluded.txt", fsfacade.RmOptions{Force: true})
	assert.NoError(t, err)
}

func TestSparseFSHidesExcludedPathsFromMetadataOps(t *testing.T) {
	ctx := context.Background()
	matcher := sparse.NewPatternMatcher("/", []string{"src/**/*.go"}, nil)
	fs := newTestSparseFS(t, matcher)
	require.NoError(t, fs.inner.WriteFile(ctx, "/excluded.txt", []byte("y"), 0, fsfacade.FlagTruncate))

	_, err := fs.Lstat("/excluded.txt")
	require.Error(t, err)
	assert.True(t, fserrors.Is(err, fserrors.ENOENT))

	err = fs.Chmod("/excluded.txt", 0o644)
	require.Error(t, err)
	assert.True(t, fserrors.Is(err, fserrors.ENOENT))

	err = fs.Touch(ctx, "/excluded.txt")
	require.Error(t, err)
	assert.True(t, fserrors.Is(err, fserrors.ENOENT))
}
