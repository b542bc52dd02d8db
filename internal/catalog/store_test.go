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

package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dot-do/fsx/internal/fserrors"
	"github.com/dot-do/fsx/internal/objectstore"
	"github.com/dot-do/fsx/internal/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	router := tier.New(tier.Config{HotMaxSize: 16, WarmEnabled: true}, objectstore.NewMemory(), objectstore.NewMemory())
	return NewCatalog(db, router)
}

func TestCreateRegularAndReadWrite(t *testing.T) {
	ctx := context.Background()
	cat := newTestCatalog(t)

	_, err := cat.CreateRegular("/a.txt", DefaultFileMode, 0, 0)
	require.NoError(t, err)

	n, err := cat.WritePayload(ctx, "/a.txt", []byte("hello"), false)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n.Size)
	assert.Equal(t, TierHot, n.Tier)

	data, _, err := cat.ReadPayload(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestCreateRegularDuplicateFails(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateRegular("/a.txt", DefaultFileMode, 0, 0)
	require.NoError(t, err)
	_, err = cat.CreateRegular("/a.txt", DefaultFileMode, 0, 0)
	require.Error(t, err)
	assert.True(t, fserrors.Is(err, fserrors.EEXIST))
}

func TestCreateRegularMissingParent(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateRegular("/missing/a.txt", DefaultFileMode, 0, 0)
	require.Error(t, err)
	assert.True(t, fserrors.Is(err, fserrors.ENOENT))
}

func TestMkdirRecursiveIdempotent(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateDirectory("/x/y/z", DefaultDirMode, 0, 0, true)
	require.NoError(t, err)
	_, err = cat.CreateDirectory("/x/y/z", DefaultDirMode, 0, 0, true)
	require.NoError(t, err)

	n, err := cat.Resolve("/x/y/z")
	require.NoError(t, err)
	assert.True(t, n.Kind.IsDir())
}

func TestRecursiveMkdirWriteAndRemove(t *testing.T) {
	ctx := context.Background()
	cat := newTestCatalog(t)

	_, err := cat.CreateDirectory("/x/y/z", DefaultDirMode, 0, 0, true)
	require.NoError(t, err)
	_, err = cat.CreateRegular("/x/y/z/f", DefaultFileMode, 0, 0)
	require.NoError(t, err)
	_, err = cat.WritePayload(ctx, "/x/y/z/f", []byte("1"), false)
	require.NoError(t, err)

	err = cat.RemoveDirectory(ctx, "/x", true)
	require.NoError(t, err)

	_, err = cat.Resolve("/x")
	assert.True(t, fserrors.Is(err, fserrors.ENOENT))
	_, err = cat.Resolve("/x/y/z/f")
	assert.True(t, fserrors.Is(err, fserrors.ENOENT))
}

func TestRmdirNonEmptyWithoutRecursiveFails(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateDirectory("/d", DefaultDirMode, 0, 0, false)
	require.NoError(t, err)
	_, err = cat.CreateRegular("/d/f", DefaultFileMode, 0, 0)
	require.NoError(t, err)

	err = cat.RemoveDirectory(context.Background(), "/d", false)
	require.Error(t, err)
	assert.True(t, fserrors.Is(err, fserrors.ENOTEMPTY))
}

func TestAtomicRename(t *testing.T) {
	ctx := context.Background()
	cat := newTestCatalog(t)
	_, err := cat.CreateRegular("/a", DefaultFileMode, 0, 0)
	require.NoError(t, err)
	_, err = cat.WritePayload(ctx, "/a", []byte("A"), false)
	require.NoError(t, err)
	_, err = cat.CreateRegular("/b", DefaultFileMode, 0, 0)
	require.NoError(t, err)
	_, err = cat.WritePayload(ctx, "/b", []byte("B"), false)
	require.NoError(t, err)

	require.NoError(t, cat.Rename("/a", "/b"))

	data, _, err := cat.ReadPayload(ctx, "/b")
	require.NoError(t, err)
	assert.Equal(t, "A", string(data))

	_, err = cat.Resolve("/a")
	assert.True(t, fserrors.Is(err, fserrors.ENOENT))
}

func TestSelfRenameIsNoop(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateRegular("/a", DefaultFileMode, 0, 0)
	require.NoError(t, err)
	require.NoError(t, cat.Rename("/a", "/a"))
	_, err = cat.Resolve("/a")
	require.NoError(t, err)
}

func TestHardLinkSharesBlobAndNlink(t *testing.T) {
	ctx := context.Background()
	cat := newTestCatalog(t)
	_, err := cat.CreateRegular("/a", DefaultFileMode, 0, 0)
	require.NoError(t, err)
	_, err = cat.WritePayload(ctx, "/a", []byte("shared"), false)
	require.NoError(t, err)

	_, err = cat.CreateHardLink("/a", "/b")
	require.NoError(t, err)

	a, err := cat.Resolve("/a")
	require.NoError(t, err)
	b, err := cat.Resolve("/b")
	require.NoError(t, err)
	assert.Equal(t, a.BlobID, b.BlobID)
	assert.Equal(t, 2, a.Nlink)
	assert.Equal(t, 2, b.Nlink)

	data, _, err := cat.ReadPayload(ctx, "/b")
	require.NoError(t, err)
	assert.Equal(t, "shared", string(data))
}

func TestReaddirMatchesParentID(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateDirectory("/d", DefaultDirMode, 0, 0, false)
	require.NoError(t, err)
	_, err = cat.CreateRegular("/d/a", DefaultFileMode, 0, 0)
	require.NoError(t, err)
	_, err = cat.CreateRegular("/d/b", DefaultFileMode, 0, 0)
	require.NoError(t, err)

	entries, err := cat.Readdir("/d")
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true}, names)
}

func TestTieredWriteBoundaries(t *testing.T) {
	ctx := context.Background()
	cat := newTestCatalog(t)
	_, err := cat.CreateRegular("/hot", DefaultFileMode, 0, 0)
	require.NoError(t, err)
	n, err := cat.WritePayload(ctx, "/hot", make([]byte, 16), false)
	require.NoError(t, err)
	assert.Equal(t, TierHot, n.Tier)

	_, err = cat.CreateRegular("/warm", DefaultFileMode, 0, 0)
	require.NoError(t, err)
	n, err = cat.WritePayload(ctx, "/warm", make([]byte, 17), false)
	require.NoError(t, err)
	assert.Equal(t, TierWarm, n.Tier)
}

func TestRemoveFileForceMissingIsCallerConcern(t *testing.T) {
	cat := newTestCatalog(t)
	err := cat.RemoveFile(context.Background(), "/nope")
	assert.True(t, fserrors.Is(err, fserrors.ENOENT))
}
