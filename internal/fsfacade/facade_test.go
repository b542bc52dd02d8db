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

package fsfacade

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dot-do/fsx/internal/catalog"
	"github.com/dot-do/fsx/internal/fserrors"
	"github.com/dot-do/fsx/internal/objectstore"
	"github.com/dot-do/fsx/internal/tier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEmitter struct {
	events []string
}

func (r *recordingEmitter) Emit(kind EventKind, path string) {
	r.events = append(r.events, path)
}

func newTestFS(t *testing.T) (*FS, *recordingEmitter) {
	t.Helper()
	dir := t.TempDir()
	db, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	router := tier.New(tier.Config{HotMaxSize: tier.DefaultHotMaxSize, WarmEnabled: true}, objectstore.NewMemory(), objectstore.NewMemory())
	cat := catalog.NewCatalog(db, router)
	emitter := &recordingEmitter{}
	return New(cat, Options{Watch: emitter}), emitter
}

func TestTieredWriteRead(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFS(t)

	require.NoError(t, fs.WriteFile(ctx, "/a.txt", []byte("hello"), 0, FlagTruncate))

	st, err := fs.Stat("/a.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 5, st.Size)
	assert.Equal(t, catalog.TierHot, st.Tier)

	got, err := fs.ReadFile(ctx, "/a.txt", EncodingUTF8)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	b64, err := fs.ReadFile(ctx, "/a.txt", EncodingBase64)
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", b64)
}

func TestRecursiveMkdirAndForceRm(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFS(t)

	require.NoError(t, fs.Mkdir("/x/y/z", MkdirOptions{Recursive: true}))
	require.NoError(t, fs.WriteFile(ctx, "/x/y/z/f", []byte("1"), 0, FlagTruncate))
	require.NoError(t, fs.Rm(ctx, "/x", RmOptions{Recursive: true, Force: true}))

	assert.False(t, fs.Exists("/x"))
	assert.False(t, fs.Exists("/x/y/z/f"))
}

func TestRmForceOnMissingIsSilent(t *testing.T) {
	fs, _ := newTestFS(t)
	err := fs.Rm(context.Background(), "/nope", RmOptions{Force: true})
	assert.NoError(t, err)
}

func TestAtomicRenameEmitsBothPaths(t *testing.T) {
	ctx := context.Background()
	fs, emitter := newTestFS(t)

	require.NoError(t, fs.WriteFile(ctx, "/a", []byte("A"), 0, FlagTruncate))
	require.NoError(t, fs.WriteFile(ctx, "/b", []byte("B"), 0, FlagTruncate))
	require.NoError(t, fs.Rename(ctx, "/a", "/b"))

	got, err := fs.ReadFile(ctx, "/b", EncodingUTF8)
	require.NoError(t, err)
	assert.Equal(t, "A", got)
	assert.False(t, fs.Exists("/a"))
	assert.Contains(t, emitter.events, "/a")
	assert.Contains(t, emitter.events, "/b")
}

func TestWriteFileExclusiveFailsOnExisting(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFS(t)
	require.NoError(t, fs.WriteFile(ctx, "/a", []byte("x"), 0, FlagTruncate))
	err := fs.WriteFile(ctx, "/a", []byte("y"), 0, FlagExclusive)
	require.Error(t, err)
	assert.True(t, fserrors.Is(err, fserrors.EEXIST))
}

func TestAppendFile(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFS(t)
	require.NoError(t, fs.WriteFile(ctx, "/a", []byte("foo"), 0, FlagTruncate))
	require.NoError(t, fs.AppendFile(ctx, "/a", []byte("bar")))
	got, err := fs.ReadFile(ctx, "/a", EncodingUTF8)
	require.NoError(t, err)
	assert.Equal(t, "foobar", got)
}

func TestReaddirListsChildren(t *testing.T) {
	fs, _ := newTestFS(t)
	require.NoError(t, fs.Mkdir("/d", MkdirOptions{}))
	require.NoError(t, fs.WriteFile(context.Background(), "/d/a", []byte("1"), 0, FlagTruncate))
	require.NoError(t, fs.WriteFile(context.Background(), "/d/b", []byte("2"), 0, FlagTruncate))

	entries, err := fs.Readdir("/d", ReaddirOptions{})
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true}, names)
}

func TestSymlinkReadlinkRealpath(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFS(t)
	require.NoError(t, fs.WriteFile(ctx, "/target", []byte("x"), 0, FlagTruncate))
	require.NoError(t, fs.Symlink("/target", "/link"))

	target, err := fs.Readlink("/link")
	require.NoError(t, err)
	assert.Equal(t, "/target", target)

	resolved, err := fs.Realpath("/link")
	require.NoError(t, err)
	assert.Equal(t, "/target", resolved)

	_, err = fs.Readlink("/target")
	assert.True(t, fserrors.Is(err, fserrors.EINVAL))
}

func TestAccessAndExists(t *testing.T) {
	fs, _ := newTestFS(t)
	assert.False(t, fs.Exists("/a"))
	require.NoError(t, fs.WriteFile(context.Background(), "/a", []byte("x"), 0o644, FlagTruncate))
	assert.True(t, fs.Exists("/a"))
	assert.NoError(t, fs.Access("/a", ROK))
}

func TestTruncateGrowPadsWithZeros(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFS(t)
	require.NoError(t, fs.WriteFile(ctx, "/a", []byte("ab"), 0, FlagTruncate))
	require.NoError(t, fs.Truncate(ctx, "/a", 4))
	data, err := fs.ReadFile(ctx, "/a", EncodingRaw)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 0, 0}, data.([]byte))
}

func TestHandleWritesVisibleToOtherReaders(t *testing.T) {
	ctx := context.Background()
	fs, _ := newTestFS(t)
	require.NoError(t, fs.WriteFile(ctx, "/a", []byte("12345"), 0, FlagTruncate))

	h, err := fs.Open(ctx, "/a", OReadWrite, 0)
	require.NoError(t, err)
	_, err = h.WriteAt(ctx, []byte("X"), 0)
	require.NoError(t, err)
	require.NoError(t, h.Sync(ctx))
	require.NoError(t, h.Close())

	got, err := fs.ReadFile(ctx, "/a", EncodingUTF8)
	require.NoError(t, err)
	assert.Equal(t, "X2345", got)
}
