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

// Package sparsefs decorates an *fsfacade.FS with a sparse.Matcher,
// making paths outside the sparse view behave exactly as if they did not
// exist (per spec §4.F): ENOENT on direct access, silently filtered out
// of directory listings. Recursive removal of a visible directory is
// passed to the inner facade and also removes its hidden descendants.
package sparsefs

import (
	"context"

	"github.com/dot-do/fsx/internal/catalog"
	"github.com/dot-do/fsx/internal/fserrors"
	"github.com/dot-do/fsx/internal/fsfacade"
	"github.com/dot-do/fsx/internal/sparse"
)

// FS wraps an *fsfacade.FS, filtering every path-accepting operation
// through a sparse.Matcher.
type FS struct {
	inner   *fsfacade.FS
	matcher *sparse.Matcher
}

// New builds a sparse-filtered view over inner.
func New(inner *fsfacade.FS, matcher *sparse.Matcher) *FS {
	return &FS{inner: inner, matcher: matcher}
}

func (fs *FS) excluded(path string) bool {
	return !fs.matcher.ShouldInclude(path)
}

func notFound(op, path string) error {
	return fserrors.New(op, path, fserrors.ENOENT)
}

func (fs *FS) ReadFile(ctx context.Context, path string, enc fsfacade.Encoding) (any, error) {
	if fs.excluded(path) {
		return nil, notFound("readFile", path)
	}
	return fs.inner.ReadFile(ctx, path, enc)
}

func (fs *FS) WriteFile(ctx context.Context, path string, data []byte, mode uint32, flag fsfacade.Flag) error {
	if fs.excluded(path) {
		return notFound("writeFile", path)
	}
	return fs.inner.WriteFile(ctx, path, data, mode, flag)
}

func (fs *FS) AppendFile(ctx context.Context, path string, data []byte) error {
	if fs.excluded(path) {
		return notFound("appendFile", path)
	}
	return fs.inner.AppendFile(ctx, path, data)
}

func (fs *FS) Unlink(ctx context.Context, path string) error {
	if fs.excluded(path) {
		return notFound("unlink", path)
	}
	return fs.inner.Unlink(ctx, path)
}

func (fs *FS) Rename(ctx context.Context, oldPath, newPath string) error {
	if fs.excluded(oldPath) {
		return notFound("rename", oldPath)
	}
	if !fs.matcher.ShouldTraverseDirectory(newPath) && fs.excluded(newPath) {
		return notFound("rename", newPath)
	}
	return fs.inner.Rename(ctx, oldPath, newPath)
}

func (fs *FS) Mkdir(path string, opts fsfacade.MkdirOptions) error {
	if !fs.matcher.ShouldTraverseDirectory(path) && fs.excluded(path) {
		return notFound("mkdir", path)
	}
	return fs.inner.Mkdir(path, opts)
}

func (fs *FS) Rmdir(ctx context.Context, path string, recursive bool) error {
	if fs.excluded(path) {
		return notFound("rmdir", path)
	}
	return fs.inner.Rmdir(ctx, path, recursive)
}

func (fs *FS) Rm(ctx context.Context, path string, opts fsfacade.RmOptions) error {
	if fs.excluded(path) {
		if opts.Force {
			return nil
		}
		return notFound("rm", path)
	}
	return fs.inner.Rm(ctx, path, opts)
}

// Readdir lists only the entries that pass the matcher, so a sparse
// checkout never reveals the existence of filtered-out siblings.
func (fs *FS) Readdir(path string, opts fsfacade.ReaddirOptions) ([]fsfacade.DirEntry, error) {
	if fs.excluded(path) && !fs.matcher.ShouldTraverseDirectory(path) {
		return nil, notFound("readdir", path)
	}
	entries, err := fs.inner.Readdir(path, opts)
	if err != nil {
		return nil, err
	}
	filtered := make([]fsfacade.DirEntry, 0, len(entries))
	for _, e := range entries {
		full := path
		if full != "/" {
			full += "/"
		}
		full += e.Name
		if e.Kind == catalog.KindDirectory {
			if fs.matcher.ShouldInclude(full) || fs.matcher.ShouldTraverseDirectory(full) {
				filtered = append(filtered, e)
			}
			continue
		}
		if fs.matcher.ShouldInclude(full) {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func (fs *FS) Stat(path string) (*catalog.Inode, error) {
	if fs.excluded(path) {
		return nil, notFound("stat", path)
	}
	return fs.inner.Stat(path)
}

func (fs *FS) Exists(path string) bool {
	if fs.excluded(path) {
		return false
	}
	return fs.inner.Exists(path)
}

func (fs *FS) CopyFile(ctx context.Context, src, dest string, exclusive bool) error {
	if fs.excluded(src) {
		return notFound("cp", src)
	}
	if fs.excluded(dest) {
		return notFound("cp", dest)
	}
	return fs.inner.CopyFile(ctx, src, dest, exclusive)
}

func (fs *FS) Lstat(path string) (*catalog.Inode, error) {
	if fs.excluded(path) {
		return nil, notFound("lstat", path)
	}
	return fs.inner.Lstat(path)
}

func (fs *FS) Chmod(path string, mode uint32) error {
	if fs.excluded(path) {
		return notFound("chmod", path)
	}
	return fs.inner.Chmod(path, mode)
}

func (fs *FS) Chown(path string, uid, gid int) error {
	if fs.excluded(path) {
		return notFound("chown", path)
	}
	return fs.inner.Chown(path, uid, gid)
}

func (fs *FS) Symlink(target, path string) error {
	if fs.excluded(path) {
		return notFound("symlink", path)
	}
	return fs.inner.Symlink(target, path)
}

func (fs *FS) Link(existing, newPath string) error {
	if fs.excluded(existing) {
		return notFound("link", existing)
	}
	if fs.excluded(newPath) {
		return notFound("link", newPath)
	}
	return fs.inner.Link(existing, newPath)
}

func (fs *FS) Readlink(path string) (string, error) {
	if fs.excluded(path) {
		return "", notFound("readlink", path)
	}
	return fs.inner.Readlink(path)
}

func (fs *FS) Realpath(path string) (string, error) {
	if fs.excluded(path) {
		return "", notFound("realpath", path)
	}
	return fs.inner.Realpath(path)
}

func (fs *FS) Touch(ctx context.Context, path string) error {
	if fs.excluded(path) {
		return notFound("touch", path)
	}
	return fs.inner.Touch(ctx, path)
}
