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
	"sync"
	"time"

	"github.com/dot-do/fsx/internal/catalog"
)

// OpenFlag mirrors the subset of POSIX open(2) flags the facade supports.
type OpenFlag int

const (
	OReadOnly OpenFlag = iota
	OReadWrite
	OCreate
)

// Handle is an opaque, positioned read/write handle over one inode.
// Writes through a handle are visible to subsequent reads on any path
// that resolves to the same inode, since both go through the same
// catalog row.
type Handle struct {
	mu   sync.Mutex
	fs   *FS
	path string
	buf  []byte
	pos  int64
	open bool
}

// Open returns a handle bound to path, creating it first if OCreate is
// set and it does not exist.
func (fs *FS) Open(ctx context.Context, path string, flag OpenFlag, mode uint32) (*Handle, error) {
	p, err := fs.normalize("open", path)
	if err != nil {
		return nil, err
	}
	if _, rerr := fs.cat.Resolve(p); rerr != nil {
		if flag != OCreate {
			return nil, rerr
		}
		if _, cerr := fs.cat.CreateRegular(p, orDefault(mode, catalog.DefaultFileMode), fs.requestUID, fs.requestGID); cerr != nil {
			return nil, cerr
		}
	}
	data, _, err := fs.cat.ReadPayload(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Handle{fs: fs, path: p, buf: data, open: true}, nil
}

func (h *Handle) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if off >= int64(len(h.buf)) {
		return 0, nil
	}
	n := copy(p, h.buf[off:])
	return n, nil
}

func (h *Handle) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(h.buf)) {
		grown := make([]byte, end)
		copy(grown, h.buf)
		h.buf = grown
	}
	copy(h.buf[off:end], p)
	if _, err := h.fs.cat.WritePayload(ctx, h.path, h.buf, false); err != nil {
		return 0, err
	}
	h.fs.emit(EventContentChange, h.path)
	return len(p), nil
}

// Sync flushes the handle's in-memory buffer to the catalog.
func (h *Handle) Sync(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.fs.cat.WritePayload(ctx, h.path, h.buf, false)
	if err != nil {
		return err
	}
	h.fs.emit(EventContentChange, h.path)
	return nil
}

func (h *Handle) Truncate(ctx context.Context, length int64) error {
	h.mu.Lock()
	switch {
	case length < int64(len(h.buf)):
		h.buf = h.buf[:length]
	case length > int64(len(h.buf)):
		h.buf = append(h.buf, make([]byte, length-int64(len(h.buf)))...)
	}
	h.mu.Unlock()
	return h.Sync(ctx)
}

func (h *Handle) Stat() (*catalog.Inode, error) {
	return h.fs.cat.Resolve(h.path)
}

// Close releases the handle's reference to the inode. WriteAt and
// Truncate have already written the buffer through to the catalog, so
// Close has nothing left to flush.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.open = false
	return nil
}

// CreateReadStream / CreateWriteStream are equivalent to readFile/
// writeFile over the entire file unless an offset/length is given; they
// expose a chunked, lazy interface for large-payload transfer per §4.D.
// The first chunk read updates atime (open question (3)).
type ReadStream struct {
	fs      *FS
	path    string
	data    []byte
	pos     int
	chunk   int
	touched bool
}

func (fs *FS) CreateReadStream(ctx context.Context, path string, offset, length int64, chunkSize int) (*ReadStream, error) {
	p, err := fs.normalize("createReadStream", path)
	if err != nil {
		return nil, err
	}
	data, _, err := fs.cat.ReadPayload(ctx, p)
	if err != nil {
		return nil, err
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	end := int64(len(data))
	if length > 0 && offset+length < end {
		end = offset + length
	}
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	return &ReadStream{fs: fs, path: p, data: data[offset:end], chunk: chunkSize}, nil
}

// Next returns the next chunk, or nil when the stream is exhausted. The
// first chunk updates atime per open question (3) of the design notes.
func (rs *ReadStream) Next() []byte {
	if rs.pos >= len(rs.data) {
		return nil
	}
	if !rs.touched {
		rs.touched = true
		now := time.Now()
		_, _ = rs.fs.cat.UpdateMetadata(rs.path, catalog.MetadataUpdate{Atime: &now})
	}
	end := rs.pos + rs.chunk
	if end > len(rs.data) {
		end = len(rs.data)
	}
	chunk := rs.data[rs.pos:end]
	rs.pos = end
	return chunk
}

type WriteStream struct {
	fs   *FS
	path string
	buf  []byte
}

func (fs *FS) CreateWriteStream(path string, mode uint32, flag Flag) (*WriteStream, error) {
	p, err := fs.normalize("createWriteStream", path)
	if err != nil {
		return nil, err
	}
	return &WriteStream{fs: fs, path: p}, nil
}

func (ws *WriteStream) Write(chunk []byte) {
	ws.buf = append(ws.buf, chunk...)
}

func (ws *WriteStream) Close(ctx context.Context) error {
	return ws.fs.WriteFile(ctx, ws.path, ws.buf, 0, FlagTruncate)
}
