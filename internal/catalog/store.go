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
	"time"

	"github.com/dot-do/fsx/internal/fserrors"
	"github.com/dot-do/fsx/internal/pathutil"
	"go.etcd.io/bbolt"
)

// BlobIO is the subset of the tier router the catalog needs in order to
// allocate, read and delete payload bytes. Implemented by *tier.Router;
// kept as an interface here so the catalog package never imports tier
// (tier imports catalog, not the reverse).
type BlobIO interface {
	NewBlobID() string
	PlaceTier(n int64) (Tier, error)
	Write(ctx context.Context, data []byte) (*Blob, error)
	Read(ctx context.Context, blob *Blob) ([]byte, error)
	Delete(ctx context.Context, blob *Blob) error
}

// Catalog is the single-writer transactional store described in spec
// §4.B, layered on a *DB (bbolt) and a BlobIO (tier router).
type Catalog struct {
	db   *DB
	tier BlobIO
}

func NewCatalog(db *DB, tier BlobIO) *Catalog {
	return &Catalog{db: db, tier: tier}
}

// Resolve performs a lexical lookup by canonical path.
func (c *Catalog) Resolve(path string) (*Inode, error) {
	var out *Inode
	err := c.db.bolt.View(func(tx *bbolt.Tx) error {
		n, ok := getInodeByPath(tx, path)
		if !ok {
			return fserrors.New("resolve", path, fserrors.ENOENT)
		}
		out = n
		return nil
	})
	return out, err
}

// Readdir returns the inodes whose parent_id equals dir's id, i.e. the
// directory's enumeration per invariant (4).
func (c *Catalog) Readdir(path string) ([]*Inode, error) {
	var out []*Inode
	err := c.db.bolt.View(func(tx *bbolt.Tx) error {
		dir, ok := getInodeByPath(tx, path)
		if !ok {
			return fserrors.New("readdir", path, fserrors.ENOENT)
		}
		if !dir.Kind.IsDir() {
			return fserrors.New("readdir", path, fserrors.ENOTDIR)
		}
		cur := tx.Bucket(bucketChildren).Cursor()
		prefix := childPrefix(dir.ID)
		for k, v := cur.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cur.Next() {
			child, ok := getInodeByID(tx, idFromKey(v))
			if ok {
				out = append(out, child)
			}
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// resolveParentDir finds the directory identified by the parent of path,
// returning ENOENT if missing and ENOTDIR if it is not a directory.
func resolveParentDir(tx *bbolt.Tx, path string) (*Inode, error) {
	parentPath := pathutil.Dir(path)
	parent, ok := getInodeByPath(tx, parentPath)
	if !ok {
		return nil, fserrors.New("resolve", path, fserrors.ENOENT)
	}
	if !parent.Kind.IsDir() {
		return nil, fserrors.New("resolve", path, fserrors.ENOTDIR)
	}
	return parent, nil
}

func linkChild(tx *bbolt.Tx, parent *Inode, n *Inode) error {
	return tx.Bucket(bucketChildren).Put(childKey(parent.ID, n.Name), idKey(n.ID))
}

func unlinkChild(tx *bbolt.Tx, parentID uint64, name string) error {
	return tx.Bucket(bucketChildren).Delete(childKey(parentID, name))
}

// CreateRegular creates an empty regular file (no blob until first write).
func (c *Catalog) CreateRegular(path string, mode uint32, uid, gid int) (*Inode, error) {
	var out *Inode
	err := c.db.bolt.Update(func(tx *bbolt.Tx) error {
		if _, ok := getInodeByPath(tx, path); ok {
			return fserrors.New("create", path, fserrors.EEXIST)
		}
		parent, err := resolveParentDir(tx, path)
		if err != nil {
			return err
		}
		id, err := nextID(tx)
		if err != nil {
			return err
		}
		now := time.Now()
		n := &Inode{
			ID: id, Path: path, Name: pathutil.Base(path),
			ParentID: parent.ID, HasParent: true,
			Kind: KindRegular, Mode: mode, UID: uid, GID: gid,
			Tier: TierNone, Nlink: 1,
			Atime: now, Mtime: now, Ctime: now, Birthtime: now,
		}
		if err := putInode(tx, n); err != nil {
			return err
		}
		if err := linkChild(tx, parent, n); err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

// CreateDirectory creates a directory; with recursive it creates missing
// ancestors idempotently.
func (c *Catalog) CreateDirectory(path string, mode uint32, uid, gid int, recursive bool) (*Inode, error) {
	if !recursive {
		var out *Inode
		err := c.db.bolt.Update(func(tx *bbolt.Tx) error {
			if _, ok := getInodeByPath(tx, path); ok {
				return fserrors.New("mkdir", path, fserrors.EEXIST)
			}
			parent, err := resolveParentDir(tx, path)
			if err != nil {
				return err
			}
			n, err := c.mkdirTx(tx, parent, path, mode, uid, gid)
			out = n
			return err
		})
		return out, err
	}

	segments := pathutil.Split(path)
	var out *Inode
	err := c.db.bolt.Update(func(tx *bbolt.Tx) error {
		cur, _ := getInodeByPath(tx, "/")
		built := "/"
		for _, seg := range segments {
			built = pathutil.Join(built, seg)
			if existing, ok := getInodeByPath(tx, built); ok {
				if !existing.Kind.IsDir() {
					return fserrors.New("mkdir", built, fserrors.ENOTDIR)
				}
				cur = existing
				continue
			}
			n, err := c.mkdirTx(tx, cur, built, mode, uid, gid)
			if err != nil {
				return err
			}
			cur = n
		}
		out = cur
		return nil
	})
	return out, err
}

func (c *Catalog) mkdirTx(tx *bbolt.Tx, parent *Inode, path string, mode uint32, uid, gid int) (*Inode, error) {
	id, err := nextID(tx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	n := &Inode{
		ID: id, Path: path, Name: pathutil.Base(path),
		ParentID: parent.ID, HasParent: true,
		Kind: KindDirectory, Mode: mode, UID: uid, GID: gid,
		Nlink: 1, Atime: now, Mtime: now, Ctime: now, Birthtime: now,
	}
	if err := putInode(tx, n); err != nil {
		return nil, err
	}
	if err := linkChild(tx, parent, n); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateSymlink stores target verbatim, with no validation.
func (c *Catalog) CreateSymlink(path, target string, uid, gid int) (*Inode, error) {
	var out *Inode
	err := c.db.bolt.Update(func(tx *bbolt.Tx) error {
		if _, ok := getInodeByPath(tx, path); ok {
			return fserrors.New("symlink", path, fserrors.EEXIST)
		}
		parent, err := resolveParentDir(tx, path)
		if err != nil {
			return err
		}
		id, err := nextID(tx)
		if err != nil {
			return err
		}
		now := time.Now()
		n := &Inode{
			ID: id, Path: path, Name: pathutil.Base(path),
			ParentID: parent.ID, HasParent: true,
			Kind: KindSymlink, Mode: 0o777, UID: uid, GID: gid,
			LinkTarget: target, Nlink: 1,
			Atime: now, Mtime: now, Ctime: now, Birthtime: now,
		}
		if err := putInode(tx, n); err != nil {
			return err
		}
		if err := linkChild(tx, parent, n); err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

// CreateHardLink increments nlink on the source row, gives the new row the
// same incremented nlink, and shares blob_id; other existing links to the
// same blob keep their previous nlink. Fails ENOENT on missing source,
// EEXIST on occupied dest, EINVAL if source is a directory.
func (c *Catalog) CreateHardLink(existing, newPath string) (*Inode, error) {
	var out *Inode
	err := c.db.bolt.Update(func(tx *bbolt.Tx) error {
		src, ok := getInodeByPath(tx, existing)
		if !ok {
			return fserrors.New("link", existing, fserrors.ENOENT)
		}
		if src.Kind.IsDir() {
			return fserrors.New("link", existing, fserrors.EINVAL)
		}
		if _, ok := getInodeByPath(tx, newPath); ok {
			return fserrors.New("link", newPath, fserrors.EEXIST)
		}
		parent, err := resolveParentDir(tx, newPath)
		if err != nil {
			return err
		}
		id, err := nextID(tx)
		if err != nil {
			return err
		}
		now := time.Now()
		n := &Inode{
			ID: id, Path: newPath, Name: pathutil.Base(newPath),
			ParentID: parent.ID, HasParent: true,
			Kind: KindHardLinkAlias, Mode: src.Mode, UID: src.UID, GID: src.GID,
			BlobID: src.BlobID, Tier: src.Tier, Size: src.Size,
			Nlink: src.Nlink + 1,
			Atime: now, Mtime: src.Mtime, Ctime: now, Birthtime: now,
		}
		if err := putInode(tx, n); err != nil {
			return err
		}
		if err := linkChild(tx, parent, n); err != nil {
			return err
		}
		if err := bumpNlinkFamily(tx, src, +1); err != nil {
			return err
		}
		if blob, ok := getBlob(tx, src.BlobID); ok {
			blob.RefCount++
			if err := putBlob(tx, blob); err != nil {
				return err
			}
		}
		out = n
		return nil
	})
	return out, err
}

// bumpNlinkFamily adds delta to the nlink field of src only; the newly
// linked row carries the post-bump value directly (see CreateHardLink).
// Other rows sharing src's blob_id are not updated.
func bumpNlinkFamily(tx *bbolt.Tx, src *Inode, delta int) error {
	src.Nlink += delta
	return putInode(tx, src)
}

// Rename is atomic replacement of the target path by the source subtree;
// self-rename is an identity no-op.
func (c *Catalog) Rename(oldPath, newPath string) error {
	if oldPath == newPath {
		return nil
	}
	var orphaned []*Blob
	err := c.db.bolt.Update(func(tx *bbolt.Tx) error {
		src, ok := getInodeByPath(tx, oldPath)
		if !ok {
			return fserrors.New("rename", oldPath, fserrors.ENOENT)
		}
		if dst, ok := getInodeByPath(tx, newPath); ok {
			if dst.Kind.IsDir() && !src.Kind.IsDir() {
				return fserrors.New("rename", newPath, fserrors.EISDIR)
			}
			if err := removeSubtree(tx, dst, &orphaned); err != nil {
				return err
			}
		}
		newParent, err := resolveParentDir(tx, newPath)
		if err != nil {
			return err
		}
		oldParentID := src.ParentID
		oldName := src.Name

		if err := renameSubtree(tx, src, newPath, newParent.ID); err != nil {
			return err
		}
		if err := unlinkChild(tx, oldParentID, oldName); err != nil {
			return err
		}
		return linkChild(tx, newParent, src)
	})
	if err != nil {
		return err
	}
	c.releaseOrphans(context.Background(), orphaned)
	return nil
}

// renameSubtree rewrites path/parent_id for src and, recursively, every
// descendant, preserving each inode's identity (id, blob_id, metadata).
func renameSubtree(tx *bbolt.Tx, src *Inode, newPath string, newParentID uint64) error {
	oldPath := src.Path
	if err := tx.Bucket(bucketPathIndex).Delete([]byte(oldPath)); err != nil {
		return err
	}
	src.Path = newPath
	src.Name = pathutil.Base(newPath)
	src.ParentID = newParentID
	src.Ctime = time.Now()
	if err := putInode(tx, src); err != nil {
		return err
	}
	if !src.Kind.IsDir() {
		return nil
	}

	cur := tx.Bucket(bucketChildren).Cursor()
	prefix := childPrefix(src.ID)
	var childIDs []uint64
	for k, v := cur.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cur.Next() {
		childIDs = append(childIDs, idFromKey(v))
	}
	for _, cid := range childIDs {
		child, ok := getInodeByID(tx, cid)
		if !ok {
			continue
		}
		childNewPath := pathutil.Join(newPath, child.Name)
		if err := renameSubtree(tx, child, childNewPath, src.ID); err != nil {
			return err
		}
		if err := tx.Bucket(bucketChildren).Delete(childKey(src.ID, child.Name)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketChildren).Put(childKey(src.ID, child.Name), idKey(cid)); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFile removes a non-directory entry.
func (c *Catalog) RemoveFile(ctx context.Context, path string) error {
	var orphaned []*Blob
	err := c.db.bolt.Update(func(tx *bbolt.Tx) error {
		n, ok := getInodeByPath(tx, path)
		if !ok {
			return fserrors.New("unlink", path, fserrors.ENOENT)
		}
		if n.Kind.IsDir() {
			return fserrors.New("unlink", path, fserrors.EISDIR)
		}
		return c.removeInodeTx(tx, n, &orphaned)
	})
	if err != nil {
		return err
	}
	c.releaseOrphans(ctx, orphaned)
	return nil
}

// RemoveDirectory removes a directory; non-empty without recursive fails
// ENOTEMPTY.
func (c *Catalog) RemoveDirectory(ctx context.Context, path string, recursive bool) error {
	var orphaned []*Blob
	err := c.db.bolt.Update(func(tx *bbolt.Tx) error {
		n, ok := getInodeByPath(tx, path)
		if !ok {
			return fserrors.New("rmdir", path, fserrors.ENOENT)
		}
		if !n.Kind.IsDir() {
			return fserrors.New("rmdir", path, fserrors.ENOTDIR)
		}
		if !recursive {
			hasChild := false
			cur := tx.Bucket(bucketChildren).Cursor()
			prefix := childPrefix(n.ID)
			if k, _ := cur.Seek(prefix); k != nil && hasPrefix(k, prefix) {
				hasChild = true
			}
			if hasChild {
				return fserrors.New("rmdir", path, fserrors.ENOTEMPTY)
			}
			return c.removeInodeTx(tx, n, &orphaned)
		}
		return removeSubtree(tx, n, &orphaned)
	})
	if err != nil {
		return err
	}
	c.releaseOrphans(ctx, orphaned)
	return nil
}

func (c *Catalog) releaseOrphans(ctx context.Context, orphaned []*Blob) {
	for _, b := range orphaned {
		_ = c.tier.Delete(ctx, b)
	}
}

// removeSubtree removes n and, if it is a directory, every descendant,
// appending any blob that drops to ref_count zero onto orphaned so the
// caller can release its tier bytes once the transaction commits.
func removeSubtree(tx *bbolt.Tx, n *Inode, orphaned *[]*Blob) error {
	if n.Kind.IsDir() {
		cur := tx.Bucket(bucketChildren).Cursor()
		prefix := childPrefix(n.ID)
		var childIDs []uint64
		for k, v := cur.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = cur.Next() {
			childIDs = append(childIDs, idFromKey(v))
		}
		for _, cid := range childIDs {
			child, ok := getInodeByID(tx, cid)
			if !ok {
				continue
			}
			if err := removeSubtree(tx, child, orphaned); err != nil {
				return err
			}
		}
	}
	if n.HasParent {
		if err := unlinkChild(tx, n.ParentID, n.Name); err != nil {
			return err
		}
	}
	return finalizeRemoveTx(tx, n, orphaned)
}

func (c *Catalog) removeInodeTx(tx *bbolt.Tx, n *Inode, orphaned *[]*Blob) error {
	if n.HasParent {
		if err := unlinkChild(tx, n.ParentID, n.Name); err != nil {
			return err
		}
	}
	return finalizeRemoveTx(tx, n, orphaned)
}

// finalizeRemoveTx drops the inode row and, when this was the last
// reference, the blob row behind it - recording it onto orphaned so the
// tier bytes are released once the transaction commits.
func finalizeRemoveTx(tx *bbolt.Tx, n *Inode, orphaned *[]*Blob) error {
	if err := deleteInode(tx, n); err != nil {
		return err
	}
	if n.BlobID == "" {
		return nil
	}
	blob, ok := getBlob(tx, n.BlobID)
	if !ok {
		return nil
	}
	blob.RefCount--
	if blob.RefCount <= 0 {
		if err := deleteBlob(tx, blob.ID); err != nil {
			return err
		}
		*orphaned = append(*orphaned, blob)
		return nil
	}
	return putBlob(tx, blob)
}

// MetadataUpdate is the set of optional fields update_metadata may change.
type MetadataUpdate struct {
	Mode  *uint32
	UID   *int
	GID   *int
	Atime *time.Time
	Mtime *time.Time
}

// UpdateMetadata applies the given fields and refreshes ctime.
func (c *Catalog) UpdateMetadata(path string, u MetadataUpdate) (*Inode, error) {
	var out *Inode
	err := c.db.bolt.Update(func(tx *bbolt.Tx) error {
		n, ok := getInodeByPath(tx, path)
		if !ok {
			return fserrors.New("update_metadata", path, fserrors.ENOENT)
		}
		if u.Mode != nil {
			n.Mode = *u.Mode
		}
		if u.UID != nil {
			n.UID = *u.UID
		}
		if u.GID != nil {
			n.GID = *u.GID
		}
		if u.Atime != nil {
			n.Atime = *u.Atime
		}
		if u.Mtime != nil {
			n.Mtime = *u.Mtime
		}
		n.Ctime = time.Now()
		if err := putInode(tx, n); err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

// WritePayload allocates or replaces the inode's blob via the tier
// router, atomically swapping blob_id/size/tier and bumping mtime/ctime.
// append prepends the inode's current bytes to data before the new blob
// is written, per the append semantics of §4.B.
func (c *Catalog) WritePayload(ctx context.Context, path string, data []byte, appendMode bool) (*Inode, error) {
	var prevBlobID string
	var fullData []byte

	n, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}
	if n.Kind.IsDir() {
		return nil, fserrors.New("write", path, fserrors.EISDIR)
	}

	fullData = data
	if appendMode && n.BlobID != "" {
		existing, ok, gerr := c.readBlobBytes(ctx, n)
		if gerr != nil {
			return nil, gerr
		}
		if ok {
			fullData = append(append([]byte(nil), existing...), data...)
		}
	}
	prevBlobID = n.BlobID

	blob, err := c.tier.Write(ctx, fullData)
	if err != nil {
		return nil, err
	}

	var out *Inode
	var orphan *Blob
	err = c.db.bolt.Update(func(tx *bbolt.Tx) error {
		cur, ok := getInodeByPath(tx, path)
		if !ok {
			return fserrors.New("write", path, fserrors.ENOENT)
		}
		blob.RefCount = 1
		if err := putBlob(tx, blob); err != nil {
			return err
		}
		cur.BlobID = blob.ID
		cur.Tier = blob.Tier
		cur.Size = blob.Size
		now := time.Now()
		cur.Mtime = now
		cur.Ctime = now
		if err := putInode(tx, cur); err != nil {
			return err
		}
		if prevBlobID != "" && prevBlobID != blob.ID {
			if old, ok := getBlob(tx, prevBlobID); ok {
				old.RefCount--
				if old.RefCount <= 0 {
					if derr := deleteBlob(tx, old.ID); derr != nil {
						return derr
					}
					orphan = old
				} else if derr := putBlob(tx, old); derr != nil {
					return derr
				}
			}
		}
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	if orphan != nil {
		_ = c.tier.Delete(ctx, orphan)
	}
	return out, nil
}

// ReadPayload fetches an inode's bytes through the tier router.
func (c *Catalog) ReadPayload(ctx context.Context, path string) ([]byte, *Inode, error) {
	n, err := c.Resolve(path)
	if err != nil {
		return nil, nil, err
	}
	if n.Kind.IsDir() {
		return nil, nil, fserrors.New("read", path, fserrors.EISDIR)
	}
	data, _, rerr := c.readBlobBytes(ctx, n)
	if rerr != nil {
		return nil, nil, rerr
	}
	c.touchAtime(path)
	return data, n, nil
}

func (c *Catalog) readBlobBytes(ctx context.Context, n *Inode) ([]byte, bool, error) {
	if n.BlobID == "" {
		return nil, false, nil
	}
	blob, ok := c.getBlobSnapshot(n.BlobID)
	if !ok {
		return nil, false, nil
	}
	data, err := c.tier.Read(ctx, blob)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *Catalog) getBlobSnapshot(id string) (*Blob, bool) {
	var out *Blob
	_ = c.db.bolt.View(func(tx *bbolt.Tx) error {
		if b, ok := getBlob(tx, id); ok {
			out = b
		}
		return nil
	})
	return out, out != nil
}

func (c *Catalog) touchAtime(path string) {
	_ = c.db.bolt.Update(func(tx *bbolt.Tx) error {
		n, ok := getInodeByPath(tx, path)
		if !ok {
			return nil
		}
		n.Atime = time.Now()
		return putInode(tx, n)
	})
}

// Truncate rewrites the blob behind path to exactly length bytes,
// zero-padding growth.
func (c *Catalog) Truncate(ctx context.Context, path string, length int64) (*Inode, error) {
	n, err := c.Resolve(path)
	if err != nil {
		return nil, err
	}
	if n.Kind.IsDir() {
		return nil, fserrors.New("truncate", path, fserrors.EISDIR)
	}
	data, _, rerr := c.readBlobBytes(ctx, n)
	if rerr != nil {
		return nil, rerr
	}
	switch {
	case int64(len(data)) > length:
		data = data[:length]
	case int64(len(data)) < length:
		data = append(data, make([]byte, length-int64(len(data)))...)
	}
	return c.WritePayload(ctx, path, data, false)
}
