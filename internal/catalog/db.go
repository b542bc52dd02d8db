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
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

// Bucket names. "children" is keyed by parent id + NUL + name so a
// bbolt range scan over the prefix implements the parent_id index of §6.
var (
	bucketInodes     = []byte("inodes")
	bucketPathIndex  = []byte("path_index")
	bucketChildren   = []byte("children")
	bucketBlobs      = []byte("blobs")
	bucketMeta       = []byte("meta")
	keyNextID        = []byte("next_id")
	keyRootID        = []byte("root_id")
)

// DB wraps the bbolt handle shared by the catalog and the shell safety
// store, which keeps overrides and execution history in buckets of its
// own. Sparse presets and safety policies are not persisted here.
type DB struct {
	bolt *bbolt.DB
}

// Open creates (or reopens) a catalog at path, initializing the root
// directory inode on first use.
func Open(path string) (*DB, error) {
	bolt, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	db := &DB{bolt: bolt}
	if err := db.init(); err != nil {
		bolt.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() error { return db.bolt.Close() }

// Raw exposes the underlying bbolt handle so sibling stores (the shell
// safety store's overrides and history) can keep their own buckets in
// the same transactional file instead of opening a second one.
func (db *DB) Raw() *bbolt.DB { return db.bolt }

func (db *DB) init() error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketInodes, bucketPathIndex, bucketChildren, bucketBlobs, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)
		if meta.Get(keyRootID) != nil {
			return nil
		}

		now := time.Now()
		root := &Inode{
			ID:        1,
			Path:      "/",
			Name:      "",
			HasParent: false,
			Kind:      KindDirectory,
			Mode:      DefaultDirMode,
			Nlink:     1,
			Atime:     now,
			Mtime:     now,
			Ctime:     now,
			Birthtime: now,
		}
		if err := putInode(tx, root); err != nil {
			return err
		}
		if err := meta.Put(keyRootID, idKey(1)); err != nil {
			return err
		}
		return meta.Put(keyNextID, idKey(2))
	})
}

func idKey(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

func idFromKey(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

func childKey(parentID uint64, name string) []byte {
	buf := make([]byte, 8, 8+1+len(name))
	binary.BigEndian.PutUint64(buf, parentID)
	buf = append(buf, 0)
	buf = append(buf, name...)
	return buf
}

func childPrefix(parentID uint64) []byte {
	buf := make([]byte, 9)
	binary.BigEndian.PutUint64(buf, parentID)
	buf[8] = 0
	return buf
}

func nextID(tx *bbolt.Tx) (uint64, error) {
	meta := tx.Bucket(bucketMeta)
	raw := meta.Get(keyNextID)
	id := idFromKey(raw)
	if err := meta.Put(keyNextID, idKey(id+1)); err != nil {
		return 0, err
	}
	return id, nil
}

func putInode(tx *bbolt.Tx, n *Inode) error {
	data, err := msgpack.Marshal(n)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucketInodes).Put(idKey(n.ID), data); err != nil {
		return err
	}
	return tx.Bucket(bucketPathIndex).Put([]byte(n.Path), idKey(n.ID))
}

func getInodeByID(tx *bbolt.Tx, id uint64) (*Inode, bool) {
	raw := tx.Bucket(bucketInodes).Get(idKey(id))
	if raw == nil {
		return nil, false
	}
	var n Inode
	if err := msgpack.Unmarshal(raw, &n); err != nil {
		return nil, false
	}
	return &n, true
}

func getInodeByPath(tx *bbolt.Tx, path string) (*Inode, bool) {
	raw := tx.Bucket(bucketPathIndex).Get([]byte(path))
	if raw == nil {
		return nil, false
	}
	return getInodeByID(tx, idFromKey(raw))
}

func deleteInode(tx *bbolt.Tx, n *Inode) error {
	if err := tx.Bucket(bucketInodes).Delete(idKey(n.ID)); err != nil {
		return err
	}
	return tx.Bucket(bucketPathIndex).Delete([]byte(n.Path))
}

func putBlob(tx *bbolt.Tx, b *Blob) error {
	data, err := msgpack.Marshal(b)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketBlobs).Put([]byte(b.ID), data)
}

func getBlob(tx *bbolt.Tx, id string) (*Blob, bool) {
	raw := tx.Bucket(bucketBlobs).Get([]byte(id))
	if raw == nil {
		return nil, false
	}
	var b Blob
	if err := msgpack.Unmarshal(raw, &b); err != nil {
		return nil, false
	}
	return &b, true
}

func deleteBlob(tx *bbolt.Tx, id string) error {
	return tx.Bucket(bucketBlobs).Delete([]byte(id))
}
