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

// Package tier implements the tier placement policy described in spec
// §4.C: hot/warm/cold blob placement on write, tier-aware reads, and
// deletes. Blob reference counts are kept by the catalog, not here.
package tier

import (
	"context"
	"fmt"

	"github.com/dot-do/fsx/internal/catalog"
	"github.com/dot-do/fsx/internal/fserrors"
	"github.com/dot-do/fsx/internal/objectstore"
	"github.com/google/uuid"
)

// Config bounds placement decisions.
type Config struct {
	HotMaxSize  int64 // default 1 MiB
	WarmEnabled bool
	ColdEnabled bool
	MaxFileSize int64 // 0 means unbounded
}

const DefaultHotMaxSize = 1 << 20

// Router decides placement, and moves bytes to/from the tier recorded on
// an inode. It owns the blob-id generator (catalog-unique, opaque) and the
// warm/cold object-store bindings.
type Router struct {
	cfg  Config
	warm objectstore.Store
	cold objectstore.Store
}

func New(cfg Config, warm, cold objectstore.Store) *Router {
	if cfg.HotMaxSize <= 0 {
		cfg.HotMaxSize = DefaultHotMaxSize
	}
	return &Router{cfg: cfg, warm: warm, cold: cold}
}

// NewBlobID returns a catalog-unique, opaque blob identifier.
func (r *Router) NewBlobID() string {
	return uuid.NewString()
}

// PlaceTier decides, for N bytes being written, which tier the blob lands
// in, per §4.C: hot if it fits, else warm if enabled, else cold if
// enabled, else a resource error.
func (r *Router) PlaceTier(n int64) (catalog.Tier, error) {
	if r.cfg.MaxFileSize > 0 && n > r.cfg.MaxFileSize {
		return catalog.TierNone, fserrors.New("write", "", fserrors.EFBIG)
	}
	switch {
	case n <= r.cfg.HotMaxSize:
		return catalog.TierHot, nil
	case r.warm != nil && r.cfg.WarmEnabled:
		return catalog.TierWarm, nil
	case r.cold != nil && r.cfg.ColdEnabled:
		return catalog.TierCold, nil
	default:
		return catalog.TierNone, fmt.Errorf("tier: no tier available for %d byte write", n)
	}
}

// Write allocates a blob id, places the bytes in the decided tier, and
// returns the fully populated catalog.Blob. It never mutates the inode
// row; the catalog does that atomically once the write has succeeded.
func (r *Router) Write(ctx context.Context, data []byte) (*catalog.Blob, error) {
	tierKind, err := r.PlaceTier(int64(len(data)))
	if err != nil {
		return nil, err
	}

	id := r.NewBlobID()
	blob := &catalog.Blob{ID: id, Tier: tierKind, Size: int64(len(data))}

	switch tierKind {
	case catalog.TierHot:
		blob.Data = append([]byte(nil), data...)
	case catalog.TierWarm:
		if err := r.warm.Put(ctx, id, data); err != nil {
			return nil, fmt.Errorf("tier: warm put: %w", err)
		}
	case catalog.TierCold:
		if err := r.cold.Put(ctx, id, data); err != nil {
			return nil, fmt.Errorf("tier: cold put: %w", err)
		}
	}
	return blob, nil
}

// Read fetches the bytes for a blob from the tier recorded on it.
func (r *Router) Read(ctx context.Context, blob *catalog.Blob) ([]byte, error) {
	switch blob.Tier {
	case catalog.TierHot:
		return append([]byte(nil), blob.Data...), nil
	case catalog.TierWarm:
		data, err := r.warm.Get(ctx, blob.ID)
		if err != nil {
			return nil, fmt.Errorf("tier: warm get: %w", err)
		}
		return data, nil
	case catalog.TierCold:
		data, err := r.cold.Get(ctx, blob.ID)
		if err != nil {
			return nil, fmt.Errorf("tier: cold get: %w", err)
		}
		return data, nil
	default:
		return nil, nil
	}
}

// Delete removes a blob's bytes from its tier. Called only once a blob's
// ref_count has reached zero.
func (r *Router) Delete(ctx context.Context, blob *catalog.Blob) error {
	switch blob.Tier {
	case catalog.TierWarm:
		return r.warm.Delete(ctx, blob.ID)
	case catalog.TierCold:
		return r.cold.Delete(ctx, blob.ID)
	default:
		return nil
	}
}
