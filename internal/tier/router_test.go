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

package tier

import (
	"context"
	"testing"

	"github.com/dot-do/fsx/internal/catalog"
	"github.com/dot-do/fsx/internal/fserrors"
	"github.com/dot-do/fsx/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceTierBoundaries(t *testing.T) {
	r := New(Config{HotMaxSize: 10, WarmEnabled: true, ColdEnabled: true}, objectstore.NewMemory(), objectstore.NewMemory())

	tierKind, err := r.PlaceTier(10)
	require.NoError(t, err)
	assert.Equal(t, catalog.TierHot, tierKind)

	tierKind, err = r.PlaceTier(11)
	require.NoError(t, err)
	assert.Equal(t, catalog.TierWarm, tierKind)
}

func TestPlaceTierNoWarmFallsToCold(t *testing.T) {
	r := New(Config{HotMaxSize: 1, ColdEnabled: true}, nil, objectstore.NewMemory())
	tierKind, err := r.PlaceTier(100)
	require.NoError(t, err)
	assert.Equal(t, catalog.TierCold, tierKind)
}

func TestPlaceTierNoneAvailable(t *testing.T) {
	r := New(Config{HotMaxSize: 1}, nil, nil)
	_, err := r.PlaceTier(100)
	require.Error(t, err)
}

func TestMaxFileSizeRefused(t *testing.T) {
	r := New(Config{HotMaxSize: 10, MaxFileSize: 20}, objectstore.NewMemory(), objectstore.NewMemory())
	_, err := r.PlaceTier(21)
	require.Error(t, err)
	pe, ok := err.(*fserrors.PathError)
	require.True(t, ok)
	assert.Equal(t, fserrors.EFBIG, pe.Code)
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := New(Config{HotMaxSize: 4, WarmEnabled: true}, objectstore.NewMemory(), objectstore.NewMemory())

	blob, err := r.Write(ctx, []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, catalog.TierWarm, blob.Tier)

	data, err := r.Read(ctx, blob)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}
