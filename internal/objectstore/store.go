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

// Package objectstore models the warm/cold object-store bindings the host
// runtime supplies per spec §6, generalizing the teacher's gcs.Bucket/
// gcs.Conn pair (gcs/bucket.go, gcs/conn.go) from "one GCS bucket" to "any
// keyed byte store capable of put/get/delete".
package objectstore

import (
	"context"
	"fmt"
	"sync"
)

// Store is a keyed byte store: the contract a warm or cold tier binding
// must satisfy. A real deployment substitutes a GCS/S3/Azure-backed
// implementation; fsx ships an in-process memory-backed one for embedding
// and tests.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = fmt.Errorf("objectstore: key not found")

// Memory is a Store backed by an in-memory map, standing in for the warm
// and cold bucket bindings when no external object store is wired.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[key] = cp
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
