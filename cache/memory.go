// Copyright 2025 Poiesic Systems
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

package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Memory is an in-process Cache backed by ristretto.
type Memory struct {
	cache  *ristretto.Cache[string, []byte]
	closed atomic.Bool
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an in-memory cache bounded to roughly maxBytes of values.
func NewMemory(maxBytes int64) (*Memory, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("cache: maxBytes must be positive, got %d", maxBytes)
	}
	// 10 counters per expected 1KiB item
	counters := max(maxBytes/1024*10, 1000)
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
		Cost: func(v []byte) int64 {
			return int64(len(v))
		},
	})
	if err != nil {
		return nil, err
	}
	return &Memory{cache: c}, nil
}

// Get returns a copy-free view of the cached value.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.closed.Load() {
		return nil, false, ErrClosed
	}
	v, ok := m.cache.Get(key)
	return v, ok, nil
}

// Set stores value. Writes are applied asynchronously and may be dropped
// under contention, which callers treat as a miss.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.cache.SetWithTTL(key, value, 0, max(ttl, 0))
	return nil
}

// Evict removes key.
func (m *Memory) Evict(ctx context.Context, key string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	m.cache.Del(key)
	return nil
}

// Wait blocks until buffered writes have been applied.
func (m *Memory) Wait() {
	m.cache.Wait()
}

// Close stops the cache's background goroutines.
func (m *Memory) Close() error {
	if m.closed.CompareAndSwap(false, true) {
		m.cache.Close()
	}
	return nil
}
