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
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// Cache is a byte-valued cache with per-entry expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value stored under key. The boolean is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Evict removes key. Evicting a missing key is not an error.
	Evict(ctx context.Context, key string) error

	// Close releases the cache's resources.
	Close() error
}

// Key derives a fixed-length cache key from parts.
// Parts are length-prefixed so ("ab","c") and ("a","bc") differ.
func Key(parts ...string) string {
	h, _ := blake2b.New(32, nil)
	var n [8]byte
	for _, p := range parts {
		l := uint64(len(p))
		for i := range n {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
