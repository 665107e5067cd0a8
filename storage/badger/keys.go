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

package badger

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Key prefixes for different data types
const (
	assetPrefix     = "asset:"
	assetDatePrefix = "assetd:"
	assetDimsKey    = "assetmeta:dims"
)

// makeAssetKey generates a key for an asset by ID.
// Format: prefix + 16 byte uuid
func makeAssetKey(id uuid.UUID) []byte {
	buf := make([]byte, len(assetPrefix)+len(id))
	offset := copy(buf, assetPrefix)
	copy(buf[offset:], id[:])
	return buf
}

// makeAssetDateKey generates a composite key for the creation date index.
// Format: prefix + timestamp + uuid
func makeAssetDateKey(createdAt time.Time, id uuid.UUID) []byte {
	buf := make([]byte, len(assetDatePrefix)+8+len(id))
	offset := copy(buf, assetDatePrefix)
	// BigEndian so lexicographic order matches chronological order
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id[:])
	return buf
}

// makePartialAssetDateKey generates a partial key for date range queries.
// Format: prefix + timestamp
func makePartialAssetDateKey(createdAt time.Time) []byte {
	buf := make([]byte, len(assetDatePrefix)+8)
	offset := copy(buf, assetDatePrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(createdAt.UnixMicro()))
	return buf
}

// makeLastAssetDateKey returns a key sorting after every date index entry.
// Used as the starting point for reverse iteration.
func makeLastAssetDateKey() []byte {
	buf := make([]byte, len(assetDatePrefix)+8+16)
	offset := copy(buf, assetDatePrefix)
	for i := offset; i < len(buf); i++ {
		buf[i] = 0xff
	}
	return buf
}
