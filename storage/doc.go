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

// Package storage provides the storage abstraction layer for assetfind.
//
// This package defines repository interfaces that decouple storage implementation
// from the search core. Three backends implement them:
//
//   - storage/badger: embedded store with brute-force vector scans (default)
//   - storage/postgres: gorm + pgvector, lexical and vector queries in SQL
//   - storage/qdrant: dedicated vector index, paired with either asset store
//
// # Architecture
//
//   - AssetRepository: asset CRUD, recency listing and lexical candidate retrieval
//   - VectorIndex: nearest-neighbour queries described by a VectorQuery value
//   - VectorWriter: keeps an external vector index in sync with asset embeddings
//
// The search core only reads. Writes come from ingestion and reembed.
//
// # Distances
//
// VectorIndex implementations report distances where smaller is more similar.
// For cosine metrics the distance is 1 - cosine similarity, so a MaxDistance
// of 0.40 keeps neighbours with similarity >= 0.60.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
