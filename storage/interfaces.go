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

package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/assetfind/core"
)

// AssetRepository provides operations for managing assets.
// Implementations must be thread-safe and support concurrent access.
type AssetRepository interface {
	// AddAssets stores new assets.
	// Assets with a zero ID receive a generated one.
	// CreatedAt is set if not already set; UpdatedAt is set to CreatedAt.
	// Returns ErrDuplicateKey if an ID already exists.
	AddAssets(ctx context.Context, assets ...*core.Asset) ([]*core.Asset, error)

	// UpdateAssets replaces existing assets.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any asset doesn't exist.
	UpdateAssets(ctx context.Context, assets ...*core.Asset) ([]*core.Asset, error)

	// DeleteAssets removes assets by their IDs.
	// Returns ErrNotFound if any asset doesn't exist.
	DeleteAssets(ctx context.Context, ids ...uuid.UUID) error

	// GetAsset retrieves a single asset by ID.
	// Returns ErrNotFound if the asset doesn't exist.
	GetAsset(ctx context.Context, id uuid.UUID) (*core.Asset, error)

	// GetAssets retrieves multiple assets in the order of ids.
	// Missing assets are skipped without error.
	GetAssets(ctx context.Context, ids ...uuid.UUID) ([]*core.Asset, error)

	// RecentAssets returns up to limit assets matching filters,
	// newest CreatedAt first.
	RecentAssets(ctx context.Context, filters core.Filters, limit int) ([]*core.Asset, error)

	// FindCandidates returns up to query.Limit assets whose OriginalName or
	// AIData text contains at least one token (case-insensitive), intersected
	// with query.Filters. Result order is unspecified.
	FindCandidates(ctx context.Context, query CandidateQuery) ([]*core.Asset, error)

	// GetAssetsByDateRange returns assets with start <= CreatedAt < end,
	// ordered by CreatedAt.
	GetAssetsByDateRange(ctx context.Context, start, end time.Time) ([]*core.Asset, error)

	// Close releases resources held by the repository.
	Close() error
}

// DimensionResetter is implemented by stores that pin the embedding
// dimensionality to the first embedding written.
type DimensionResetter interface {
	// ResetDimensions makes dims the accepted dimensionality. When a
	// different dimensionality was established, every stored embedding is
	// discarded and true is returned.
	ResetDimensions(ctx context.Context, dims int) (bool, error)
}

// VectorIndex answers nearest-neighbour queries over asset embeddings.
type VectorIndex interface {
	// FindNearest returns neighbours within query.MaxDistance ordered by
	// ascending distance. Assets without an embedding never match.
	FindNearest(ctx context.Context, query VectorQuery) ([]Neighbor, error)
}

// VectorWriter keeps a vector index in sync with asset embeddings.
type VectorWriter interface {
	// UpsertVectors indexes the embeddings of the given assets.
	// Assets without an embedding are skipped.
	UpsertVectors(ctx context.Context, assets ...*core.Asset) error

	// DeleteVectors removes the given assets from the index.
	DeleteVectors(ctx context.Context, ids ...uuid.UUID) error
}

// Neighbor is a single nearest-neighbour match.
type Neighbor struct {
	ID       uuid.UUID
	Distance float32
}
