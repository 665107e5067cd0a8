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

package reembed

import (
	"context"
	"time"

	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/storage"
)

const (
	// DefaultBatchSize is the default number of assets to fetch in each batch
	DefaultBatchSize = 100
)

var (
	rangeStart = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2100, 12, 31, 23, 59, 59, 0, time.UTC)
)

// AssetIterator iterates over all assets in batches, oldest first.
type AssetIterator struct {
	repo      storage.AssetRepository
	batchSize int
}

// NewAssetIterator creates a new asset iterator.
// batchSize: number of assets to hand to fn at a time (<= 0 uses DefaultBatchSize)
func NewAssetIterator(repo storage.AssetRepository, batchSize int) *AssetIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &AssetIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// Count returns the number of assets the iterator will visit.
func (it *AssetIterator) Count(ctx context.Context) (int, error) {
	assets, err := it.repo.GetAssetsByDateRange(ctx, rangeStart, rangeEnd)
	if err != nil {
		return 0, err
	}
	return len(assets), nil
}

// ForEach iterates over all assets, calling fn for each batch.
// Iteration stops on first error from fn or when all assets are processed.
// Context cancellation is checked between batches.
func (it *AssetIterator) ForEach(ctx context.Context, fn func([]*core.Asset) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	assets, err := it.repo.GetAssetsByDateRange(ctx, rangeStart, rangeEnd)
	if err != nil {
		return err
	}

	for i := 0; i < len(assets); i += it.batchSize {
		end := min(i+it.batchSize, len(assets))

		if err := fn(assets[i:end]); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
