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
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/storage"
)

// AssetRepository implements storage.AssetRepository and storage.VectorIndex
// for BadgerDB.
type AssetRepository struct {
	backend *Backend
}

var (
	_ storage.AssetRepository   = (*AssetRepository)(nil)
	_ storage.VectorIndex       = (*AssetRepository)(nil)
	_ storage.DimensionResetter = (*AssetRepository)(nil)
)

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(backend *Backend) (*AssetRepository, error) {
	if backend == nil {
		return nil, errors.New("badger backend required")
	}
	return &AssetRepository{backend: backend}, nil
}

// Close is a no-op; the backend is closed by its owner.
func (r *AssetRepository) Close() error {
	return nil
}

// FindNearest delegates to the backend.
func (r *AssetRepository) FindNearest(ctx context.Context, query storage.VectorQuery) ([]storage.Neighbor, error) {
	return r.backend.FindNearest(ctx, query)
}

// AddAssets stores new assets.
func (r *AssetRepository) AddAssets(ctx context.Context, assets ...*core.Asset) ([]*core.Asset, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		dims, err := readDims(tx)
		if err != nil {
			return err
		}

		for _, asset := range assets {
			if err := core.ValidateAsset(asset); err != nil {
				return err
			}
			if err := core.ValidateEmbedding(asset.Embedding, dims); err != nil {
				return err
			}

			if asset.ID == uuid.Nil {
				asset.ID = uuid.New()
			}
			key := makeAssetKey(asset.ID)
			existing, err := readAsset(tx, key)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("%w: asset %s", storage.ErrDuplicateKey, asset.ID)
			}

			if asset.CreatedAt.IsZero() {
				asset.CreatedAt = time.Now()
			}
			asset.CreatedAt = asset.CreatedAt.UTC().Truncate(time.Microsecond)
			asset.UpdatedAt = asset.CreatedAt

			if err := tx.Set(key, storage.MarshalAsset(asset)); err != nil {
				return err
			}
			if err := tx.Set(makeAssetDateKey(asset.CreatedAt, asset.ID), asset.ID[:]); err != nil {
				return err
			}

			if dims == 0 && asset.HasEmbedding() {
				dims = len(asset.Embedding)
				if err := tx.Set([]byte(assetDimsKey), storage.MarshalInt(dims)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// UpdateAssets replaces existing assets.
func (r *AssetRepository) UpdateAssets(ctx context.Context, assets ...*core.Asset) ([]*core.Asset, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		dims, err := readDims(tx)
		if err != nil {
			return err
		}

		for _, asset := range assets {
			if err := core.ValidateAsset(asset); err != nil {
				return err
			}
			if err := core.ValidateEmbedding(asset.Embedding, dims); err != nil {
				return err
			}

			key := makeAssetKey(asset.ID)
			old, err := readAsset(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: asset %s", storage.ErrNotFound, asset.ID)
			}

			if asset.CreatedAt.IsZero() {
				asset.CreatedAt = old.CreatedAt
			}
			asset.CreatedAt = asset.CreatedAt.UTC().Truncate(time.Microsecond)
			asset.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

			if err := tx.Set(key, storage.MarshalAsset(asset)); err != nil {
				return err
			}

			// Update date index if creation time changed
			if !old.CreatedAt.Equal(asset.CreatedAt) {
				if err := tx.Delete(makeAssetDateKey(old.CreatedAt, old.ID)); err != nil {
					return err
				}
				if err := tx.Set(makeAssetDateKey(asset.CreatedAt, asset.ID), asset.ID[:]); err != nil {
					return err
				}
			}

			if dims == 0 && asset.HasEmbedding() {
				dims = len(asset.Embedding)
				if err := tx.Set([]byte(assetDimsKey), storage.MarshalInt(dims)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// DeleteAssets removes assets by their IDs.
func (r *AssetRepository) DeleteAssets(ctx context.Context, ids ...uuid.UUID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeAssetKey(id)
			asset, err := readAsset(tx, key)
			if err != nil {
				return err
			}
			if asset == nil {
				return fmt.Errorf("%w: asset %s", storage.ErrNotFound, id)
			}
			if err := tx.Delete(makeAssetDateKey(asset.CreatedAt, asset.ID)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetAsset retrieves a single asset by ID.
func (r *AssetRepository) GetAsset(ctx context.Context, id uuid.UUID) (*core.Asset, error) {
	var result *core.Asset
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readAsset(tx, makeAssetKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: asset %s", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// GetAssets retrieves multiple assets in the order of ids.
func (r *AssetRepository) GetAssets(ctx context.Context, ids ...uuid.UUID) ([]*core.Asset, error) {
	result := make([]*core.Asset, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			asset, err := readAsset(tx, makeAssetKey(id))
			if err != nil {
				return err
			}
			if asset != nil {
				result = append(result, asset)
			}
		}
		return nil
	}, false)
	return result, err
}

// RecentAssets walks the date index backwards and returns the newest
// assets matching filters.
func (r *AssetRepository) RecentAssets(ctx context.Context, filters core.Filters, limit int) ([]*core.Asset, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	results := make([]*core.Asset, 0, limit)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(assetDatePrefix)
		for iter.Seek(makeLastAssetDateKey()); iter.ValidForPrefix(prefix) && len(results) < limit; iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			asset, err := readIndexedAsset(tx, iter.Item())
			if err != nil {
				return err
			}
			if asset != nil && filters.Match(asset) {
				results = append(results, asset)
			}
		}
		return nil
	}, false)
	return results, err
}

// FindCandidates scans all assets for case-insensitive token matches in the
// filename or semantic text.
func (r *AssetRepository) FindCandidates(ctx context.Context, query storage.CandidateQuery) ([]*core.Asset, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var results []*core.Asset
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(assetPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid() && len(results) < query.Limit; iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var asset *core.Asset
			err := iter.Item().Value(func(val []byte) error {
				var err error
				asset, err = storage.UnmarshalAsset(val)
				return err
			})
			if err != nil {
				return err
			}
			if !query.Filters.Match(asset) {
				continue
			}
			if query.MatchText(asset.OriginalName, asset.AIData.SearchText()) {
				results = append(results, asset)
			}
		}
		return nil
	}, false)
	return results, err
}

// GetAssetsByDateRange retrieves assets created within [start, end).
func (r *AssetRepository) GetAssetsByDateRange(ctx context.Context, start, end time.Time) ([]*core.Asset, error) {
	if start.Equal(end) {
		end = start.Add(1 * time.Microsecond)
	}

	var results []*core.Asset
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(assetDatePrefix)
		endKey := makePartialAssetDateKey(end)
		for iter.Seek(makePartialAssetDateKey(start)); iter.ValidForPrefix(prefix); iter.Next() {
			if bytes.Compare(iter.Item().Key(), endKey) >= 0 {
				break
			}
			asset, err := readIndexedAsset(tx, iter.Item())
			if err != nil {
				return err
			}
			if asset != nil {
				results = append(results, asset)
			}
		}
		return nil
	}, false)
	return results, err
}

// Dimensions returns the embedding dimensionality established by the
// first embedded asset, or 0 if none has been stored.
func (r *AssetRepository) Dimensions(ctx context.Context) (int, error) {
	var dims int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		dims, err = readDims(tx)
		return err
	}, false)
	return dims, err
}

// ResetDimensions establishes dims as the embedding dimensionality. If
// another dimensionality was established, embeddings are stripped from
// every asset first.
func (r *AssetRepository) ResetDimensions(ctx context.Context, dims int) (bool, error) {
	if dims <= 0 {
		return false, fmt.Errorf("%w: %d", storage.ErrInvalidDimensions, dims)
	}
	current, err := r.Dimensions(ctx)
	if err != nil {
		return false, err
	}
	if current == dims {
		return false, nil
	}

	var stripped []*core.Asset
	if current > 0 {
		err = r.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(assetPrefix)
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Rewind(); iter.Valid(); iter.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				var asset *core.Asset
				err := iter.Item().Value(func(val []byte) error {
					var err error
					asset, err = storage.UnmarshalAsset(val)
					return err
				})
				if err != nil {
					return err
				}
				if asset.HasEmbedding() {
					asset.Embedding = nil
					stripped = append(stripped, asset)
				}
			}
			return nil
		}, false)
		if err != nil {
			return false, err
		}
	}

	if r.backend.IsClosed() {
		return false, storage.ErrStorageClosed
	}
	wb := r.backend.db.NewWriteBatch()
	defer wb.Cancel()
	for _, asset := range stripped {
		if err := wb.Set(makeAssetKey(asset.ID), storage.MarshalAsset(asset)); err != nil {
			return false, err
		}
	}
	if err := wb.Set([]byte(assetDimsKey), storage.MarshalInt(dims)); err != nil {
		return false, err
	}
	if err := wb.Flush(); err != nil {
		return false, err
	}
	return current > 0, nil
}

// Helper methods

// readAsset reads an asset from the transaction.
// Returns nil without error if the key does not exist.
func readAsset(tx *badger.Txn, key []byte) (*core.Asset, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var asset *core.Asset
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		asset, unmarshalErr = storage.UnmarshalAsset(val)
		return unmarshalErr
	})
	return asset, err
}

// readIndexedAsset resolves a date index entry to its asset.
func readIndexedAsset(tx *badger.Txn, item *badger.Item) (*core.Asset, error) {
	var id uuid.UUID
	err := item.Value(func(val []byte) error {
		var err error
		id, err = uuid.FromBytes(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return readAsset(tx, makeAssetKey(id))
}

// readDims reads the established embedding dimensionality.
func readDims(tx *badger.Txn) (int, error) {
	item, err := tx.Get([]byte(assetDimsKey))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var dims int
	err = item.Value(func(val []byte) error {
		var err error
		dims, err = storage.UnmarshalInt(val)
		return err
	})
	return dims, err
}
