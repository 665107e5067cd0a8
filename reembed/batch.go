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
	"fmt"
	"time"

	"github.com/poiesic/assetfind/ai"
	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/storage"
)

// BatchProcessor handles embedding generation for batches of assets.
type BatchProcessor struct {
	repo           storage.AssetRepository
	vectors        storage.VectorWriter
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	dimsReset      bool
}

// BatchStats describes one processed batch.
type BatchStats struct {
	// Embedded is the number of assets written with a new embedding.
	Embedded int
	// Attempts is the number of embedding calls made, retries included.
	Attempts int
	// Dimensions is the length of the new embeddings.
	Dimensions int
	// Cleared is set when stored embeddings of another dimensionality
	// were discarded before this batch was written.
	Cleared bool
}

// NewBatchProcessor creates a new batch processor.
// vectors may be nil when no external vector index is kept in sync.
// maxRetries: maximum number of attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.AssetRepository, vectors storage.VectorWriter, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		vectors:        vectors,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process generates embeddings for a batch of assets and updates them in the database.
// Vectors are normalized after embedding to ensure compatibility with cosine similarity.
// The first non-empty batch establishes the embedding dimensionality on every
// store implementing storage.DimensionResetter.
func (bp *BatchProcessor) Process(ctx context.Context, assets []*core.Asset) (BatchStats, error) {
	var stats BatchStats
	if len(assets) == 0 {
		return stats, nil
	}

	texts := make([]string, len(assets))
	for i, asset := range assets {
		texts[i] = asset.EmbeddingText()
	}

	// Generate embeddings with retry
	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		stats.Attempts++
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)

	if err != nil {
		return stats, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(assets) {
		return stats, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(assets), len(embeddings))
	}

	for i := range assets {
		assets[i].Embedding = core.NormalizeVector(embeddings[i])
	}
	stats.Dimensions = len(assets[0].Embedding)

	if !bp.dimsReset && stats.Dimensions > 0 {
		stats.Cleared, err = bp.resetDimensions(ctx, stats.Dimensions)
		if err != nil {
			return stats, fmt.Errorf("failed to reset dimensions: %w", err)
		}
		bp.dimsReset = true
	}

	_, err = bp.repo.UpdateAssets(ctx, assets...)
	if err != nil {
		return stats, fmt.Errorf("failed to update assets: %w", err)
	}

	if bp.vectors != nil {
		if err := bp.vectors.UpsertVectors(ctx, assets...); err != nil {
			return stats, fmt.Errorf("failed to sync vectors: %w", err)
		}
	}

	stats.Embedded = len(assets)
	return stats, nil
}

// resetDimensions reports whether any store discarded embeddings.
func (bp *BatchProcessor) resetDimensions(ctx context.Context, dims int) (bool, error) {
	var cleared bool
	for _, store := range []any{bp.repo, bp.vectors} {
		resetter, ok := store.(storage.DimensionResetter)
		if !ok {
			continue
		}
		c, err := resetter.ResetDimensions(ctx, dims)
		if err != nil {
			return cleared, err
		}
		cleared = cleared || c
	}
	return cleared, nil
}
