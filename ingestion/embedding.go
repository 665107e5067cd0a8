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

package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/poiesic/assetfind/ai"
	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/storage"
)

type embeddingProcessor struct {
	assets   storage.AssetRepository
	vectors  storage.VectorWriter
	embedder ai.Embedder
	logger   *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

func newEmbeddingProcessor(assets storage.AssetRepository, vectors storage.VectorWriter, embedder ai.Embedder, logger *slog.Logger) *embeddingProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		assets:   assets,
		vectors:  vectors,
		embedder: embedder,
		logger:   logger.With("processor", "embeddings"),
	}
}

func (ep *embeddingProcessor) process(ctx context.Context, ids ...uuid.UUID) error {
	ep.logger.Info("processing assets for embeddings", "assets", len(ids))

	assets, err := ep.assets.GetAssets(ctx, ids...)
	if err != nil {
		ep.logger.Error("error retrieving assets", "err", err)
		return err
	}
	if len(assets) == 0 {
		return nil
	}

	texts := make([]string, len(assets))
	for i, asset := range assets {
		texts[i] = asset.EmbeddingText()
	}

	ep.logger.Debug("generating embeddings for assets", "assets", len(texts))
	embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		ep.logger.Error("error generating embeddings", "err", err)
		return err
	}

	if len(embeddings) != len(assets) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(assets), len(embeddings))
	}

	for i := range embeddings {
		assets[i].Embedding = core.NormalizeVector(embeddings[i])
	}

	updated, err := ep.assets.UpdateAssets(ctx, assets...)
	if err != nil {
		return err
	}

	if ep.vectors != nil {
		if err := ep.vectors.UpsertVectors(ctx, updated...); err != nil {
			return fmt.Errorf("syncing vectors: %w", err)
		}
	}
	return nil
}
