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
	"log/slog"

	"github.com/google/uuid"
	"github.com/poiesic/assetfind/ai"
	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/storage"
)

type taggingProcessor struct {
	assets storage.AssetRepository
	tagger ai.Tagger
	logger *slog.Logger
}

var _ processor = (*taggingProcessor)(nil)

func newTaggingProcessor(assets storage.AssetRepository, tagger ai.Tagger, logger *slog.Logger) *taggingProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &taggingProcessor{
		assets: assets,
		tagger: tagger,
		logger: logger.With("processor", "tagging"),
	}
}

// needsTags reports whether the asset has not been annotated yet.
// A transcript alone does not count as an annotation.
func needsTags(asset *core.Asset) bool {
	return len(asset.AIData.Tags) == 0 && asset.AIData.Description == ""
}

// process annotates each untagged asset. A failed annotation is logged and
// the asset is left as is so that embedding can still proceed.
func (tp *taggingProcessor) process(ctx context.Context, ids ...uuid.UUID) error {
	assets, err := tp.assets.GetAssets(ctx, ids...)
	if err != nil {
		tp.logger.Error("error retrieving assets", "err", err)
		return err
	}

	updated := make([]*core.Asset, 0, len(assets))
	for _, asset := range assets {
		if !needsTags(asset) {
			continue
		}
		ann, err := tp.tagger.Annotate(ctx, asset.OriginalName, asset.AIData.Transcript)
		if err != nil {
			tp.logger.Warn("error annotating asset", "id", asset.ID, "name", asset.OriginalName, "err", err)
			continue
		}
		if ann.IsEmpty() {
			continue
		}
		asset.AIData.Tags = ann.Tags
		asset.AIData.Description = ann.Description
		if len(asset.AIData.Colors) == 0 {
			asset.AIData.Colors = ann.Colors
		}
		updated = append(updated, asset)
	}

	if len(updated) == 0 {
		return nil
	}
	tp.logger.Info("annotated assets", "assets", len(updated))
	_, err = tp.assets.UpdateAssets(ctx, updated...)
	return err
}
