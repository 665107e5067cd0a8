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

package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/assetfind/core"
	"gorm.io/datatypes"
)

// assetRow is the gorm model for the assets table.
type assetRow struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OriginalName string           `gorm:"column:original_name;not null"`
	MimeType     string           `gorm:"column:mime_type;not null;index"`
	AIData       datatypes.JSON   `gorm:"column:ai_data;type:jsonb;not null"`
	Embedding    *pgvector.Vector `gorm:"column:embedding;type:vector"`
	CreatedAt    time.Time        `gorm:"column:created_at;not null;index;autoCreateTime:false"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

func (assetRow) TableName() string {
	return "assets"
}

func toRow(asset *core.Asset) *assetRow {
	row := &assetRow{
		ID:           asset.ID,
		OriginalName: asset.OriginalName,
		MimeType:     asset.MimeType,
		AIData:       datatypes.JSON(asset.AIData.JSON()),
		CreatedAt:    asset.CreatedAt,
		UpdatedAt:    asset.UpdatedAt,
	}
	if asset.HasEmbedding() {
		vec := pgvector.NewVector(asset.Embedding)
		row.Embedding = &vec
	}
	return row
}

func (r *assetRow) toAsset() *core.Asset {
	asset := &core.Asset{
		ID:           r.ID,
		OriginalName: r.OriginalName,
		MimeType:     r.MimeType,
		AIData:       core.ParseAIData(r.AIData),
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
	if r.Embedding != nil {
		asset.Embedding = r.Embedding.Slice()
	}
	return asset
}

func toAssets(rows []assetRow) []*core.Asset {
	assets := make([]*core.Asset, len(rows))
	for i := range rows {
		assets[i] = rows[i].toAsset()
	}
	return assets
}
