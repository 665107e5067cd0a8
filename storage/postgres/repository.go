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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/storage"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Repository implements storage.AssetRepository, storage.VectorIndex and
// storage.VectorWriter on PostgreSQL.
type Repository struct {
	db     *gorm.DB
	metric Metric
	logger *slog.Logger
}

var (
	_ storage.AssetRepository   = (*Repository)(nil)
	_ storage.VectorIndex       = (*Repository)(nil)
	_ storage.VectorWriter      = (*Repository)(nil)
	_ storage.DimensionResetter = (*Repository)(nil)
)

// Option configures a Repository.
type Option func(*Repository) error

// WithMetric sets the distance metric. Default is Cosine.
func WithMetric(metric Metric) Option {
	return func(r *Repository) error {
		if metric == nil {
			return errors.New("metric required")
		}
		r.metric = metric
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// Open connects to the database identified by dsn.
// Statements are logged through the repository logger at warn level.
func Open(dsn string, opts ...Option) (*Repository, error) {
	r, err := newRepository(opts...)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger: gormLogger.NewSlogLogger(r.logger, gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	r.db = db
	return r, nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, opts ...Option) (*Repository, error) {
	if db == nil {
		return nil, errors.New("gorm db required")
	}
	r, err := newRepository(opts...)
	if err != nil {
		return nil, err
	}
	r.db = db
	return r, nil
}

func newRepository(opts ...Option) (*Repository, error) {
	r := &Repository{
		metric: Cosine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "postgres-storage", "metric", r.metric.Name())
	return r, nil
}

// Migrate enables the vector extension and creates or updates the assets table.
func (r *Repository) Migrate(ctx context.Context) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`).Error; err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}
	if err := db.AutoMigrate(&assetRow{}); err != nil {
		return fmt.Errorf("failed to migrate assets table: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Dimensions returns the dimensionality of stored embeddings, or 0 if none
// has been stored.
func (r *Repository) Dimensions(ctx context.Context) (int, error) {
	return dimensions(r.db.WithContext(ctx))
}

func dimensions(tx *gorm.DB) (int, error) {
	var dims []int
	err := tx.Model(&assetRow{}).
		Where("embedding IS NOT NULL").
		Limit(1).
		Pluck("vector_dims(embedding)", &dims).Error
	if err != nil {
		return 0, err
	}
	if len(dims) == 0 {
		return 0, nil
	}
	return dims[0], nil
}

// ResetDimensions clears every stored embedding when the stored
// dimensionality differs from dims. The next embedding written establishes
// dims.
func (r *Repository) ResetDimensions(ctx context.Context, dims int) (bool, error) {
	if dims <= 0 {
		return false, fmt.Errorf("%w: %d", storage.ErrInvalidDimensions, dims)
	}
	var cleared bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := dimensions(tx)
		if err != nil {
			return err
		}
		if current == 0 || current == dims {
			return nil
		}
		result := clearEmbeddingsQuery(tx)
		if result.Error != nil {
			return result.Error
		}
		r.logger.Info("cleared embeddings for new dimensionality", "from", current, "to", dims, "rows", result.RowsAffected)
		cleared = true
		return nil
	})
	return cleared, err
}

func clearEmbeddingsQuery(tx *gorm.DB) *gorm.DB {
	return tx.Model(&assetRow{}).
		Where("embedding IS NOT NULL").
		UpdateColumn("embedding", gorm.Expr("NULL"))
}

// AddAssets stores new assets.
func (r *Repository) AddAssets(ctx context.Context, assets ...*core.Asset) ([]*core.Asset, error) {
	if len(assets) == 0 {
		return assets, nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dims, err := dimensions(tx)
		if err != nil {
			return err
		}

		rows := make([]*assetRow, len(assets))
		for i, asset := range assets {
			if err := core.ValidateAsset(asset); err != nil {
				return err
			}
			if err := core.ValidateEmbedding(asset.Embedding, dims); err != nil {
				return err
			}
			if dims == 0 && asset.HasEmbedding() {
				dims = len(asset.Embedding)
			}

			if asset.ID == uuid.Nil {
				asset.ID = uuid.New()
			}
			if asset.CreatedAt.IsZero() {
				asset.CreatedAt = time.Now()
			}
			asset.CreatedAt = asset.CreatedAt.UTC().Truncate(time.Microsecond)
			asset.UpdatedAt = asset.CreatedAt
			rows[i] = toRow(asset)
		}

		if err := tx.Create(rows).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %v", storage.ErrDuplicateKey, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// UpdateAssets replaces existing assets.
func (r *Repository) UpdateAssets(ctx context.Context, assets ...*core.Asset) ([]*core.Asset, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dims, err := dimensions(tx)
		if err != nil {
			return err
		}

		for _, asset := range assets {
			if err := core.ValidateAsset(asset); err != nil {
				return err
			}

			var old assetRow
			if err := tx.Select("id", "created_at").Where("id = ?", asset.ID).Take(&old).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: asset %s", storage.ErrNotFound, asset.ID)
				}
				return err
			}

			// The only stored embedding may be the one being replaced.
			if dims > 0 && asset.HasEmbedding() && len(asset.Embedding) != dims {
				var others int64
				if err := tx.Model(&assetRow{}).Where("embedding IS NOT NULL AND id <> ?", asset.ID).Count(&others).Error; err != nil {
					return err
				}
				if others > 0 {
					return core.ValidateEmbedding(asset.Embedding, dims)
				}
			}
			if asset.HasEmbedding() {
				dims = len(asset.Embedding)
			}

			if asset.CreatedAt.IsZero() {
				asset.CreatedAt = old.CreatedAt
			}
			asset.CreatedAt = asset.CreatedAt.UTC().Truncate(time.Microsecond)
			asset.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

			if err := tx.Save(toRow(asset)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// DeleteAssets removes assets by their IDs.
func (r *Repository) DeleteAssets(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id IN ?", ids).Delete(&assetRow{})
		if result.Error != nil {
			return result.Error
		}
		if want := int64(len(uniqueIDs(ids))); result.RowsAffected != want {
			return fmt.Errorf("%w: %d of %d assets", storage.ErrNotFound, want-result.RowsAffected, want)
		}
		return nil
	})
}

// GetAsset retrieves a single asset by ID.
func (r *Repository) GetAsset(ctx context.Context, id uuid.UUID) (*core.Asset, error) {
	var row assetRow
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: asset %s", storage.ErrNotFound, id)
		}
		return nil, err
	}
	return row.toAsset(), nil
}

// GetAssets retrieves multiple assets in the order of ids.
func (r *Repository) GetAssets(ctx context.Context, ids ...uuid.UUID) ([]*core.Asset, error) {
	if len(ids) == 0 {
		return []*core.Asset{}, nil
	}
	var rows []assetRow
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*core.Asset, len(rows))
	for i := range rows {
		byID[rows[i].ID] = rows[i].toAsset()
	}
	result := make([]*core.Asset, 0, len(rows))
	for _, id := range ids {
		if asset, ok := byID[id]; ok {
			result = append(result, asset)
		}
	}
	return result, nil
}

// RecentAssets returns the newest assets matching filters.
func (r *Repository) RecentAssets(ctx context.Context, filters core.Filters, limit int) ([]*core.Asset, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	var rows []assetRow
	err := r.recentQuery(r.db.WithContext(ctx), filters, limit).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toAssets(rows), nil
}

func (r *Repository) recentQuery(tx *gorm.DB, filters core.Filters, limit int) *gorm.DB {
	return tx.Model(&assetRow{}).
		Scopes(filterScope(filters)).
		Order("created_at DESC").
		Limit(limit)
}

// FindCandidates returns assets whose filename or AI data contains at least
// one token.
func (r *Repository) FindCandidates(ctx context.Context, query storage.CandidateQuery) ([]*core.Asset, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	var rows []assetRow
	if err := r.candidateQuery(r.db.WithContext(ctx), query).Find(&rows).Error; err != nil {
		return nil, err
	}
	return toAssets(rows), nil
}

func (r *Repository) candidateQuery(tx *gorm.DB, query storage.CandidateQuery) *gorm.DB {
	clauses := make([]string, 0, len(query.Tokens))
	args := make([]any, 0, len(query.Tokens)*len(textColumns))
	for _, token := range query.Tokens {
		if token == "" {
			continue
		}
		pattern := "%" + escapeLike(token) + "%"
		parts := make([]string, len(textColumns))
		for i, col := range textColumns {
			parts[i] = col + " ILIKE ?"
			args = append(args, pattern)
		}
		clauses = append(clauses, strings.Join(parts, " OR "))
	}

	if len(clauses) == 0 {
		return tx.Model(&assetRow{}).Where("FALSE")
	}

	return tx.Model(&assetRow{}).
		Where("("+strings.Join(clauses, " OR ")+")", args...).
		Scopes(filterScope(query.Filters)).
		Limit(query.Limit)
}

// GetAssetsByDateRange retrieves assets created within [start, end).
func (r *Repository) GetAssetsByDateRange(ctx context.Context, start, end time.Time) ([]*core.Asset, error) {
	if start.Equal(end) {
		end = start.Add(time.Microsecond)
	}
	var rows []assetRow
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", start.UTC(), end.UTC()).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toAssets(rows), nil
}

type neighborRow struct {
	ID       uuid.UUID
	Distance float32
}

// FindNearest returns assets within query.MaxDistance of query.Vector using
// the configured metric.
func (r *Repository) FindNearest(ctx context.Context, query storage.VectorQuery) ([]storage.Neighbor, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	var rows []neighborRow
	if err := r.nearestQuery(r.db.WithContext(ctx), query).Find(&rows).Error; err != nil {
		return nil, err
	}
	neighbors := make([]storage.Neighbor, len(rows))
	for i, row := range rows {
		neighbors[i] = storage.Neighbor{ID: row.ID, Distance: row.Distance}
	}
	return neighbors, nil
}

func (r *Repository) nearestQuery(tx *gorm.DB, query storage.VectorQuery) *gorm.DB {
	vec := pgvector.NewVector(query.Vector)
	distance := fmt.Sprintf("(embedding %s ?)", r.metric.Operator())

	tx = tx.Model(&assetRow{}).
		Select("id, "+distance+" AS distance", vec).
		Where("embedding IS NOT NULL").
		Where(distance+" <= ?", vec, query.MaxDistance)
	if len(query.ExcludeIDs) > 0 {
		tx = tx.Where("id NOT IN ?", query.ExcludeIDs)
	}
	return tx.Scopes(filterScope(query.Filters)).
		Order("distance ASC").
		Limit(query.Limit)
}

// UpsertVectors is a no-op; embeddings are stored with the asset row.
func (r *Repository) UpsertVectors(ctx context.Context, assets ...*core.Asset) error {
	return nil
}

// DeleteVectors is a no-op; embeddings are removed with the asset row.
func (r *Repository) DeleteVectors(ctx context.Context, ids ...uuid.UUID) error {
	return nil
}

// Columns searched by candidate retrieval.
var textColumns = []string{
	"original_name",
	"ai_data->>'description'",
	"ai_data->>'transcript'",
	"(ai_data->'tags')::text",
	"(ai_data->'colors')::text",
}

// filterScope applies the structured filters.
func filterScope(filters core.Filters) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		switch filters.Type {
		case core.MediaTypeImage, core.MediaTypeVideo, core.MediaTypeAudio:
			tx = tx.Where("mime_type ILIKE ?", string(filters.Type)+"/%")
		case core.MediaTypeDoc:
			tx = tx.Where("lower(mime_type) = ?", "application/pdf")
		}
		if color := strings.ToLower(strings.TrimSpace(filters.Color)); color != "" {
			tx = tx.Where("(ai_data->'colors')::text ILIKE ?", "%"+escapeLike(color)+"%")
		}
		return tx
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards using the default backslash escape.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func uniqueIDs(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
