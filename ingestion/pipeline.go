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
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/assetfind/ai"
	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/storage"
)

// Pipeline orchestrates the ingestion and enrichment of assets.
// It manages concurrent annotation and embedding of newly stored assets.
type Pipeline struct {
	assets        storage.AssetRepository
	embedder      ai.Embedder
	tagger        ai.Tagger
	vectors       storage.VectorWriter
	taggingPool   *ants.Pool
	embeddingPool *ants.Pool
	taggingProc   processor
	embeddingProc processor
	pending       sync.WaitGroup
	released      atomic.Bool
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pools
		p.releasePools()

		taggingPool, err := ants.NewPool(size)
		if err != nil {
			return err
		}

		embeddingPool, err := ants.NewPool(size)
		if err != nil {
			taggingPool.Release()
			return err
		}

		p.taggingPool = taggingPool
		p.embeddingPool = embeddingPool
		return nil
	}
}

// WithTagger enables annotation of assets that arrive without tags or a
// description. Without a tagger assets are only embedded.
func WithTagger(tagger ai.Tagger) Option {
	return func(p *Pipeline) error {
		p.tagger = tagger
		return nil
	}
}

// WithVectorWriter mirrors new embeddings into an external vector index.
func WithVectorWriter(vectors storage.VectorWriter) Option {
	return func(p *Pipeline) error {
		p.vectors = vectors
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(assets storage.AssetRepository, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if assets == nil {
		return nil, ErrAssetRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	taggingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		taggingPool.Release()
		return nil, err
	}

	p := &Pipeline{
		assets:        assets,
		embedder:      embedder,
		taggingPool:   taggingPool,
		embeddingPool: embeddingPool,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	p.logger = p.logger.With("component", "ingestion")
	if p.tagger != nil {
		p.taggingProc = newTaggingProcessor(assets, p.tagger, p.logger)
	}
	p.embeddingProc = newEmbeddingProcessor(assets, p.vectors, embedder, p.logger)

	return p, nil
}

// Ingest stores assets and enriches them asynchronously.
// The stored assets are returned as soon as they are persisted; annotation
// and embedding happen in the background. Call Wait to block until the
// enrichment of everything ingested so far has finished.
func (p *Pipeline) Ingest(ctx context.Context, assets ...*core.Asset) ([]*core.Asset, error) {
	if p.released.Load() {
		return nil, ErrPipelineReleased
	}

	added, err := p.assets.AddAssets(ctx, assets...)
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		return added, nil
	}

	ids := make([]uuid.UUID, len(added))
	for i, asset := range added {
		ids[i] = asset.ID
	}

	p.pending.Add(1)
	if p.taggingProc == nil {
		p.submitEmbedding(ids)
		return added, nil
	}

	err = p.taggingPool.Submit(func() {
		if err := p.taggingProc.process(context.Background(), ids...); err != nil {
			p.logger.Error("error processing annotations", "err", err)
		}
		p.submitEmbedding(ids)
	})
	if err != nil {
		p.pending.Done()
		p.logger.Error("error submitting annotation task", "err", err)
	}
	return added, nil
}

func (p *Pipeline) submitEmbedding(ids []uuid.UUID) {
	err := p.embeddingPool.Submit(func() {
		defer p.pending.Done()
		if err := p.embeddingProc.process(context.Background(), ids...); err != nil {
			p.logger.Error("error processing embeddings", "err", err)
		}
	})
	if err != nil {
		p.pending.Done()
		p.logger.Error("error submitting embedding task", "err", err)
	}
}

// Wait blocks until all submitted enrichment work has completed.
func (p *Pipeline) Wait() {
	p.pending.Wait()
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.released.Store(true)
	p.releasePools()
}

func (p *Pipeline) releasePools() {
	if p.taggingPool != nil {
		p.taggingPool.Release()
	}
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
