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

// Package assetfind wires an asset store, a vector index, an embedding
// cache and AI services into a searchable asset library.
package assetfind

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/poiesic/assetfind/ai"
	"github.com/poiesic/assetfind/ai/mock"
	"github.com/poiesic/assetfind/ai/openai"
	"github.com/poiesic/assetfind/api"
	"github.com/poiesic/assetfind/cache"
	"github.com/poiesic/assetfind/ingestion"
	"github.com/poiesic/assetfind/reembed"
	"github.com/poiesic/assetfind/search"
	"github.com/poiesic/assetfind/storage"
	"github.com/poiesic/assetfind/storage/badger"
	"github.com/poiesic/assetfind/storage/postgres"
	"github.com/poiesic/assetfind/storage/qdrant"
)

// Library owns the storage and service connections described by a Config.
type Library struct {
	config        *Config
	assets        storage.AssetRepository
	index         storage.VectorIndex
	vectors       storage.VectorWriter // nil when index is the asset store
	provider      ai.AIProvider
	cache         cache.Cache
	queryEmbedder ai.Embedder
	closers       []func() error
	baseLogger    *slog.Logger
	logger        *slog.Logger
}

// Option configures Open.
type Option func(*libraryOptions)

type libraryOptions struct {
	logger   *slog.Logger
	provider ai.AIProvider
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *libraryOptions) {
		o.logger = logger
	}
}

// WithAIProvider overrides the provider selected by the configuration.
// The library closes it on Close.
func WithAIProvider(provider ai.AIProvider) Option {
	return func(o *libraryOptions) {
		o.provider = provider
	}
}

// Open validates cfg and connects everything it names. A nil cfg means
// DefaultConfig().
func Open(ctx context.Context, cfg *Config, opts ...Option) (*Library, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &libraryOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	l := &Library{
		config:     cfg,
		baseLogger: options.logger,
		logger:     options.logger.With("component", "library"),
	}
	if err := l.open(ctx, options); err != nil {
		if closeErr := l.Close(); closeErr != nil {
			l.logger.Error("error closing partially opened library", "err", closeErr)
		}
		return nil, err
	}
	return l, nil
}

func (l *Library) open(ctx context.Context, options *libraryOptions) error {
	if err := l.openStorage(ctx, options.logger); err != nil {
		return err
	}
	if err := l.openVectorIndex(ctx, options.logger); err != nil {
		return err
	}

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = newProvider(l.config.AI)
		if err != nil {
			return fmt.Errorf("creating AI provider: %w", err)
		}
	}
	l.provider = provider
	l.closers = append(l.closers, provider.Close)
	l.queryEmbedder = provider.Embedder()

	return l.openCache(ctx)
}

func (l *Library) openStorage(ctx context.Context, logger *slog.Logger) error {
	sc := l.config.Storage
	switch sc.Driver {
	case StoragePostgres:
		metric := postgres.Cosine
		if strings.EqualFold(sc.Metric, postgres.L2.Name()) {
			metric = postgres.L2
		}
		repo, err := postgres.Open(sc.DSN, postgres.WithMetric(metric), postgres.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("opening postgres: %w", err)
		}
		l.closers = append(l.closers, repo.Close)
		if sc.AutoMigrate {
			if err := repo.Migrate(ctx); err != nil {
				return fmt.Errorf("migrating postgres: %w", err)
			}
		}
		l.assets, l.index = repo, repo
	default:
		backend, err := badger.OpenBackend(sc.Path, sc.InMemory)
		if err != nil {
			return fmt.Errorf("opening badger: %w", err)
		}
		l.closers = append(l.closers, backend.Close)
		repo, err := badger.NewAssetRepository(backend)
		if err != nil {
			return err
		}
		l.closers = append(l.closers, repo.Close)
		l.assets, l.index = repo, repo
	}
	return nil
}

func (l *Library) openVectorIndex(ctx context.Context, logger *slog.Logger) error {
	vc := l.config.Vector
	if vc.Driver != VectorQdrant {
		return nil
	}
	store, err := qdrant.Dial(vc.Addr, vc.Collection, nil, qdrant.WithLogger(logger))
	if err != nil {
		return err
	}
	l.closers = append(l.closers, store.Close)
	if err := store.EnsureCollection(ctx, vc.Dims); err != nil {
		return err
	}
	l.index, l.vectors = store, store
	return nil
}

func (l *Library) openCache(ctx context.Context) error {
	cc := l.config.Cache
	var c cache.Cache
	switch cc.Driver {
	case CacheMemory:
		m, err := cache.NewMemory(cc.MaxBytes)
		if err != nil {
			return err
		}
		c = m
	case CacheRedis:
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Address:  cc.Addr,
			Password: cc.Password,
			DB:       cc.DB,
			Prefix:   cc.Prefix,
		})
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		c = r
	default:
		return nil
	}
	l.closers = append(l.closers, c.Close)

	embedder, err := cache.NewEmbedder(l.provider.Embedder(), c, cc.TTL)
	if err != nil {
		return err
	}
	l.cache = c
	l.queryEmbedder = embedder
	return nil
}

func newProvider(cfg AIConfig) (ai.AIProvider, error) {
	if cfg.Provider == ProviderMock {
		return mock.NewMockProvider(), nil
	}
	return openai.NewProvider(cfg.toAIConfig())
}

// Close releases every resource in reverse order of acquisition.
func (l *Library) Close() error {
	var errs []error
	for i := len(l.closers) - 1; i >= 0; i-- {
		if err := l.closers[i](); err != nil {
			l.logger.Error("error closing library resource", "err", err)
			errs = append(errs, err)
		}
	}
	l.closers = nil
	return errors.Join(errs...)
}

// Config returns the configuration the library was opened with.
func (l *Library) Config() *Config {
	return l.config
}

// Assets returns the asset store.
func (l *Library) Assets() storage.AssetRepository {
	return l.assets
}

// NewSearcher creates a searcher using the configured timeouts. opts are
// applied after the configured ones.
func (l *Library) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	sc := l.config.Search
	base := []search.Option{
		search.WithLogger(l.baseLogger),
		search.WithEmbedTimeout(sc.EmbedTimeout),
		search.WithVectorTimeout(sc.VectorTimeout),
		search.WithMaxResults(sc.MaxResults),
	}
	return search.NewSearcher(l.assets, l.index, l.queryEmbedder, append(base, opts...)...)
}

// NewIngestionPipeline creates a pipeline that tags, embeds and indexes
// new assets.
func (l *Library) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := []ingestion.Option{ingestion.WithLogger(l.baseLogger)}
	if !l.config.AI.DisableTagging {
		base = append(base, ingestion.WithTagger(l.provider.Tagger()))
	}
	if l.vectors != nil {
		base = append(base, ingestion.WithVectorWriter(l.vectors))
	}
	return ingestion.NewPipeline(l.assets, l.provider.Embedder(), append(base, opts...)...)
}

// NewReembedder creates a reembedder writing progress to progress.
func (l *Library) NewReembedder(progress io.Writer) (*reembed.Reembedder, error) {
	cfg := l.config.Reembed
	return reembed.NewReembedder(l.assets, l.vectors, l.provider.Embedder(), &cfg, progress)
}

// NewServer creates the HTTP API over a new searcher.
func (l *Library) NewServer(opts ...api.Option) (*api.Server, error) {
	searcher, err := l.NewSearcher()
	if err != nil {
		return nil, err
	}
	sc := l.config.Server
	base := []api.Option{
		api.WithLogger(l.baseLogger),
		api.WithRequestTimeout(sc.RequestTimeout),
		api.WithAllowedOrigins(sc.AllowedOrigins...),
	}
	return api.NewServer(searcher, append(base, opts...)...)
}
