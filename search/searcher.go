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

package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/poiesic/assetfind/ai"
	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// RecentLimit bounds the default list returned for an empty token set.
	RecentLimit = 50
	// CandidateLimit bounds the lexical candidate set handed to the scorer.
	CandidateLimit = 200

	// FallbackBelow triggers the vector fallback when fewer assets rank.
	FallbackBelow = 5
	// FallbackMinQueryRunes is the query length the fallback requires to be exceeded.
	FallbackMinQueryRunes = 2
	// FallbackMaxDistance is the vector distance cutoff for search fallback.
	FallbackMaxDistance = 0.40
	// FallbackLimit bounds the neighbours fetched by the fallback.
	FallbackLimit = 10

	// RelatedMaxDistance is the vector distance cutoff for related assets.
	RelatedMaxDistance = 0.35
	// RelatedLimit bounds the related assets returned.
	RelatedLimit = 10

	// DefaultMaxResults caps the final search result list.
	DefaultMaxResults = 100
)

const tracerName = "github.com/poiesic/assetfind/search"

// Searcher answers lexical searches with a vector fallback, and
// related-asset queries.
type Searcher struct {
	assets        storage.AssetRepository
	index         storage.VectorIndex
	embedder      ai.Embedder
	logger        *slog.Logger
	tracer        trace.Tracer
	embedTimeout  time.Duration
	vectorTimeout time.Duration
	maxResults    int
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "searcher")
		return nil
	}
}

// WithEmbedTimeout bounds the query embedding call of the fallback.
// Zero disables the bound. Default is 5s.
func WithEmbedTimeout(d time.Duration) Option {
	return func(s *Searcher) error {
		if d < 0 {
			return fmt.Errorf("%w: embed timeout %s", ErrInvalidOption, d)
		}
		s.embedTimeout = d
		return nil
	}
}

// WithVectorTimeout bounds each vector index query.
// Zero disables the bound. Default is 5s.
func WithVectorTimeout(d time.Duration) Option {
	return func(s *Searcher) error {
		if d < 0 {
			return fmt.Errorf("%w: vector timeout %s", ErrInvalidOption, d)
		}
		s.vectorTimeout = d
		return nil
	}
}

// WithMaxResults caps the number of assets Search returns.
// Default is DefaultMaxResults.
func WithMaxResults(n int) Option {
	return func(s *Searcher) error {
		if n <= 0 {
			return fmt.Errorf("%w: max results %d", ErrInvalidOption, n)
		}
		s.maxResults = n
		return nil
	}
}

// WithTracerProvider sets the provider spans are created from.
// Default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Searcher) error {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	assets storage.AssetRepository,
	index storage.VectorIndex,
	embedder ai.Embedder,
	opts ...Option,
) (*Searcher, error) {
	if assets == nil {
		return nil, ErrAssetRepositoryRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		assets:        assets,
		index:         index,
		embedder:      embedder,
		logger:        slog.Default().With("component", "searcher"),
		tracer:        otel.Tracer(tracerName),
		embedTimeout:  5 * time.Second,
		vectorTimeout: 5 * time.Second,
		maxResults:    DefaultMaxResults,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search returns assets matching query under filters, best first.
func (s *Searcher) Search(ctx context.Context, query string, filters core.Filters) ([]*core.Asset, error) {
	return s.SearchWithMonitor(ctx, query, filters, nil)
}

// SearchWithMonitor is Search with a monitor receiving callbacks at each
// stage. A nil monitor is ignored.
//
// Only a failure of the primary candidate retrieval is returned as an error.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, filters core.Filters, monitor SearchMonitor) ([]*core.Asset, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(query)

	ctx, span := s.tracer.Start(ctx, "search", trace.WithAttributes(
		attribute.String("search.type", string(filters.Type)),
		attribute.String("search.color", filters.Color),
	))
	defer span.End()

	_, tokSpan := s.tracer.Start(ctx, "search.tokenize")
	tokens := Tokenize(query)
	tokSpan.SetAttributes(attribute.Int("tokens", len(tokens)))
	tokSpan.End()
	monitor.AfterTokenize(tokens)

	if len(tokens) == 0 {
		results, err := s.recent(ctx, filters)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "recent assets")
			return nil, err
		}
		monitor.AfterCandidateRetrieval(len(results))
		results = s.capResults(results)
		monitor.Finish(results)
		return results, nil
	}

	candidates, err := s.candidates(ctx, tokens, filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "candidate retrieval")
		return nil, err
	}
	monitor.AfterCandidateRetrieval(len(candidates))

	_, scoreSpan := s.tracer.Start(ctx, "search.score")
	scored := Rank(candidates, query, tokens)
	scoreSpan.SetAttributes(attribute.Int("ranked", len(scored)))
	scoreSpan.End()
	monitor.AfterScoring(scored)

	results := make([]*core.Asset, len(scored))
	for i, sa := range scored {
		results[i] = sa.Asset
	}
	results = s.capResults(results)

	if shouldFallback(len(scored), query) {
		monitor.FallbackTriggered(query)
		results = s.capResults(s.fallback(ctx, query, filters, results, monitor))
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	monitor.Finish(results)
	return results, nil
}

// shouldFallback reports whether the vector fallback runs for ranked results.
func shouldFallback(ranked int, query string) bool {
	return ranked < FallbackBelow && utf8.RuneCountInString(strings.TrimSpace(query)) > FallbackMinQueryRunes
}

func (s *Searcher) recent(ctx context.Context, filters core.Filters) ([]*core.Asset, error) {
	ctx, span := s.tracer.Start(ctx, "search.candidates", trace.WithAttributes(attribute.Bool("recent", true)))
	defer span.End()

	results, err := s.assets.RecentAssets(ctx, filters, RecentLimit)
	if err != nil {
		s.logger.Error("error retrieving recent assets", "err", err)
		return nil, fmt.Errorf("retrieving recent assets: %w", err)
	}
	return results, nil
}

func (s *Searcher) candidates(ctx context.Context, tokens []string, filters core.Filters) ([]*core.Asset, error) {
	ctx, span := s.tracer.Start(ctx, "search.candidates")
	defer span.End()

	candidates, err := s.assets.FindCandidates(ctx, storage.CandidateQuery{
		Tokens:  tokens,
		Filters: filters,
		Limit:   CandidateLimit,
	})
	if err != nil {
		s.logger.Error("error retrieving candidates", "tokens", tokens, "err", err)
		return nil, fmt.Errorf("retrieving candidates: %w", err)
	}
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	return candidates, nil
}

// fallback appends nearest neighbours of the query embedding to ranked.
// Any failure leaves ranked unchanged.
func (s *Searcher) fallback(ctx context.Context, query string, filters core.Filters, ranked []*core.Asset, monitor SearchMonitor) []*core.Asset {
	ctx, span := s.tracer.Start(ctx, "search.fallback")
	defer span.End()

	fail := func(stage string, err error) []*core.Asset {
		s.logger.Warn("vector fallback skipped", "stage", stage, "err", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("failed_stage", stage))
		monitor.FallbackFailed(stage, err)
		return ranked
	}

	embedCtx, cancel := withOptionalTimeout(ctx, s.embedTimeout)
	vec, err := s.embedder.EmbedText(embedCtx, query)
	cancel()
	if err != nil {
		return fail("embed", err)
	}
	if len(vec) == 0 {
		return fail("embed", ErrEmptyEmbedding)
	}

	exclude := make([]uuid.UUID, len(ranked))
	seen := make(map[uuid.UUID]bool, len(ranked))
	for i, a := range ranked {
		exclude[i] = a.ID
		seen[a.ID] = true
	}

	colorOnly := filters.ColorOnly()
	neighbors, err := s.nearest(ctx, storage.VectorQuery{
		Vector:      vec,
		MaxDistance: FallbackMaxDistance,
		Limit:       FallbackLimit,
		Filters:     colorOnly,
		ExcludeIDs:  exclude,
	})
	if err != nil {
		return fail("vector", err)
	}

	matches, err := s.hydrate(ctx, neighbors)
	if err != nil {
		return fail("hydrate", err)
	}

	added := 0
	for _, asset := range matches {
		if len(ranked) >= s.maxResults {
			break
		}
		if seen[asset.ID] || !colorOnly.Match(asset) {
			continue
		}
		seen[asset.ID] = true
		ranked = append(ranked, asset)
		added++
	}
	span.SetAttributes(attribute.Int("appended", added))
	s.logger.Debug("vector fallback appended results", "neighbors", len(neighbors), "appended", added)
	return ranked
}

// Related returns up to RelatedLimit assets nearest to the embedding of the
// asset with the given id, never including the asset itself. An asset
// without an embedding has no related assets. A missing asset yields an
// error wrapping storage.ErrNotFound.
func (s *Searcher) Related(ctx context.Context, id uuid.UUID) ([]*core.Asset, error) {
	ctx, span := s.tracer.Start(ctx, "search.related", trace.WithAttributes(attribute.String("asset.id", id.String())))
	defer span.End()

	asset, err := s.assets.GetAsset(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("loading asset %s: %w", id, err)
	}
	if !asset.HasEmbedding() {
		return []*core.Asset{}, nil
	}

	neighbors, err := s.nearest(ctx, storage.VectorQuery{
		Vector:      asset.Embedding,
		MaxDistance: RelatedMaxDistance,
		Limit:       RelatedLimit,
		ExcludeIDs:  []uuid.UUID{id},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "vector query")
		s.logger.Error("error querying related assets", "id", id, "err", err)
		return nil, fmt.Errorf("finding related assets: %w", err)
	}

	related, err := s.hydrate(ctx, neighbors)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "hydrate")
		return nil, fmt.Errorf("loading related assets: %w", err)
	}

	results := make([]*core.Asset, 0, len(related))
	for _, a := range related {
		if a.ID != id {
			results = append(results, a)
		}
	}
	span.SetAttributes(attribute.Int("results", len(results)))
	return results, nil
}

func (s *Searcher) nearest(ctx context.Context, query storage.VectorQuery) ([]storage.Neighbor, error) {
	ctx, cancel := withOptionalTimeout(ctx, s.vectorTimeout)
	defer cancel()
	return s.index.FindNearest(ctx, query)
}

// hydrate loads the assets for neighbors, preserving their distance order.
func (s *Searcher) hydrate(ctx context.Context, neighbors []storage.Neighbor) ([]*core.Asset, error) {
	if len(neighbors) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ID
	}
	return s.assets.GetAssets(ctx, ids...)
}

func (s *Searcher) capResults(results []*core.Asset) []*core.Asset {
	if len(results) > s.maxResults {
		return results[:s.maxResults]
	}
	return results
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
