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

package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/assetfind/ai"
	"github.com/poiesic/assetfind/storage"
)

// Embedder memoizes EmbedText results.
type Embedder struct {
	inner  ai.Embedder
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder wraps inner so repeated identical texts skip the external call.
func NewEmbedder(inner ai.Embedder, c Cache, ttl time.Duration) (*Embedder, error) {
	if inner == nil {
		return nil, ErrEmbedderRequired
	}
	if c == nil {
		return nil, ErrCacheRequired
	}
	return &Embedder{
		inner:  inner,
		cache:  c,
		ttl:    ttl,
		logger: slog.Default().With("component", "embedding-cache"),
	}, nil
}

// EmbedText returns a cached embedding when present, otherwise calls the
// wrapped embedder and stores the result.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := Key("embed", text)

	data, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("cache read failed", "err", err)
	}
	if ok {
		if vec, err := storage.UnmarshalVector(data); err == nil {
			return vec, nil
		}
		e.logger.Warn("discarding corrupt cache entry", "key", key)
		_ = e.cache.Evict(ctx, key)
	}

	vec, err := e.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) > 0 {
		if err := e.cache.Set(ctx, key, storage.MarshalVector(vec), e.ttl); err != nil {
			e.logger.Warn("cache write failed", "err", err)
		}
	}
	return vec, nil
}

// EmbedTexts is passed through uncached.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return e.inner.EmbedTexts(ctx, texts)
}
