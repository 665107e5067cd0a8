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
	"io"
	"time"

	"github.com/poiesic/assetfind/ai"
	"github.com/poiesic/assetfind/core"
	"github.com/poiesic/assetfind/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of assets to process in each batch
	BatchSize int `yaml:"batch_size"`

	// ReportInterval is how often to report progress (number of assets)
	ReportInterval int `yaml:"report_interval"`

	// MaxRetries is the maximum number of attempts for failed embedding calls
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder orchestrates the reembedding of all assets in a database.
type Reembedder struct {
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *AssetIterator
}

// NewReembedder creates a new reembedder.
// vectors may be nil; when set every new embedding is also written there.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.AssetRepository, vectors storage.VectorWriter, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrAssetRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, vectors, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewAssetIterator(repo, config.BatchSize),
	}, nil
}

// Run executes the reembedding operation.
// All assets in the database will be reembedded with the configured embedder.
// When the embedder produces a different dimensionality than the stored
// embeddings, those embeddings are discarded before the first batch is
// written. It returns the number of assets processed.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	total, err := r.iterator.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to query assets: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No assets found in database (0 assets)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d assets (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(assets []*core.Asset) error {
		batch, err := r.processor.Process(ctx, assets)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		tracker.Record(batch)
		return nil
	})
	if err != nil {
		return tracker.Stats().Processed, err
	}

	stats := tracker.Finish()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d assets in %v (%.1f assets/sec)\n",
		stats.Processed, stats.Elapsed.Round(time.Millisecond), float64(stats.Processed)/stats.Elapsed.Seconds())

	return stats.Processed, nil
}
