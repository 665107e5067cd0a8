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

package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Tagger derives semantic annotations for an asset.
// Implementations must be thread-safe for concurrent use.
type Tagger interface {
	// Annotate inspects an asset's filename and any text known about it
	// (caption, extracted document text, transcript) and returns tags,
	// a short description and dominant colors.
	// Returns an error if the model call fails or its output cannot be parsed.
	Annotate(ctx context.Context, name, text string) (Annotation, error)
}

// Annotation is the result of tagging an asset.
type Annotation struct {
	// Tags are lowercase keywords, 1-3 words each.
	Tags []string

	// Description is a one or two sentence summary.
	Description string

	// Colors are basic color names drawn from Colors.
	Colors []string
}

// IsEmpty reports whether the annotation carries no data.
func (a Annotation) IsEmpty() bool {
	return len(a.Tags) == 0 && a.Description == "" && len(a.Colors) == 0
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Tagger instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Tagger returns the asset annotation service.
	Tagger() Tagger

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
