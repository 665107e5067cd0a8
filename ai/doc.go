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

// Package ai provides abstractions for the AI services used to enrich and
// search assets.
//
// The package is designed around three interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - Tagger: Annotates an asset with tags, a description and colors
//   - AIProvider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// interface types. Test constructors (mock.NewMockEmbedder,
// mock.NewMockTagger) return concrete types so tests can inject behavior and
// inspect call counts.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
//	mockEmbed := mock.NewMockEmbedder()          // returns *mock.MockEmbedder
//	count := mockEmbed.CallCount()
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithEmbeddingRateLimit(10))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "red car on a beach")
//	ann, err := provider.Tagger().Annotate(ctx, "IMG_0042.jpg", "a red car parked on the sand")
package ai
