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

// Package ingestion provides pipeline orchestration for enriching assets.
//
// The Pipeline type manages the ingestion workflow for assets, including:
//   - Adding assets to storage
//   - Annotating untagged assets with tags, a description and colors
//   - Generating embeddings and syncing them to an external vector index
//
// Processing is performed concurrently using worker pools. Annotation always
// completes before embedding because the embedding text includes the
// annotation. Errors during async processing are logged but do not fail the
// ingestion operation.
package ingestion
