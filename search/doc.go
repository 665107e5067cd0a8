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

// Package search ranks assets for a free-text query.
//
// A search runs four stages in order:
//   - Tokenize lower-cases the query, drops punctuation and short words, and
//     adds English stems
//   - candidate retrieval asks the AssetRepository for every asset whose
//     filename or AI text contains any token, under the type and color filters
//   - Rank scores candidates on exact-phrase and per-token matches plus a
//     coverage bonus, dropping those with no signal
//   - when fewer than five assets rank, the query is embedded and nearest
//     neighbours from the VectorIndex are appended as a lower-confidence tail
//
// An empty token set skips scoring and returns the newest assets instead.
// Failures in the vector stage are logged and never fail the search.
//
// Related returns the nearest neighbours of one asset's own embedding.
package search
