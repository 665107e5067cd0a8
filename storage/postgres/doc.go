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

// Package postgres implements the asset storage interfaces on PostgreSQL
// with the pgvector extension.
//
// Assets live in a single table. AI data is stored as jsonb and embeddings in
// a vector column, so the repository serves lexical candidate retrieval and
// nearest-neighbour queries from the same rows. The distance operator is
// chosen by a Metric; Cosine matches the embedded backend.
package postgres
