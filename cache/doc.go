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

// Package cache provides an injectable byte cache and an ai.Embedder
// decorator that memoizes query embeddings.
//
// Two backends are available: NewMemory keeps entries in a size-bounded
// in-process ristretto cache, and NewRedis stores them in Redis so several
// service instances share one cache. Search correctness never depends on a
// cache hit; backend errors are logged and the wrapped call proceeds.
package cache
