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

import "errors"

var (
	// ErrCacheRequired is returned when a nil cache is passed to a decorator.
	ErrCacheRequired = errors.New("cache required")

	// ErrEmbedderRequired is returned when a nil embedder is passed to NewEmbedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("cache closed")
)
