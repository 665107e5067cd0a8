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

package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/assetfind/core"
)

// CandidateQuery describes a lexical candidate retrieval.
type CandidateQuery struct {
	Tokens  []string
	Filters core.Filters
	Limit   int
}

// Validate checks the query parameters.
func (q CandidateQuery) Validate() error {
	if len(q.Tokens) == 0 {
		return fmt.Errorf("%w: no tokens", ErrInvalidQuery)
	}
	if q.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidQuery)
	}
	return nil
}

// MatchText reports whether any token is a case-insensitive substring of
// any of the given fields. Tokens are expected to be lower case already.
func (q CandidateQuery) MatchText(fields ...string) bool {
	for _, field := range fields {
		field = strings.ToLower(field)
		for _, token := range q.Tokens {
			if token != "" && strings.Contains(field, token) {
				return true
			}
		}
	}
	return false
}

// VectorQuery describes a nearest-neighbour search.
type VectorQuery struct {
	Vector      []float32
	MaxDistance float32 // inclusive; smaller is more similar
	Limit       int
	Filters     core.Filters
	ExcludeIDs  []uuid.UUID
}

// Validate checks the query parameters.
func (q VectorQuery) Validate() error {
	if len(q.Vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidQuery)
	}
	if q.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidQuery)
	}
	if q.MaxDistance <= 0 || q.MaxDistance > 2 {
		return fmt.Errorf("%w: max distance %v out of range (0, 2]", ErrInvalidQuery, q.MaxDistance)
	}
	return nil
}

// Excludes reports whether id is in ExcludeIDs.
func (q VectorQuery) Excludes(id uuid.UUID) bool {
	for _, excluded := range q.ExcludeIDs {
		if excluded == id {
			return true
		}
	}
	return false
}
