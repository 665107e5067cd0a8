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

package core

import (
	"fmt"
	"strings"
)

// ValidateAsset validates an Asset according to domain rules.
//
// Validation rules:
//   - OriginalName must not be blank
//   - MimeType must not be blank
//
// NOT validated (populated by enrichment):
//   - AIData (may be empty)
//   - Embedding (nil until embedded)
//   - ID (zero is replaced on insert)
func ValidateAsset(asset *Asset) error {
	if asset == nil {
		return fmt.Errorf("%w: asset is nil", ErrInvalidAsset)
	}

	if strings.TrimSpace(asset.OriginalName) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidAsset, ErrEmptyName)
	}

	if strings.TrimSpace(asset.MimeType) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidAsset, ErrEmptyMimeType)
	}

	return nil
}

// ValidateEmbedding checks vec against an established dimensionality.
// dims <= 0 means none has been established yet. Empty vectors are valid.
func ValidateEmbedding(vec []float32, dims int) error {
	if len(vec) == 0 || dims <= 0 {
		return nil
	}
	if len(vec) != dims {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, dims, len(vec))
	}
	return nil
}
