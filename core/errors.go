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

import "errors"

// Domain validation errors
var (
	// ErrInvalidAsset indicates an Asset failed validation.
	ErrInvalidAsset = errors.New("invalid asset")

	// ErrEmptyName indicates the OriginalName field is empty.
	ErrEmptyName = errors.New("original name cannot be empty")

	// ErrEmptyMimeType indicates the MimeType field is empty.
	ErrEmptyMimeType = errors.New("mime type cannot be empty")

	// ErrInvalidMediaType indicates an unknown type filter.
	ErrInvalidMediaType = errors.New("invalid media type")

	// ErrDimensionMismatch indicates an embedding whose length differs from
	// the dimensionality already established by the store.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
