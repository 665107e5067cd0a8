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
	"time"

	"github.com/google/uuid"
)

// Asset is a stored media file together with its AI-derived metadata.
// AIData and Embedding are filled in asynchronously by the enrichment
// step and may be empty at query time.
type Asset struct {
	ID           uuid.UUID
	OriginalName string
	MimeType     string
	AIData       AIData
	Embedding    []float32 // nil until embedded
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasEmbedding reports whether the asset is eligible for vector queries.
func (a *Asset) HasEmbedding() bool {
	return len(a.Embedding) > 0
}

// MediaType returns the coarse media classification of the asset.
func (a *Asset) MediaType() MediaType {
	return MediaTypeOf(a.MimeType)
}

// EmbeddingText returns the text used to compute the asset's embedding.
// Falls back to the filename when no semantic data exists yet.
func (a *Asset) EmbeddingText() string {
	if text := a.AIData.SearchText(); text != "" {
		return a.OriginalName + " " + text
	}
	return a.OriginalName
}

// MediaType is a coarse asset classification used for filtering.
type MediaType string

const (
	MediaTypeAny   MediaType = ""
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeDoc   MediaType = "doc"
	MediaTypeAudio MediaType = "audio"
)

// MediaTypeOf classifies a MIME type. Unknown types map to MediaTypeAny.
func MediaTypeOf(mimeType string) MediaType {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return MediaTypeImage
	case strings.HasPrefix(mimeType, "video/"):
		return MediaTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return MediaTypeAudio
	case mimeType == "application/pdf":
		return MediaTypeDoc
	}
	return MediaTypeAny
}

// ParseMediaType parses a user supplied type filter.
// The empty string means no filter.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(strings.ToLower(strings.TrimSpace(s))) {
	case MediaTypeAny:
		return MediaTypeAny, nil
	case MediaTypeImage:
		return MediaTypeImage, nil
	case MediaTypeVideo:
		return MediaTypeVideo, nil
	case MediaTypeDoc:
		return MediaTypeDoc, nil
	case MediaTypeAudio:
		return MediaTypeAudio, nil
	}
	return MediaTypeAny, fmt.Errorf("%w: %q", ErrInvalidMediaType, s)
}
