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

// Package qdrant keeps asset embeddings in a Qdrant collection and answers
// nearest-neighbour queries from it.
//
// Store implements storage.VectorIndex and storage.VectorWriter. Asset
// records themselves stay in an AssetRepository; only the vector, the media
// type and the colors are mirrored as point payload so filters can be pushed
// down to Qdrant.
package qdrant
