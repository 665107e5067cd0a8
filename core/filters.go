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

import "strings"

// Filters are the structured constraints intersected with every query.
type Filters struct {
	Type  MediaType
	Color string
}

// IsZero reports whether no constraint is set.
func (f Filters) IsZero() bool {
	return f.Type == MediaTypeAny && strings.TrimSpace(f.Color) == ""
}

// ColorOnly drops the type constraint.
func (f Filters) ColorOnly() Filters {
	return Filters{Color: f.Color}
}

// Match reports whether the asset satisfies every set constraint.
func (f Filters) Match(asset *Asset) bool {
	if asset == nil {
		return false
	}
	if f.Type != MediaTypeAny && asset.MediaType() != f.Type {
		return false
	}
	return asset.AIData.HasColor(f.Color)
}
