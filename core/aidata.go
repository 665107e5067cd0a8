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
	"bytes"
	"encoding/json"
	"strings"
)

// AIData is the semantic metadata produced by the enrichment step.
// Every field is optional. The zero value is the empty record.
type AIData struct {
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
	Transcript  string   `json:"transcript,omitempty"` // video and audio only
	Colors      []string `json:"colors,omitempty"`
}

// ParseAIData decodes a serialized AIData blob.
// Absent, null or corrupt input decodes to the empty record.
func ParseAIData(raw []byte) AIData {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return AIData{}
	}
	var data AIData
	if err := json.Unmarshal(raw, &data); err != nil {
		return AIData{}
	}
	return data
}

// JSON returns the canonical serialized form.
func (d AIData) JSON() []byte {
	if d.IsEmpty() {
		return []byte("{}")
	}
	// AIData holds only strings, so Marshal cannot fail.
	bs, _ := json.Marshal(d)
	return bs
}

// IsEmpty reports whether no semantic field is populated.
func (d AIData) IsEmpty() bool {
	return len(d.Tags) == 0 && d.Description == "" && d.Transcript == "" && len(d.Colors) == 0
}

// SearchText flattens every semantic field into one space separated string.
// It is the text matched by lexical candidate retrieval.
func (d AIData) SearchText() string {
	parts := make([]string, 0, len(d.Tags)+len(d.Colors)+2)
	parts = append(parts, d.Tags...)
	if d.Description != "" {
		parts = append(parts, d.Description)
	}
	if d.Transcript != "" {
		parts = append(parts, d.Transcript)
	}
	parts = append(parts, d.Colors...)
	return strings.Join(parts, " ")
}

// HasColor reports whether color is a case-insensitive substring of any
// of the asset's colors.
func (d AIData) HasColor(color string) bool {
	color = strings.ToLower(strings.TrimSpace(color))
	if color == "" {
		return true
	}
	for _, c := range d.Colors {
		if strings.Contains(strings.ToLower(c), color) {
			return true
		}
	}
	return false
}
