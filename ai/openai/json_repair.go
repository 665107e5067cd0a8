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

package openai

import (
	"encoding/json"
	"maps"
	"regexp"
	"slices"
	"strings"
)

// annotationFields maps the keys models use onto annotation fields.
var annotationFields = map[string]string{
	"tags":            "tags",
	"keywords":        "tags",
	"labels":          "tags",
	"description":     "description",
	"caption":         "description",
	"summary":         "description",
	"colors":          "colors",
	"colours":         "colors",
	"dominant_colors": "colors",
}

var (
	// bareKeyPattern finds known keys missing one or both quotes.
	bareKeyPattern = regexp.MustCompile(`(?i)([{,]\s*)"?(tags|keywords|labels|description|caption|summary|colou?rs|dominant_colors)"?\s*:`)

	trailingCommaPattern = regexp.MustCompile(`,(\s*[\]}])`)
)

// decodeAnnotation parses a tagger response into an annotation. Keys are
// matched case-insensitively including common synonyms, list fields may be
// given as comma-separated strings, and a second parse is attempted after
// quoting bare keys and dropping trailing commas.
func decodeAnnotation(response string) (annotation, error) {
	text := stripCodeFence(response)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		if json.Unmarshal([]byte(repairAnnotationJSON(text)), &fields) != nil {
			return annotation{}, err
		}
	}

	var out annotation
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		raw := fields[key]
		switch annotationFields[strings.ToLower(key)] {
		case "tags":
			out.Tags = append(out.Tags, stringList(raw)...)
		case "colors":
			out.Colors = append(out.Colors, stringList(raw)...)
		case "description":
			if out.Description == "" {
				out.Description = joinedString(raw)
			}
		}
	}
	return out, nil
}

func repairAnnotationJSON(s string) string {
	s = bareKeyPattern.ReplaceAllString(s, `$1"$2":`)
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}

// stringList accepts ["a","b"], "a, b" or a list mixing strings with other
// values, which are dropped.
func stringList(raw json.RawMessage) []string {
	var list []any
	if json.Unmarshal(raw, &list) == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}

	var s string
	if json.Unmarshal(raw, &s) != nil {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// joinedString accepts a string or a list of strings joined by spaces.
func joinedString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return strings.Join(stringList(raw), " ")
}
