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
	"fmt"
	"strings"

	"github.com/poiesic/assetfind/ai"
)

const annotationResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "tags": {
      "type": "array",
      "items": {"type": "string", "pattern": "^[a-z0-9]+( [a-z0-9]+)*$"}
    },
    "description": {"type": "string"},
    "colors": {
      "type": "array",
      "items": {"type": "string"}
    }
  },
  "required": ["tags", "description", "colors"],
  "additionalProperties": false
}`

const annotationPromptTemplate = `Describe a media asset for a search index and return the result as JSON.

You are given the asset's filename and any text known about it (a caption, extracted document text,
or a transcript). Output ONLY valid JSON which complies with the schema given below. Do not include any
preamble, explanation, greeting, or acknowledgment. Start your response directly with the opening brace {
and end with the closing brace }. Your output must exactly follow this schema:

%s

Rules:
- Return at most %d tags. Tags must be lowercase, 1-3 words, singular form only.
- Order tags from most to least central to the asset.
- Description is one or two plain sentences.
- Colors must be chosen from: %s. Return [] when colors cannot be inferred.
- Use only what the filename and text state or clearly imply. Do not hallucinate.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input:
filename: red-car-beach.jpg
text: a vintage convertible parked on the sand at sunset
Output:
{
  "tags": ["car", "beach", "convertible", "sunset"],
  "description": "A red vintage convertible parked on a beach at sunset.",
  "colors": ["red", "orange"]
}

Example:
Input:
filename: Q3-report.pdf
text:
Output:
{
  "tags": ["report", "quarterly report"],
  "description": "A quarterly report document.",
  "colors": []
}`

// buildSystemPrompt creates the system prompt with the schema and palette embedded.
func buildSystemPrompt(maxTags int) string {
	return fmt.Sprintf(annotationPromptTemplate,
		annotationResponseSchema,
		maxTags,
		strings.Join(ai.Colors, ", "))
}

// buildUserPrompt formats the asset for the model.
func buildUserPrompt(name, text string) string {
	return "filename: " + name + "\ntext: " + text
}
