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
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/assetfind/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Tagger implements ai.Tagger using OpenAI-compatible chat APIs.
type Tagger struct {
	client  llms.Model
	maxTags int
	logger  *slog.Logger
}

// annotation holds the fields decoded from a model response.
type annotation struct {
	Tags        []string
	Description string
	Colors      []string
}

// newTagger is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newTagger(config *ai.Config) (*Tagger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.TaggerHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.TaggerModel),
	)
	if err != nil {
		return nil, err
	}

	return &Tagger{
		client:  client,
		maxTags: config.MaxTags,
		logger:  slog.Default().With("component", "openai-tagger"),
	}, nil
}

// NewTagger creates a new tagger using the provided configuration.
//
// Returns ai.Tagger interface to enforce abstraction.
func NewTagger(config *ai.Config) (ai.Tagger, error) {
	return newTagger(config)
}

// Annotate asks the model for tags, a description and colors.
func (t *Tagger) Annotate(ctx context.Context, name, text string) (ai.Annotation, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(buildSystemPrompt(t.maxTags))},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(buildUserPrompt(name, scrubString(text)))},
		},
	}

	// Try up to 3 times in case of malformed JSON
	var result annotation
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		response, err := t.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			t.logger.Error("failed to generate content", "attempt", attempt+1, "err", err)
			return ai.Annotation{}, err
		}

		if len(response.Choices) < 1 {
			t.logger.Debug("no choices returned from model")
			return ai.Annotation{}, nil
		}

		responseText := response.Choices[0].Content
		decoded, err := decodeAnnotation(responseText)
		if err != nil {
			lastErr = err
			t.logger.Warn("error parsing tagger response",
				"attempt", attempt+1,
				"response", responseText,
				"err", err)
			continue
		}
		result = decoded

		lastErr = nil
		break
	}

	if lastErr != nil {
		t.logger.Error("failed to parse tagger response after retries", "err", lastErr)
		return ai.Annotation{}, lastErr
	}

	return t.clean(result), nil
}

// clean lower-cases and deduplicates tags, caps them at maxTags and maps
// colors onto the palette.
func (t *Tagger) clean(raw annotation) ai.Annotation {
	var out ai.Annotation
	seen := make(map[string]bool)
	for _, tag := range raw.Tags {
		tag = strings.Join(strings.Fields(strings.ToLower(tag)), " ")
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out.Tags = append(out.Tags, tag)
		if len(out.Tags) == t.maxTags {
			break
		}
	}

	seen = make(map[string]bool)
	for _, c := range raw.Colors {
		c = ai.NormalizeColor(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out.Colors = append(out.Colors, c)
	}

	out.Description = strings.TrimSpace(raw.Description)
	t.logger.Debug("annotated asset", "tags", len(out.Tags), "colors", len(out.Colors))
	return out
}
