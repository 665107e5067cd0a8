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

package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/assetfind/ai"
)

// MockTagger is a test double for ai.Tagger.
type MockTagger struct {
	// AnnotateFunc is called by Annotate if set.
	// If nil, tags are derived from the words of name and text.
	AnnotateFunc func(ctx context.Context, name, text string) (ai.Annotation, error)

	mu        sync.Mutex
	callCount int
}

// NewMockTagger creates a mock tagger with default behavior.
func NewMockTagger() *MockTagger {
	return &MockTagger{}
}

// Annotate returns simple word tags from name and text. Any word that is a
// palette color is reported as a color too.
func (m *MockTagger) Annotate(ctx context.Context, name, text string) (ai.Annotation, error) {
	m.mu.Lock()
	m.callCount++
	fn := m.AnnotateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, name, text)
	}

	words := strings.FieldsFunc(strings.ToLower(name+" "+text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	})

	var ann ai.Annotation
	seen := make(map[string]bool)
	for _, word := range words {
		if len(word) < 3 || seen[word] {
			continue
		}
		seen[word] = true
		if c := ai.NormalizeColor(word); c != "" {
			ann.Colors = append(ann.Colors, c)
			continue
		}
		if len(ann.Tags) < 5 {
			ann.Tags = append(ann.Tags, word)
		}
	}
	ann.Description = strings.TrimSpace(text)
	return ann, nil
}

// CallCount returns the number of times Annotate was called.
func (m *MockTagger) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the call count and custom functions.
func (m *MockTagger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.AnnotateFunc = nil
}
