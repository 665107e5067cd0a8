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

package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball/english"
)

// minWordLength is the shortest surface word kept by Tokenize.
const minWordLength = 3

// Tokenize normalizes a raw query into its search tokens: every surface word
// of at least three runes followed by its English stem when the stem differs.
// Letters are lower-cased and runes that are neither letters, digits nor
// whitespace are dropped. Stems are not length-filtered. The result is
// deduplicated, ordered by first appearance, and never nil.
func Tokenize(query string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, query)

	words := strings.Fields(cleaned)
	tokens := make([]string, 0, len(words)*2)
	seen := make(map[string]bool, len(words)*2)
	add := func(tok string) {
		if tok != "" && !seen[tok] {
			seen[tok] = true
			tokens = append(tokens, tok)
		}
	}

	for _, word := range words {
		if utf8.RuneCountInString(word) < minWordLength {
			continue
		}
		add(word)
		add(english.Stem(word, false))
	}
	return tokens
}
