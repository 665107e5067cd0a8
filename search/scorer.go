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
	"slices"
	"strings"

	"github.com/poiesic/assetfind/core"
)

// Score weights.
const (
	phraseInNameBonus        = 100
	phraseEqualsTagBonus     = 80
	phraseInDescriptionBonus = 50

	tokenInNameBonus = 20
	tokenInTagBonus  = 15
	tokenInTextBonus = 5

	fullCoverageBonus    = 200
	partialCoverageBonus = 50
	partialCoverageRatio = 0.7
)

// ScoredAsset pairs an asset with its lexical relevance score.
type ScoredAsset struct {
	Asset *core.Asset
	Score int
}

// scoringFields holds the lower-cased fields an asset is scored against.
type scoringFields struct {
	name        string
	tags        []string
	description string
	transcript  string
}

func fieldsOf(asset *core.Asset) scoringFields {
	f := scoringFields{
		name:        strings.ToLower(asset.OriginalName),
		description: strings.ToLower(asset.AIData.Description),
		transcript:  strings.ToLower(asset.AIData.Transcript),
		tags:        make([]string, len(asset.AIData.Tags)),
	}
	for i, tag := range asset.AIData.Tags {
		f.tags[i] = strings.ToLower(tag)
	}
	return f
}

// Score computes the relevance of asset for a query. phrase is the trimmed,
// lower-cased raw query and tokens its Tokenize output.
func Score(asset *core.Asset, phrase string, tokens []string) int {
	f := fieldsOf(asset)
	score := 0

	if phrase != "" {
		if strings.Contains(f.name, phrase) {
			score += phraseInNameBonus
		}
		if slices.Contains(f.tags, phrase) {
			score += phraseEqualsTagBonus
		}
		if strings.Contains(f.description, phrase) {
			score += phraseInDescriptionBonus
		}
	}

	found := 0
	for _, tok := range tokens {
		hit := false
		if strings.Contains(f.name, tok) {
			score += tokenInNameBonus
			hit = true
		}
		if slices.ContainsFunc(f.tags, func(tag string) bool { return strings.Contains(tag, tok) }) {
			score += tokenInTagBonus
			hit = true
		}
		if strings.Contains(f.description, tok) || strings.Contains(f.transcript, tok) {
			score += tokenInTextBonus
			hit = true
		}
		if hit {
			found++
		}
	}

	if n := len(tokens); n > 0 {
		switch {
		case found == n:
			score += fullCoverageBonus
		case float64(found)/float64(n) > partialCoverageRatio:
			score += partialCoverageBonus
		}
	}
	return score
}

// Rank scores candidates, drops those scoring zero or less and sorts the
// rest by descending score. Equal scores order newest first, then by ID.
func Rank(candidates []*core.Asset, query string, tokens []string) []ScoredAsset {
	phrase := strings.ToLower(strings.TrimSpace(query))

	ranked := make([]ScoredAsset, 0, len(candidates))
	for _, asset := range candidates {
		if asset == nil {
			continue
		}
		if score := Score(asset, phrase, tokens); score > 0 {
			ranked = append(ranked, ScoredAsset{Asset: asset, Score: score})
		}
	}

	slices.SortStableFunc(ranked, func(a, b ScoredAsset) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		if c := b.Asset.CreatedAt.Compare(a.Asset.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Asset.ID.String(), b.Asset.ID.String())
	})
	return ranked
}
