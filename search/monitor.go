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
	"log/slog"

	"github.com/poiesic/assetfind/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterTokenize(tokens []string)
	AfterCandidateRetrieval(count int)
	AfterScoring(ranked []ScoredAsset)
	FallbackTriggered(query string)
	FallbackFailed(stage string, err error)
	Finish(results []*core.Asset)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                   {}
func (n *noopMonitor) AfterTokenize(_ []string)         {}
func (n *noopMonitor) AfterCandidateRetrieval(_ int)    {}
func (n *noopMonitor) AfterScoring(_ []ScoredAsset)     {}
func (n *noopMonitor) FallbackTriggered(_ string)       {}
func (n *noopMonitor) FallbackFailed(_ string, _ error) {}
func (n *noopMonitor) Finish(_ []*core.Asset)           {}

// LogMonitor reports every search stage to a logger at info level.
type LogMonitor struct {
	logger *slog.Logger
}

var _ SearchMonitor = (*LogMonitor)(nil)

// NewLogMonitor creates a LogMonitor. A nil logger uses slog.Default().
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger.With("component", "search-monitor")}
}

func (m *LogMonitor) Start(query string) {
	m.logger.Info("search started", "query", query)
}

func (m *LogMonitor) AfterTokenize(tokens []string) {
	m.logger.Info("tokenized", "tokens", tokens)
}

func (m *LogMonitor) AfterCandidateRetrieval(count int) {
	m.logger.Info("candidates retrieved", "count", count)
}

func (m *LogMonitor) AfterScoring(ranked []ScoredAsset) {
	for i, r := range ranked {
		m.logger.Info("scored", "rank", i+1, "score", r.Score, "id", r.Asset.ID, "name", r.Asset.OriginalName)
	}
}

func (m *LogMonitor) FallbackTriggered(query string) {
	m.logger.Info("vector fallback triggered", "query", query)
}

func (m *LogMonitor) FallbackFailed(stage string, err error) {
	m.logger.Warn("vector fallback failed", "stage", stage, "err", err)
}

func (m *LogMonitor) Finish(results []*core.Asset) {
	m.logger.Info("search finished", "results", len(results))
}
