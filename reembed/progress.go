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

package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// RunStats summarizes a reembedding run.
type RunStats struct {
	Processed  int
	Batches    int
	Retries    int
	Dimensions int
	// Cleared is set when embeddings of a previous dimensionality were
	// discarded.
	Cleared bool
	Elapsed time.Duration
}

// ProgressTracker accumulates batch results and writes a single
// carriage-return updated progress line.
type ProgressTracker struct {
	mu           sync.Mutex
	w            io.Writer
	total        int
	every        int
	stats        RunStats
	lastReported int
	start        time.Time
	started      bool
}

// NewProgressTracker creates a tracker for total assets that reports after
// every `every` processed assets (<= 0 reports after each batch).
func NewProgressTracker(w io.Writer, total, every int) *ProgressTracker {
	if every <= 0 {
		every = 1
	}
	return &ProgressTracker{w: w, total: total, every: every}
}

// Start resets the counters and the clock.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = RunStats{}
	p.lastReported = 0
	p.start = time.Now()
	p.started = true
}

// Record adds a processed batch. Batches recorded before Start are ignored.
func (p *ProgressTracker) Record(batch BatchStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}

	p.stats.Batches++
	p.stats.Processed = min(p.stats.Processed+batch.Embedded, p.total)
	if batch.Attempts > 1 {
		p.stats.Retries += batch.Attempts - 1
	}
	if batch.Dimensions > 0 {
		p.stats.Dimensions = batch.Dimensions
	}
	if batch.Cleared {
		p.stats.Cleared = true
		fmt.Fprintf(p.w, "\rDiscarded stored embeddings; dimensionality is now %d\n", batch.Dimensions)
	}

	if p.stats.Processed-p.lastReported >= p.every {
		p.report()
		p.lastReported = p.stats.Processed
	}
}

// Finish writes the final progress line and returns the run summary.
func (p *ProgressTracker) Finish() RunStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return p.stats
	}
	p.stats.Elapsed = time.Since(p.start)
	p.report()
	fmt.Fprintln(p.w)
	return p.stats
}

// Stats returns a snapshot of the counters.
func (p *ProgressTracker) Stats() RunStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := p.stats
	if p.started {
		stats.Elapsed = time.Since(p.start)
	}
	return stats
}

// report must be called with the lock held.
func (p *ProgressTracker) report() {
	rate := 0.0
	if secs := time.Since(p.start).Seconds(); secs > 0 {
		rate = float64(p.stats.Processed) / secs
	}
	percentage := 100.0
	if p.total > 0 {
		percentage = float64(p.stats.Processed) / float64(p.total) * 100
	}
	fmt.Fprintf(p.w, "\rProgress: %d/%d assets (%.1f%%), %d batches, %d retries - %.1f assets/s",
		p.stats.Processed, p.total, percentage, p.stats.Batches, p.stats.Retries, rate)
}
