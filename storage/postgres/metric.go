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

package postgres

// Metric selects the pgvector distance operator used for nearest-neighbour
// queries. Distances are compared against VectorQuery.MaxDistance as is, so
// the metric must agree with how thresholds were chosen.
type Metric interface {
	// Name identifies the metric in logs.
	Name() string
	// Operator is the pgvector operator yielding a distance.
	Operator() string
}

type cosineMetric struct{}

func (cosineMetric) Name() string     { return "cosine" }
func (cosineMetric) Operator() string { return "<=>" }

type l2Metric struct{}

func (l2Metric) Name() string     { return "l2" }
func (l2Metric) Operator() string { return "<->" }

var (
	// Cosine is 1 - cosine similarity, in [0, 2].
	Cosine Metric = cosineMetric{}

	// L2 is the Euclidean distance. For unit vectors it equals
	// sqrt(2 * cosine distance).
	L2 Metric = l2Metric{}
)
